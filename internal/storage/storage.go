package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"astrona/backend/internal/id"
	"astrona/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const onlineSetKey = "presence:online"

var (
	ErrNotFound         = errors.New("record not found")
	ErrPresenceDisabled = errors.New("presence store not configured")
)

// MessageStore is the durable per-thread message log.
// Lookups return (nil, nil) when the record is absent.
type MessageStore interface {
	FindMessage(ctx context.Context, threadID, messageID string) (*models.Message, error)
	// AdvanceStatus moves a message forward to status and reports whether a row
	// changed. It never moves a status backward.
	AdvanceStatus(ctx context.Context, threadID, messageID string, status models.MessageStatus) (bool, error)
	// MarkSeen advances the listed messages addressed to recipientID to seen and
	// returns the ones that actually changed.
	MarkSeen(ctx context.Context, threadID, recipientID string, messageIDs []string) ([]models.Message, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListThread(ctx context.Context, threadID string) ([]models.Message, error)
	TombstoneMessage(ctx context.Context, threadID, messageID string) (*models.Message, error)
}

// UserStore persists accounts, contact lists and block lists.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByNumber(ctx context.Context, number string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	AddContact(ctx context.Context, userID, contactID string) error
	BlockUser(ctx context.Context, userID, targetID string) error
	UnblockUser(ctx context.Context, userID, targetID string) error
	// IsBlocked reports whether blockerID has blocked blockedID.
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	// SearchUsers matches a case-insensitive username substring.
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
	// UpdateProfile changes the non-nil fields and returns the stored user,
	// or (nil, nil) when userID does not exist.
	UpdateProfile(ctx context.Context, userID string, username, avatarURL *string) (*models.User, error)
}

// PresenceStore mirrors the online flag of each user outside the process.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string, online bool) error
	OnlineUserIDs(ctx context.Context) ([]string, error)
}

type Storage interface {
	MessageStore
	UserStore
	PresenceStore
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor. rdb may be nil when presence is not needed.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Migrate creates or updates the tables the service owns.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(&models.User{}, &models.Message{})
}

// --- Messages ---

func (s *Service) FindMessage(ctx context.Context, threadID, messageID string) (*models.Message, error) {
	var msg models.Message
	err := s.DB.WithContext(ctx).
		Where("thread_id = ? AND id = ?", threadID, messageID).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find message %s: %w", messageID, err)
	}
	return &msg, nil
}

func (s *Service) AdvanceStatus(ctx context.Context, threadID, messageID string, status models.MessageStatus) (bool, error) {
	if len(status.Below()) == 0 {
		return false, nil
	}

	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("thread_id = ? AND id = ?", threadID, messageID).
		Scopes(belowStatus(status)).
		Update("status", string(status))
	if res.Error != nil {
		return false, fmt.Errorf("advance message %s to %s: %w", messageID, status, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) MarkSeen(ctx context.Context, threadID, recipientID string, messageIDs []string) ([]models.Message, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	var changed []models.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := seenCandidates(tx, threadID, recipientID, messageIDs).Find(&changed).Error; err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}

		ids := make([]string, len(changed))
		for i := range changed {
			ids[i] = changed[i].ID
			changed[i].Status = models.StatusSeen
		}
		return tx.Model(&models.Message{}).
			Where("thread_id = ? AND id IN ?", threadID, ids).
			Scopes(belowStatus(models.StatusSeen)).
			Update("status", string(models.StatusSeen)).Error
	})
	if err != nil {
		return nil, fmt.Errorf("mark seen in %s: %w", threadID, err)
	}
	return changed, nil
}

// belowStatus limits a message query to rows that can still advance to
// status. It is the only guard keeping statuses monotonic in storage.
func belowStatus(status models.MessageStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status IN ?", statusStrings(status.Below()))
	}
}

// seenCandidates selects the listed messages addressed to recipientID that
// are not seen yet.
func seenCandidates(tx *gorm.DB, threadID, recipientID string, messageIDs []string) *gorm.DB {
	return tx.Where("thread_id = ? AND recipient_id = ? AND id IN ?", threadID, recipientID, messageIDs).
		Scopes(belowStatus(models.StatusSeen))
}

func statusStrings(statuses []models.MessageStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

// AppendMessage stores a new message in the sent state, minting its ID.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		newID, err := id.New()
		if err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		msg.ID = newID
	}
	msg.Status = models.StatusSent
	msg.Deleted = false

	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		slog.ErrorContext(ctx, "failed to save message", "thread_id", msg.ThreadID, "error", err)
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListThread returns the thread in insertion order.
func (s *Service) ListThread(ctx context.Context, threadID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := s.DB.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at asc, id asc").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list thread %s: %w", threadID, err)
	}
	return msgs, nil
}

// TombstoneMessage sets the deleted flag. Returns (nil, nil) when the message does not exist.
func (s *Service) TombstoneMessage(ctx context.Context, threadID, messageID string) (*models.Message, error) {
	msg, err := s.FindMessage(ctx, threadID, messageID)
	if err != nil || msg == nil {
		return nil, err
	}
	if msg.Deleted {
		return msg, nil
	}

	if err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("thread_id = ? AND id = ?", threadID, messageID).
		Update("deleted", true).Error; err != nil {
		return nil, fmt.Errorf("tombstone message %s: %w", messageID, err)
	}
	msg.Deleted = true
	return msg, nil
}

// --- Users ---

func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.findUser(ctx, "id = ?", userID)
}

func (s *Service) GetUserByNumber(ctx context.Context, number string) (*models.User, error) {
	return s.findUser(ctx, "number = ?", number)
}

func (s *Service) findUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *Service) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return users, nil
}

func (s *Service) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	var users []models.User
	err := s.DB.WithContext(ctx).
		Where(`username ILIKE ? ESCAPE '\'`, likePattern(query)).
		Order("username asc").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps q for a substring match with LIKE wildcards in q escaped.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, username, avatarURL *string) (*models.User, error) {
	updates := make(map[string]any, 2)
	if username != nil {
		updates["username"] = *username
	}
	if avatarURL != nil {
		updates["avatar_url"] = *avatarURL
	}

	if len(updates) > 0 {
		res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update profile %s: %w", userID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, nil
		}
	}
	return s.GetUserByID(ctx, userID)
}

func (s *Service) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("number = ?", number).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check number: %w", err)
	}
	return count > 0, nil
}

func (s *Service) AddContact(ctx context.Context, userID, contactID string) error {
	return s.appendToArray(ctx, "contacts", userID, contactID)
}

func (s *Service) BlockUser(ctx context.Context, userID, targetID string) error {
	return s.appendToArray(ctx, "blocked", userID, targetID)
}

func (s *Service) UnblockUser(ctx context.Context, userID, targetID string) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("blocked", gorm.Expr("array_remove(blocked, ?)", targetID))
	if res.Error != nil {
		return fmt.Errorf("unblock %s: %w", targetID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// appendToArray adds value to a text[] column once.
func (s *Service) appendToArray(ctx context.Context, column, userID, value string) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Where("NOT (? = ANY(COALESCE("+column+", '{}')))", value).
		Update(column, gorm.Expr("array_append(COALESCE("+column+", '{}'), ?)", value))
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", column, res.Error)
	}
	return nil
}

func (s *Service) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND ? = ANY(COALESCE(blocked, '{}'))", blockerID, blockedID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check block %s->%s: %w", blockerID, blockedID, err)
	}
	return count > 0, nil
}

// --- Presence ---

func (s *Service) SetOnline(ctx context.Context, userID string, online bool) error {
	if s.Redis == nil {
		return ErrPresenceDisabled
	}
	if online {
		return s.Redis.SAdd(ctx, onlineSetKey, userID).Err()
	}
	return s.Redis.SRem(ctx, onlineSetKey, userID).Err()
}

func (s *Service) OnlineUserIDs(ctx context.Context) ([]string, error) {
	if s.Redis == nil {
		return nil, ErrPresenceDisabled
	}
	return s.Redis.SMembers(ctx, onlineSetKey).Result()
}

// ResetPresence clears flags left behind by a previous process; the registry
// starts empty so nobody is online.
func (s *Service) ResetPresence(ctx context.Context) error {
	if s.Redis == nil {
		return ErrPresenceDisabled
	}
	return s.Redis.Del(ctx, onlineSetKey).Err()
}
