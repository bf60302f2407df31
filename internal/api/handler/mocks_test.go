package handler_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"astrona/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage implements storage.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) FindMessage(ctx context.Context, threadID, messageID string) (*models.Message, error) {
	args := m.Called(threadID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) AdvanceStatus(ctx context.Context, threadID, messageID string, status models.MessageStatus) (bool, error) {
	args := m.Called(threadID, messageID, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) MarkSeen(ctx context.Context, threadID, recipientID string, messageIDs []string) ([]models.Message, error) {
	args := m.Called(threadID, recipientID, messageIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStorage) ListThread(ctx context.Context, threadID string) ([]models.Message, error) {
	args := m.Called(threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) TombstoneMessage(ctx context.Context, threadID, messageID string) (*models.Message, error) {
	args := m.Called(threadID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) GetUserByNumber(ctx context.Context, number string) (*models.User, error) {
	args := m.Called(number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	args := m.Called(userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) NumberExists(ctx context.Context, number string) (bool, error) {
	args := m.Called(number)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) AddContact(ctx context.Context, userID, contactID string) error {
	return m.Called(userID, contactID).Error(0)
}

func (m *MockStorage) BlockUser(ctx context.Context, userID, targetID string) error {
	return m.Called(userID, targetID).Error(0)
}

func (m *MockStorage) UnblockUser(ctx context.Context, userID, targetID string) error {
	return m.Called(userID, targetID).Error(0)
}

func (m *MockStorage) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	args := m.Called(blockerID, blockedID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	args := m.Called(query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) UpdateProfile(ctx context.Context, userID string, username, avatarURL *string) (*models.User, error) {
	args := m.Called(userID, username, avatarURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SetOnline(ctx context.Context, userID string, online bool) error {
	return m.Called(userID, online).Error(0)
}

func (m *MockStorage) OnlineUserIDs(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// recordingClient is a chathub.Client that keeps what it is sent.
type recordingClient struct {
	userID string
	frames chan models.Envelope
}

func newRecordingClient(userID string) *recordingClient {
	return &recordingClient{userID: userID, frames: make(chan models.Envelope, 16)}
}

func (c *recordingClient) GetUserID() string { return c.userID }
func (c *recordingClient) Run()              {}
func (c *recordingClient) Close()            {}

func (c *recordingClient) Send(frame models.Envelope) bool {
	select {
	case c.frames <- frame:
		return true
	default:
		return false
	}
}

func (c *recordingClient) next(t *testing.T) models.Envelope {
	t.Helper()
	select {
	case f := <-c.frames:
		return f
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.userID)
		return models.Envelope{}
	}
}

func (c *recordingClient) empty() bool {
	select {
	case <-c.frames:
		return false
	default:
		return true
	}
}

func payloadOf[T any](t *testing.T, f models.Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(f.Payload, &v); err != nil {
		t.Fatalf("decode %s payload: %v", f.Type, err)
	}
	return v
}
