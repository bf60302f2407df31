package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is an account known to the Identity & Policy Gateway.
// Contacts and Blocked hold user IDs; Blocked is directional (this user blocked them).
type User struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"type:varchar(20);not null" json:"username"`
	Email        string         `gorm:"not null" json:"-"`
	Phone        string         `json:"-"`
	Number       string         `gorm:"type:varchar(9);uniqueIndex;not null" json:"number"`
	PasswordHash string         `gorm:"not null" json:"-"`
	AvatarURL    string         `json:"avatar,omitempty"`
	Contacts     pq.StringArray `gorm:"type:text[]" json:"-"`
	Blocked      pq.StringArray `gorm:"type:text[]" json:"-"`
	CreatedAt    time.Time      `json:"-"`
}

// BeforeCreate is a GORM hook that assigns a UUID when ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// HasBlocked reports whether u blocked the user with the given ID.
func (u *User) HasBlocked(userID string) bool {
	for _, id := range u.Blocked {
		if id == userID {
			return true
		}
	}
	return false
}

// Profile is the public view of a user returned by the REST layer.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Number   string `json:"number"`
	Avatar   string `json:"avatar,omitempty"`
	Online   bool   `json:"online"`
}

// ToProfile strips private fields. online is supplied by the caller because
// reachability lives in the connection registry, not in the user record.
func (u *User) ToProfile(online bool) Profile {
	return Profile{
		ID:       u.ID,
		Username: u.Username,
		Number:   u.Number,
		Avatar:   u.AvatarURL,
		Online:   online,
	}
}
