package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatThread pairs the two participants of one Request.
// Threads are never deleted, only deactivated.
type ChatThread struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// Token is an unguessable share-link identifier.
	Token     string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"token"`
	UserA     uint      `gorm:"not null;index" json:"user_a"`
	UserB     uint      `gorm:"not null;index" json:"user_b"`
	RequestID uint      `gorm:"not null;uniqueIndex" json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
}

// BeforeCreate fills the token when the caller did not set one.
func (t *ChatThread) BeforeCreate(tx *gorm.DB) (err error) {
	if t.Token == "" {
		t.Token = uuid.New().String()
	}
	return
}

// HasParticipant reports whether userID is one of the two members.
func (t *ChatThread) HasParticipant(userID uint) bool {
	return t.UserA == userID || t.UserB == userID
}
