package models

import "time"

// Message is one chat utterance. Only Read changes after creation.
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SenderID    uint      `gorm:"not null;index:idx_message_pair" json:"sender_id"`
	RecipientID uint      `gorm:"not null;index:idx_message_pair" json:"recipient_id"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	Read        bool      `gorm:"column:read_flag;not null;default:false" json:"read"`
}

// Contact is a user the caller has exchanged messages with.
type Contact struct {
	User   User `json:"user"`
	Online bool `json:"online"`
}
