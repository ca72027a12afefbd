package models

import (
	"strconv"
	"time"
)

// User is the directory entry of a donor or requester.
type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string `gorm:"not null" json:"display_name"`
	// TelegramChatID is set once the user links the Telegram bot.
	TelegramChatID *int64    `gorm:"uniqueIndex" json:"-"`
	Language       string    `gorm:"type:varchar(8);default:'pt'" json:"language"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserKey is the private-channel name of a user: the stringified id.
func UserKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseUserKey is the inverse of UserKey.
func ParseUserKey(key string) (uint, bool) {
	id, err := strconv.ParseUint(key, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
