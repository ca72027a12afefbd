package models

import (
	"time"

	"github.com/lib/pq"
)

// Donation is the read model of a surplus-food offer. Listing, editing and
// image handling live elsewhere; this service only reads ownership and toggles
// the active flag.
type Donation struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	OwnerUserID uint           `gorm:"not null;index" json:"owner_user_id"`
	Title       string         `gorm:"type:text;not null" json:"title"`
	FoodTypes   pq.StringArray `gorm:"type:text[]" json:"food_types"`
	Active      bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
