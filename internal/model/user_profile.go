package model

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile is the optional 1:1 extension of UserAccount holding the
// profile image reference. It is created on the first profile mutation.
type UserProfile struct {
	ID           uint      `json:"-" gorm:"primaryKey"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:char(36);uniqueIndex;not null"`
	ProfileImage *string   `json:"profile_image,omitempty" gorm:"size:255"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
