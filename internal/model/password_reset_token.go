package model

import "time"

// PasswordResetToken binds a reset token to an email address. Only the
// SHA-256 hash of the token is stored. Email is the primary key, so issuing
// a token replaces any earlier one for the same address.
type PasswordResetToken struct {
	Email     string    `gorm:"primaryKey;size:255"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// Expired reports whether the token is past its expiry at now.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
