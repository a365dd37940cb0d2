package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role enumerates the account roles accepted at registration.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleBuyer     Role = "buyer"
	RoleSeller    Role = "seller"
)

// UserAccount is the identity and credential record of a platform user.
type UserAccount struct {
	ID            uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Name          string     `json:"name" gorm:"size:255;not null"`
	Email         string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash  string     `json:"-" gorm:"column:password;size:255;not null"` // Never expose in JSON
	RememberToken string     `json:"-" gorm:"size:100"`
	Role          Role       `json:"role" gorm:"type:varchar(20);not null;index"`
	Phone         string     `json:"phone" gorm:"size:20"`
	BirthDate     *time.Time `json:"birth_date,omitempty" gorm:"type:date"`
	Gender        string     `json:"gender" gorm:"size:10"`
	Location      string     `json:"location" gorm:"size:255"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Relations
	Profile *UserProfile `json:"profile,omitempty" gorm:"foreignKey:UserID"`
}

// TableName keeps the table name stable regardless of the struct name.
func (UserAccount) TableName() string {
	return "users"
}

// BeforeCreate sets UUID before creating the record.
func (u *UserAccount) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
