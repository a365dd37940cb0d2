package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditEntry is one persisted security audit record.
// Every terminal outcome of a credential flow is recorded, success or failure.
type AuditEntry struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Level     string    `json:"level" gorm:"type:varchar(10);not null;index"`
	Message   string    `json:"message" gorm:"size:255;not null;index"`
	Fields    string    `json:"fields,omitempty" gorm:"type:text"` // JSON encoded
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
