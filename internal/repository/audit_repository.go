package repository

import (
	"context"

	"gorm.io/gorm"

	"elkayan/internal/model"
)

// AuditRepository defines audit entry persistence operations.
type AuditRepository interface {
	Create(ctx context.Context, entry *model.AuditEntry) error
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Create creates a new audit entry.
func (r *auditRepository) Create(ctx context.Context, entry *model.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
