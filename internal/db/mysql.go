package db

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"elkayan/internal/model"
)

// NewMySQL returns a connected GORM DB instance. Driver errors are
// translated, so a unique index violation surfaces as gorm.ErrDuplicatedKey.
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema. With reset set, existing tables
// are dropped first.
func Migrate(db *gorm.DB, reset bool, logger *zap.Logger) error {
	tables := []interface{}{
		&model.AuditEntry{},
		&model.PasswordResetToken{},
		&model.UserProfile{},
		&model.UserAccount{},
	}

	if reset {
		logger.Warn("RESET_DB=true detected, dropping all tables")
		for _, table := range tables {
			if err := db.Migrator().DropTable(table); err != nil {
				logger.Warn("failed to drop table (may not exist)", zap.Error(err))
			}
		}
	}

	if err := db.AutoMigrate(
		&model.UserAccount{},
		&model.UserProfile{},
		&model.PasswordResetToken{},
		&model.AuditEntry{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
