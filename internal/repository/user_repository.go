package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"elkayan/internal/model"
)

// UserRepository defines user account persistence operations. Email
// uniqueness is enforced by a unique index; a duplicate insert fails with
// gorm.ErrDuplicatedKey.
type UserRepository interface {
	Create(ctx context.Context, user *model.UserAccount) error
	Update(ctx context.Context, user *model.UserAccount) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash, rememberToken string) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.UserAccount, error)
	FindByEmail(ctx context.Context, email string) (*model.UserAccount, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindProfile(ctx context.Context, userID uuid.UUID) (*model.UserProfile, error)
	SaveProfile(ctx context.Context, profile *model.UserProfile) error
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo UserRepository) error) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.UserAccount) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, user *model.UserAccount) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error
}

// UpdatePassword writes a new credential hash and remember token.
func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash, rememberToken string) error {
	res := r.db.WithContext(ctx).Model(&model.UserAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password":       passwordHash,
			"remember_token": rememberToken,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.UserAccount, error) {
	var user model.UserAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	var user model.UserAccount
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.UserAccount{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) FindProfile(ctx context.Context, userID uuid.UUID) (*model.UserProfile, error) {
	var profile model.UserProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *userRepository) SaveProfile(ctx context.Context, profile *model.UserProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// WithTransaction executes a function within a database transaction.
func (r *userRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo UserRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &userRepository{db: tx}
		return fn(ctx, txRepo)
	})
}
