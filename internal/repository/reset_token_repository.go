package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"elkayan/internal/model"
)

// RedeemFunc runs inside the redemption transaction with the locked token
// and a transaction-bound user repository. Returning an error rolls back and
// leaves the token in place.
type RedeemFunc func(ctx context.Context, token *model.PasswordResetToken, users UserRepository) error

// ResetTokenRepository defines password reset token persistence operations.
type ResetTokenRepository interface {
	Issue(ctx context.Context, email, tokenHash string, ttl time.Duration) (*model.PasswordResetToken, error)
	Find(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error)
	Redeem(ctx context.Context, tokenHash string, fn RedeemFunc) error
}

type resetTokenRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewResetTokenRepository creates a new reset token repository.
func NewResetTokenRepository(db *gorm.DB) ResetTokenRepository {
	return &resetTokenRepository{db: db, now: time.Now}
}

// Issue stores a token for email, replacing any earlier token for it.
func (r *resetTokenRepository) Issue(ctx context.Context, email, tokenHash string, ttl time.Duration) (*model.PasswordResetToken, error) {
	now := r.now().UTC()
	token := &model.PasswordResetToken{
		Email:     email,
		TokenHash: tokenHash,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(token).Error
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Find returns the live token with the given hash. Expired tokens are not
// returned.
func (r *resetTokenRepository) Find(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	var token model.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", tokenHash, r.now().UTC()).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Redeem locks the token row, runs fn and deletes the token in the same
// transaction. Concurrent redemptions of one token serialise on the row lock;
// every one after the first finds no row.
func (r *resetTokenRepository) Redeem(ctx context.Context, tokenHash string, fn RedeemFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token model.PasswordResetToken
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ?", tokenHash).
			First(&token).Error; err != nil {
			return err
		}

		if err := fn(ctx, &token, &userRepository{db: tx}); err != nil {
			return err
		}

		return tx.Where("email = ?", token.Email).Delete(&model.PasswordResetToken{}).Error
	})
}
