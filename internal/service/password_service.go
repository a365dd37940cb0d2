package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"elkayan/internal/audit"
	"elkayan/internal/auth"
	apperrors "elkayan/internal/errors"
	"elkayan/internal/model"
	"elkayan/internal/repository"
	"elkayan/internal/validation"
)

// ResetInput is the reset-password form.
type ResetInput struct {
	Token                string `json:"token" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"eqfield=Password"`
}

// PasswordService handles password reset by token.
type PasswordService interface {
	RequestReset(ctx context.Context, email string) error
	CheckResetLink(ctx context.Context, token, email string) error
	RedeemReset(ctx context.Context, in ResetInput) (*model.UserAccount, error)
}

type passwordService struct {
	users     repository.UserRepository
	tokens    repository.ResetTokenRepository
	hasher    *auth.Hasher
	validator *validation.Validator
	collab    Collaborators
	opts      CredentialOptions
	links     *resetLinks
	now       func() time.Time
}

// NewPasswordService creates a new password reset service.
func NewPasswordService(
	users repository.UserRepository,
	tokens repository.ResetTokenRepository,
	hasher *auth.Hasher,
	validator *validation.Validator,
	collab Collaborators,
	opts CredentialOptions,
) PasswordService {
	return &passwordService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		validator: validator,
		collab:    collab,
		opts:      opts,
		links:     &resetLinks{tokens: tokens, ttl: opts.ResetTokenTTL, appURL: opts.AppURL},
		now:       time.Now,
	}
}

// RequestReset mails a reset link when email belongs to an account. The
// result is the same whether or not it does.
func (s *passwordService) RequestReset(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if !s.validator.Email(email) {
		verr := apperrors.NewValidationError()
		verr.Add("email", "email must be a valid email address")
		s.collab.Audit.Warning(ctx, "Password reset link failed", audit.Fields{"email": email, "reason": verr.Error()})
		return verr
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.collab.Audit.Warning(ctx, "Password reset link requested for unknown email", audit.Fields{"email": email})
			return nil
		}
		s.collab.Audit.Error(ctx, "Password reset link failed", audit.Fields{"email": email, "error": err.Error()})
		return fmt.Errorf("%w: find user: %w", apperrors.ErrPersistence, err)
	}

	resetURL, err := s.links.issue(ctx, user.Email)
	if err != nil {
		s.collab.Audit.Error(ctx, "Password reset link failed", audit.Fields{"email": email, "error": err.Error()})
		return fmt.Errorf("%w: %w", apperrors.ErrPersistence, err)
	}

	if err := s.collab.Notifier.SendPasswordResetLink(ctx, user, resetURL); err != nil {
		s.collab.Audit.Warning(ctx, "Password reset link delivery failed", audit.Fields{"user_id": user.ID.String(), "error": err.Error()})
		return nil
	}

	s.collab.Audit.Info(ctx, "Password reset link sent", audit.Fields{"user_id": user.ID.String(), "email": email})
	return nil
}

// CheckResetLink reports whether a reset link can still be redeemed, so the
// client can show the form or an expired-link notice up front. It does not
// consume the token.
func (s *passwordService) CheckResetLink(ctx context.Context, token, email string) error {
	email = validation.NormalizeEmail(email)
	if token == "" || email == "" {
		s.collab.Audit.Warning(ctx, "Password reset link rejected", audit.Fields{"email": email, "status": apperrors.ErrTokenInvalid.Error()})
		return apperrors.ErrTokenInvalid
	}

	found, err := s.tokens.Find(ctx, HashResetToken(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.collab.Audit.Warning(ctx, "Password reset link rejected", audit.Fields{"email": email, "status": apperrors.ErrTokenInvalid.Error()})
			return apperrors.ErrTokenInvalid
		}
		s.collab.Audit.Error(ctx, "Password reset exception", audit.Fields{"email": email, "error": err.Error()})
		return fmt.Errorf("%w: find reset token: %w", apperrors.ErrPersistence, err)
	}
	if found.Email != email || found.Expired(s.now()) {
		s.collab.Audit.Warning(ctx, "Password reset link rejected", audit.Fields{"email": email, "status": apperrors.ErrTokenInvalid.Error()})
		return apperrors.ErrTokenInvalid
	}

	s.collab.Audit.Info(ctx, "Password reset link opened", audit.Fields{"email": email})
	return nil
}

// RedeemReset sets a new password for the account the token was issued to.
// The token check, the credential update and the token deletion commit
// together; a token can be redeemed once.
func (s *passwordService) RedeemReset(ctx context.Context, in ResetInput) (*model.UserAccount, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if verr := s.validator.Struct(in); verr != nil {
		s.collab.Audit.Warning(ctx, "Password reset failed", audit.Fields{"email": in.Email, "status": verr.Error()})
		return nil, verr
	}

	hash, err := s.hasher.Derive(in.Password)
	if err != nil {
		s.collab.Audit.Error(ctx, "Password reset exception", audit.Fields{"email": in.Email, "error": err.Error()})
		return nil, err
	}
	remember, err := auth.RandomString(rememberTokenLength)
	if err != nil {
		s.collab.Audit.Error(ctx, "Password reset exception", audit.Fields{"email": in.Email, "error": err.Error()})
		return nil, err
	}

	var user *model.UserAccount
	err = s.tokens.Redeem(ctx, HashResetToken(in.Token), func(ctx context.Context, token *model.PasswordResetToken, users repository.UserRepository) error {
		if token.Email != in.Email || token.Expired(s.now()) {
			return apperrors.ErrTokenInvalid
		}
		u, err := users.FindByEmail(ctx, token.Email)
		if err != nil {
			return err
		}
		if err := users.UpdatePassword(ctx, u.ID, hash, remember); err != nil {
			return err
		}
		u.PasswordHash = hash
		u.RememberToken = remember
		user = u
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenInvalid) || errors.Is(err, gorm.ErrRecordNotFound) {
			s.collab.Audit.Warning(ctx, "Password reset failed", audit.Fields{"email": in.Email, "status": apperrors.ErrTokenInvalid.Error()})
			return nil, apperrors.ErrTokenInvalid
		}
		s.collab.Audit.Error(ctx, "Password reset exception", audit.Fields{"email": in.Email, "error": err.Error()})
		return nil, fmt.Errorf("%w: redeem reset token: %w", apperrors.ErrPersistence, err)
	}

	credentialChanged(ctx, s.collab, s.opts, nil, user, "")

	s.collab.Audit.Info(ctx, "Password reset successfully", audit.Fields{"user_id": user.ID.String(), "email": user.Email})
	return user, nil
}
