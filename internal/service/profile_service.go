package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"elkayan/internal/audit"
	"elkayan/internal/auth"
	apperrors "elkayan/internal/errors"
	"elkayan/internal/model"
	"elkayan/internal/repository"
	"elkayan/internal/validation"
)

// ProfileInput is the profile form. Optional fields left out (nil) keep their
// stored value; an empty string clears them. The password section is
// optional; when NewPassword is set the whole update depends on
// CurrentPassword.
type ProfileInput struct {
	Name                    string  `json:"name" validate:"required,max=255"`
	Email                   string  `json:"email" validate:"required,email,max=255"`
	Phone                   *string `json:"phone" validate:"omitempty,max=20"`
	BirthDate               *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender                  *string `json:"gender" validate:"omitempty,oneof=male female other"`
	Location                *string `json:"location" validate:"omitempty,max=255"`
	ProfileImage            *string `json:"profile_image" validate:"omitempty,max=255"`
	CurrentPassword         string  `json:"current_password"`
	NewPassword             string  `json:"new_password" validate:"omitempty,min=6"`
	NewPasswordConfirmation string  `json:"new_password_confirmation" validate:"eqfield=NewPassword"`
}

// ChangePasswordInput is the stand-alone password change form.
type ChangePasswordInput struct {
	CurrentPassword         string `json:"current_password"`
	NewPassword             string `json:"new_password" validate:"required,min=8"`
	NewPasswordConfirmation string `json:"new_password_confirmation" validate:"eqfield=NewPassword"`
}

// ProfileService handles the signed-in user's own account.
type ProfileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*model.UserAccount, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, sessionID string, in ProfileInput) (*model.UserAccount, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, sessionID string, in ChangePasswordInput) error
	CheckPassword(ctx context.Context, userID uuid.UUID, current string) (bool, error)
	DeleteProfileImage(ctx context.Context, userID uuid.UUID) error
}

type profileService struct {
	users     repository.UserRepository
	hasher    *auth.Hasher
	validator *validation.Validator
	collab    Collaborators
	opts      CredentialOptions
	links     *resetLinks
}

// NewProfileService creates a new profile service.
func NewProfileService(
	users repository.UserRepository,
	tokens repository.ResetTokenRepository,
	hasher *auth.Hasher,
	validator *validation.Validator,
	collab Collaborators,
	opts CredentialOptions,
) ProfileService {
	return &profileService{
		users:     users,
		hasher:    hasher,
		validator: validator,
		collab:    collab,
		opts:      opts,
		links:     &resetLinks{tokens: tokens, ttl: opts.ResetTokenTTL, appURL: opts.AppURL},
	}
}

// findUser loads the acting account. Failures are audited under failMsg.
func (s *profileService) findUser(ctx context.Context, userID uuid.UUID, failMsg string) (*model.UserAccount, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.collab.Audit.Warning(ctx, failMsg, audit.Fields{"user_id": userID.String(), "reason": apperrors.ErrUserNotFound.Error()})
			return nil, apperrors.ErrUserNotFound
		}
		s.collab.Audit.Error(ctx, failMsg, audit.Fields{"user_id": userID.String(), "error": err.Error()})
		return nil, fmt.Errorf("%w: find user: %w", apperrors.ErrPersistence, err)
	}
	return user, nil
}

// GetProfile returns the account with its profile row, if one exists.
func (s *profileService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.UserAccount, error) {
	user, err := s.findUser(ctx, userID, "User profile load failed")
	if err != nil {
		return nil, err
	}

	profile, err := s.users.FindProfile(ctx, userID)
	switch {
	case err == nil:
		user.Profile = profile
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.collab.Audit.Error(ctx, "User profile load failed", audit.Fields{"user_id": userID.String(), "error": err.Error()})
		return nil, fmt.Errorf("%w: find profile: %w", apperrors.ErrPersistence, err)
	}
	return user, nil
}

// verifyCurrent checks the current password. An empty or wrong password
// yields ErrCurrentPasswordInvalid.
func (s *profileService) verifyCurrent(user *model.UserAccount, current string) error {
	if current == "" {
		return apperrors.ErrCurrentPasswordInvalid
	}
	ok, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrCurrentPasswordInvalid
	}
	return nil
}

// UpdateProfile applies the profile fields and, when present, the new
// password. Nothing is written unless both sections are valid.
func (s *profileService) UpdateProfile(ctx context.Context, userID uuid.UUID, sessionID string, in ProfileInput) (*model.UserAccount, error) {
	in.Email = validation.NormalizeEmail(in.Email)

	user, err := s.findUser(ctx, userID, "User profile update failed")
	if err != nil {
		return nil, err
	}

	verr := s.validator.Struct(in.withoutCleared())
	if verr == nil {
		verr = apperrors.NewValidationError()
	}
	if !verr.Has("email") && in.Email != user.Email {
		exists, err := s.users.ExistsByEmail(ctx, in.Email)
		if err != nil {
			s.collab.Audit.Error(ctx, "User profile update failed", audit.Fields{"user_id": userID.String(), "error": err.Error()})
			return nil, fmt.Errorf("%w: check email: %w", apperrors.ErrPersistence, err)
		}
		if exists {
			verr.Add("email", emailTakenMessage)
		}
	}
	if verr.HasErrors() {
		s.collab.Audit.Warning(ctx, "User profile update failed", audit.Fields{"user_id": userID.String(), "reason": verr.Error()})
		return nil, verr
	}

	var newHash, remember string
	if in.NewPassword != "" {
		if err := s.verifyCurrent(user, in.CurrentPassword); err != nil {
			s.collab.Audit.Warning(ctx, "User profile update failed", audit.Fields{"user_id": userID.String(), "reason": err.Error()})
			return nil, err
		}
		if newHash, err = s.hasher.Derive(in.NewPassword); err != nil {
			s.collab.Audit.Error(ctx, "User profile update failed", audit.Fields{"user_id": userID.String(), "reason": err.Error()})
			return nil, err
		}
		if remember, err = auth.RandomString(rememberTokenLength); err != nil {
			s.collab.Audit.Error(ctx, "User profile update failed", audit.Fields{"user_id": userID.String(), "reason": err.Error()})
			return nil, err
		}
	}

	updated := *user
	updated.Name = in.Name
	updated.Email = in.Email
	if in.Phone != nil {
		updated.Phone = *in.Phone
	}
	if in.BirthDate != nil {
		updated.BirthDate = parseDate(*in.BirthDate)
	}
	if in.Gender != nil {
		updated.Gender = *in.Gender
	}
	if in.Location != nil {
		updated.Location = *in.Location
	}
	if newHash != "" {
		updated.PasswordHash = newHash
		updated.RememberToken = remember
	}

	err = s.users.WithTransaction(ctx, func(ctx context.Context, repo repository.UserRepository) error {
		if err := repo.Update(ctx, &updated); err != nil {
			return err
		}

		profile, err := repo.FindProfile(ctx, updated.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			profile = &model.UserProfile{UserID: updated.ID}
		} else if err != nil {
			return err
		}
		if in.ProfileImage != nil {
			profile.ProfileImage = in.ProfileImage
			if *in.ProfileImage == "" {
				profile.ProfileImage = nil
			}
		}
		if err := repo.SaveProfile(ctx, profile); err != nil {
			return err
		}
		updated.Profile = profile
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			verr.Add("email", emailTakenMessage)
			s.collab.Audit.Warning(ctx, "User profile update failed", audit.Fields{"user_id": userID.String(), "reason": verr.Error()})
			return nil, verr
		}
		s.collab.Audit.Error(ctx, "User profile update failed", audit.Fields{"user_id": userID.String(), "error": err.Error()})
		return nil, fmt.Errorf("%w: update profile: %w", apperrors.ErrPersistence, err)
	}

	if newHash != "" {
		credentialChanged(ctx, s.collab, s.opts, s.links, &updated, sessionID)
	}

	s.collab.Audit.Info(ctx, "User profile updated successfully", audit.Fields{"user_id": userID.String(), "credential_changed": newHash != ""})
	return &updated, nil
}

// ChangePassword replaces the password after re-verifying the current one.
func (s *profileService) ChangePassword(ctx context.Context, userID uuid.UUID, sessionID string, in ChangePasswordInput) error {
	user, err := s.findUser(ctx, userID, "Password change failed")
	if err != nil {
		return err
	}

	if verr := s.validator.Struct(in); verr != nil {
		s.collab.Audit.Warning(ctx, "Password change failed", audit.Fields{"user_id": userID.String(), "reason": verr.Error()})
		return verr
	}
	if err := s.verifyCurrent(user, in.CurrentPassword); err != nil {
		s.collab.Audit.Warning(ctx, "Password change failed", audit.Fields{"user_id": userID.String(), "reason": err.Error()})
		return err
	}

	hash, err := s.hasher.Derive(in.NewPassword)
	if err != nil {
		s.collab.Audit.Error(ctx, "Password change failed", audit.Fields{"user_id": userID.String(), "reason": err.Error()})
		return err
	}
	remember, err := auth.RandomString(rememberTokenLength)
	if err != nil {
		s.collab.Audit.Error(ctx, "Password change failed", audit.Fields{"user_id": userID.String(), "reason": err.Error()})
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, remember); err != nil {
		s.collab.Audit.Error(ctx, "Password change failed", audit.Fields{"user_id": userID.String(), "error": err.Error()})
		return fmt.Errorf("%w: update password: %w", apperrors.ErrPersistence, err)
	}
	user.PasswordHash = hash
	user.RememberToken = remember

	credentialChanged(ctx, s.collab, s.opts, s.links, user, sessionID)

	s.collab.Audit.Info(ctx, "Password changed successfully", audit.Fields{"user_id": userID.String()})
	return nil
}

// CheckPassword reports whether current is the user's password.
func (s *profileService) CheckPassword(ctx context.Context, userID uuid.UUID, current string) (bool, error) {
	user, err := s.findUser(ctx, userID, "Password check failed")
	if err != nil {
		return false, err
	}

	err = s.verifyCurrent(user, current)
	switch {
	case err == nil:
		s.collab.Audit.Info(ctx, "Password check successful", audit.Fields{"user_id": userID.String()})
		return true, nil
	case errors.Is(err, apperrors.ErrCurrentPasswordInvalid):
		s.collab.Audit.Warning(ctx, "Password check failed", audit.Fields{"user_id": userID.String()})
		return false, nil
	default:
		s.collab.Audit.Error(ctx, "Password check failed", audit.Fields{"user_id": userID.String(), "error": err.Error()})
		return false, err
	}
}

// DeleteProfileImage clears the profile image reference. Removing the stored
// file is left to the media service that owns it.
func (s *profileService) DeleteProfileImage(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.findUser(ctx, userID, "Profile picture delete failed"); err != nil {
		return err
	}

	profile, err := s.users.FindProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.collab.Audit.Info(ctx, "Profile picture deleted", audit.Fields{"user_id": userID.String(), "removed": false})
			return nil
		}
		s.collab.Audit.Error(ctx, "Profile picture delete failed", audit.Fields{"user_id": userID.String(), "error": err.Error()})
		return fmt.Errorf("%w: find profile: %w", apperrors.ErrPersistence, err)
	}
	if profile.ProfileImage == nil {
		s.collab.Audit.Info(ctx, "Profile picture deleted", audit.Fields{"user_id": userID.String(), "removed": false})
		return nil
	}

	previous := *profile.ProfileImage
	profile.ProfileImage = nil
	if err := s.users.SaveProfile(ctx, profile); err != nil {
		s.collab.Audit.Error(ctx, "Profile picture delete failed", audit.Fields{"user_id": userID.String(), "error": err.Error()})
		return fmt.Errorf("%w: save profile: %w", apperrors.ErrPersistence, err)
	}

	s.collab.Audit.Info(ctx, "Profile picture deleted", audit.Fields{"user_id": userID.String(), "removed": true, "image": previous})
	return nil
}

// withoutCleared drops empty optional values so format rules only apply to
// values being set.
func (in ProfileInput) withoutCleared() ProfileInput {
	for _, f := range []**string{&in.Phone, &in.BirthDate, &in.Gender, &in.Location, &in.ProfileImage} {
		if *f != nil && **f == "" {
			*f = nil
		}
	}
	return in
}
