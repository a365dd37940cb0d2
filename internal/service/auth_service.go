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

const emailTakenMessage = "The email has already been taken."

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name                 string     `json:"name" validate:"required,max=255"`
	Email                string     `json:"email" validate:"required,email,max=255"`
	Password             string     `json:"password" validate:"required,min=8"`
	PasswordConfirmation string     `json:"password_confirmation" validate:"eqfield=Password"`
	Phone                string     `json:"phone" validate:"required,digits,min=10,max=11"`
	Role                 model.Role `json:"role" validate:"required,oneof=admin developer buyer seller"`
	BirthDate            string     `json:"birth_date" validate:"required,datetime=2006-01-02"`
	Gender               string     `json:"gender" validate:"required,oneof=male female"`
	Location             string     `json:"location" validate:"required,max=255"`
}

// LoginInput is the sign-in form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput, sess Session) (*model.UserAccount, error)
	Login(ctx context.Context, in LoginInput, sess Session) (*model.UserAccount, error)
	Logout(ctx context.Context, sess Session)
	CheckEmailExists(ctx context.Context, email string, requester *uuid.UUID) (bool, error)
	SeedAccounts(ctx context.Context, accounts []RegisterInput) (int, error)
}

type authService struct {
	users     repository.UserRepository
	hasher    *auth.Hasher
	validator *validation.Validator
	audit     AuditLog
}

// NewAuthService creates a new authentication service.
func NewAuthService(users repository.UserRepository, hasher *auth.Hasher, validator *validation.Validator, auditLog AuditLog) AuthService {
	return &authService{
		users:     users,
		hasher:    hasher,
		validator: validator,
		audit:     auditLog,
	}
}

// Register validates the form, creates the account and signs it in.
func (s *authService) Register(ctx context.Context, in RegisterInput, sess Session) (*model.UserAccount, error) {
	in.Email = validation.NormalizeEmail(in.Email)

	verr, err := s.validateRegistration(ctx, in)
	if err != nil {
		s.audit.Error(ctx, "User registration failed", audit.Fields{"email": in.Email, "reason": err.Error()})
		return nil, err
	}
	if verr.HasErrors() {
		s.audit.Warning(ctx, "User registration failed", audit.Fields{"email": in.Email, "reason": verr.Error()})
		return nil, verr
	}

	hash, err := s.hasher.Derive(in.Password)
	if err != nil {
		s.audit.Error(ctx, "User registration failed", audit.Fields{"email": in.Email, "reason": err.Error()})
		return nil, err
	}

	user := &model.UserAccount{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Phone:        in.Phone,
		BirthDate:    parseDate(in.BirthDate),
		Gender:       in.Gender,
		Location:     in.Location,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a concurrent registration of the same email.
			verr = apperrors.NewValidationError()
			verr.Add("email", emailTakenMessage)
			s.audit.Warning(ctx, "User registration failed", audit.Fields{"email": in.Email, "reason": verr.Error()})
			return nil, verr
		}
		s.audit.Error(ctx, "User registration failed", audit.Fields{"email": in.Email, "reason": err.Error()})
		return nil, fmt.Errorf("%w: create user: %w", apperrors.ErrPersistence, err)
	}

	if err := sess.Establish(ctx, user.ID); err != nil {
		s.audit.Error(ctx, "User registration failed", audit.Fields{"email": in.Email, "user_id": user.ID.String(), "reason": err.Error()})
		return nil, fmt.Errorf("%w: establish session: %w", apperrors.ErrPersistence, err)
	}

	s.audit.Info(ctx, "New user registered", audit.Fields{"user_id": user.ID.String(), "email": user.Email})
	return user, nil
}

func (s *authService) validateRegistration(ctx context.Context, in RegisterInput) (*apperrors.ValidationError, error) {
	verr := s.validator.Struct(in)
	if verr == nil {
		verr = apperrors.NewValidationError()
	}
	if verr.Has("email") {
		return verr, nil
	}

	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: check email: %w", apperrors.ErrPersistence, err)
	}
	if exists {
		verr.Add("email", emailTakenMessage)
	}
	return verr, nil
}

// Login verifies the credentials and binds the account to sess. Unknown
// email and wrong password return the same error; only the audit record
// tells them apart.
func (s *authService) Login(ctx context.Context, in LoginInput, sess Session) (*model.UserAccount, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if verr := s.validator.Struct(in); verr != nil {
		s.audit.Warning(ctx, "User login failed - invalid input", audit.Fields{"email": in.Email, "reason": verr.Error()})
		return nil, verr
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.audit.Warning(ctx, "User login failed - email not found", audit.Fields{"email": in.Email})
			return nil, apperrors.ErrInvalidCredentials
		}
		s.audit.Error(ctx, "User login failed", audit.Fields{"email": in.Email, "error": err.Error()})
		return nil, fmt.Errorf("%w: find user: %w", apperrors.ErrPersistence, err)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		s.audit.Error(ctx, "User login failed", audit.Fields{"email": in.Email, "error": err.Error()})
		return nil, err
	}
	if !ok {
		s.audit.Warning(ctx, "User login failed - wrong password", audit.Fields{"email": in.Email, "user_id": user.ID.String()})
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := sess.Establish(ctx, user.ID); err != nil {
		s.audit.Error(ctx, "User login failed", audit.Fields{"email": in.Email, "error": err.Error()})
		return nil, fmt.Errorf("%w: establish session: %w", apperrors.ErrPersistence, err)
	}
	if err := sess.RegenerateID(ctx); err != nil {
		s.audit.Error(ctx, "User login failed", audit.Fields{"email": in.Email, "error": err.Error()})
		return nil, fmt.Errorf("%w: regenerate session: %w", apperrors.ErrPersistence, err)
	}

	s.audit.Info(ctx, "User logged in successfully", audit.Fields{"user_id": user.ID.String(), "email": user.Email})
	return user, nil
}

// Logout ends the session. Store failures are audited and never returned.
func (s *authService) Logout(ctx context.Context, sess Session) {
	fields := audit.Fields{"user_id": nil}
	if id, ok := sess.UserID(); ok {
		fields["user_id"] = id.String()
	}

	if err := sess.Invalidate(ctx); err != nil {
		s.audit.Error(ctx, "Logout failed", audit.Fields{"user_id": fields["user_id"], "error": err.Error()})
	}
	if err := sess.RegenerateToken(ctx); err != nil {
		s.audit.Error(ctx, "Logout failed", audit.Fields{"user_id": fields["user_id"], "error": err.Error()})
	}

	s.audit.Info(ctx, "User logged out", fields)
}

// CheckEmailExists reports whether an account uses email.
func (s *authService) CheckEmailExists(ctx context.Context, email string, requester *uuid.UUID) (bool, error) {
	email = validation.NormalizeEmail(email)
	if !s.validator.Email(email) {
		verr := apperrors.NewValidationError()
		verr.Add("email", "email must be a valid email address")
		s.audit.Warning(ctx, "Email check failed", audit.Fields{"email": email, "reason": verr.Error()})
		return false, verr
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		s.audit.Error(ctx, "Email check failed", audit.Fields{"email": email, "error": err.Error()})
		return false, fmt.Errorf("%w: check email: %w", apperrors.ErrPersistence, err)
	}

	fields := audit.Fields{"email": email, "exists": exists, "checked_by": nil}
	if requester != nil {
		fields["checked_by"] = requester.String()
	}
	s.audit.Info(ctx, "Checked if email exists", fields)
	return exists, nil
}

// SeedAccounts creates or updates accounts from provisioning data, keyed
// by email.
func (s *authService) SeedAccounts(ctx context.Context, accounts []RegisterInput) (int, error) {
	count := 0
	for i, in := range accounts {
		in.Email = validation.NormalizeEmail(in.Email)
		in.PasswordConfirmation = in.Password
		if verr := s.validator.Struct(in); verr != nil {
			s.audit.Warning(ctx, "Account provisioning failed", audit.Fields{"email": in.Email, "reason": verr.Error()})
			return count, fmt.Errorf("seed account %d (%s): %w", i, in.Email, verr)
		}

		hash, err := s.hasher.Derive(in.Password)
		if err != nil {
			s.audit.Error(ctx, "Account provisioning failed", audit.Fields{"email": in.Email, "error": err.Error()})
			return count, fmt.Errorf("seed account %s: %w", in.Email, err)
		}

		existing, err := s.users.FindByEmail(ctx, in.Email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.audit.Error(ctx, "Account provisioning failed", audit.Fields{"email": in.Email, "error": err.Error()})
			return count, fmt.Errorf("seed account %s: %w", in.Email, err)
		}

		if existing != nil {
			existing.Name = in.Name
			existing.PasswordHash = hash
			existing.Role = in.Role
			existing.Phone = in.Phone
			existing.BirthDate = parseDate(in.BirthDate)
			existing.Gender = in.Gender
			existing.Location = in.Location
			if err := s.users.Update(ctx, existing); err != nil {
				s.audit.Error(ctx, "Account provisioning failed", audit.Fields{"email": in.Email, "error": err.Error()})
				return count, fmt.Errorf("update account %s: %w", in.Email, err)
			}
			s.audit.Info(ctx, "Account provisioned", audit.Fields{"user_id": existing.ID.String(), "email": in.Email, "created": false})
		} else {
			user := &model.UserAccount{
				ID:           uuid.New(),
				Name:         in.Name,
				Email:        in.Email,
				PasswordHash: hash,
				Role:         in.Role,
				Phone:        in.Phone,
				BirthDate:    parseDate(in.BirthDate),
				Gender:       in.Gender,
				Location:     in.Location,
			}
			if err := s.users.Create(ctx, user); err != nil {
				s.audit.Error(ctx, "Account provisioning failed", audit.Fields{"email": in.Email, "error": err.Error()})
				return count, fmt.Errorf("create account %s: %w", in.Email, err)
			}
			s.audit.Info(ctx, "Account provisioned", audit.Fields{"user_id": user.ID.String(), "email": in.Email, "created": true})
		}
		count++
	}
	return count, nil
}
