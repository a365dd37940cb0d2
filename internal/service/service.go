package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"elkayan/internal/audit"
	"elkayan/internal/auth"
	"elkayan/internal/model"
	"elkayan/internal/repository"
)

const (
	dateLayout          = "2006-01-02"
	resetTokenLength    = 64
	rememberTokenLength = 60
)

// Session is the request-bound session handle a flow operates on.
type Session interface {
	ID() string
	UserID() (uuid.UUID, bool)
	Establish(ctx context.Context, userID uuid.UUID) error
	RegenerateID(ctx context.Context) error
	RegenerateToken(ctx context.Context) error
	Invalidate(ctx context.Context) error
}

// AuditLog records security-relevant outcomes. Implementations must not
// fail the caller.
type AuditLog interface {
	Info(ctx context.Context, msg string, fields audit.Fields)
	Warning(ctx context.Context, msg string, fields audit.Fields)
	Error(ctx context.Context, msg string, fields audit.Fields)
}

// Notifier delivers account mail.
type Notifier interface {
	SendPasswordResetLink(ctx context.Context, user *model.UserAccount, resetURL string) error
	SendPasswordChangedNotice(ctx context.Context, user *model.UserAccount, resetURL string) error
}

// EventPublisher announces domain events to interested listeners.
type EventPublisher interface {
	PasswordReset(ctx context.Context, user *model.UserAccount) error
}

// SessionRevoker terminates the stored sessions of a user.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID, exceptID string) (int, error)
}

// Collaborators groups the side channels a credential change reports to.
type Collaborators struct {
	Audit    AuditLog
	Notifier Notifier
	Events   EventPublisher
	Sessions SessionRevoker
}

// CredentialOptions configures reset links and post-change behaviour.
type CredentialOptions struct {
	AppURL        string
	ResetTokenTTL time.Duration
	// RevokeSessionsOnChange ends every other session of a user after a
	// password reset or change.
	RevokeSessionsOnChange bool
}

// HashResetToken returns the stored form of a reset token.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// resetLinks issues reset tokens and renders the link that carries them.
type resetLinks struct {
	tokens repository.ResetTokenRepository
	ttl    time.Duration
	appURL string
}

func (r resetLinks) issue(ctx context.Context, email string) (string, error) {
	token, err := auth.RandomString(resetTokenLength)
	if err != nil {
		return "", err
	}
	if _, err := r.tokens.Issue(ctx, email, HashResetToken(token), r.ttl); err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	return fmt.Sprintf("%s/reset-password/%s?email=%s",
		strings.TrimRight(r.appURL, "/"), token, url.QueryEscape(email)), nil
}

// credentialChanged runs the best-effort follow-ups of a password change.
// Failures are audited and never returned.
func credentialChanged(ctx context.Context, c Collaborators, opts CredentialOptions, links *resetLinks, user *model.UserAccount, keepSessionID string) {
	if links != nil {
		resetURL, err := links.issue(ctx, user.Email)
		if err != nil {
			c.Audit.Warning(ctx, "Password changed notice failed", audit.Fields{"user_id": user.ID.String(), "error": err.Error()})
		} else if err := c.Notifier.SendPasswordChangedNotice(ctx, user, resetURL); err != nil {
			c.Audit.Warning(ctx, "Password changed notice failed", audit.Fields{"user_id": user.ID.String(), "error": err.Error()})
		}
	}

	if err := c.Events.PasswordReset(ctx, user); err != nil {
		c.Audit.Warning(ctx, "Password reset event failed", audit.Fields{"user_id": user.ID.String(), "error": err.Error()})
	}

	if opts.RevokeSessionsOnChange && c.Sessions != nil {
		revoked, err := c.Sessions.RevokeUser(ctx, user.ID.String(), keepSessionID)
		if err != nil {
			c.Audit.Error(ctx, "Session revocation failed", audit.Fields{"user_id": user.ID.String(), "error": err.Error()})
			return
		}
		c.Audit.Info(ctx, "Sessions revoked after password change", audit.Fields{"user_id": user.ID.String(), "revoked": revoked})
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
