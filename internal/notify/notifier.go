// Package notify delivers account mail and domain events through a message
// broker. Mail rendering and sending happen in a downstream consumer.
package notify

import (
	"context"
	"time"

	"elkayan/internal/model"
)

// Routing keys.
const (
	KeyPasswordResetLink = "mail.password_reset_link"
	KeyPasswordChanged   = "mail.password_changed"
	KeyPasswordReset     = "user.password_reset"
)

// MailMessage asks the mailer to send one account mail.
type MailMessage struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	ResetURL string    `json:"reset_url"`
	SentAt   time.Time `json:"sent_at"`
}

// PasswordResetEvent is published after an account's password changes.
type PasswordResetEvent struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier turns credential flow outcomes into broker messages.
type Notifier struct {
	pub JSONPublisher
	now func() time.Time
}

// NewNotifier creates a Notifier publishing through pub.
func NewNotifier(pub JSONPublisher) *Notifier {
	return &Notifier{pub: pub, now: time.Now}
}

func (n *Notifier) mail(user *model.UserAccount, resetURL string) MailMessage {
	return MailMessage{
		UserID:   user.ID.String(),
		Email:    user.Email,
		Name:     user.Name,
		ResetURL: resetURL,
		SentAt:   n.now().UTC(),
	}
}

// SendPasswordResetLink queues the forgot-password mail.
func (n *Notifier) SendPasswordResetLink(ctx context.Context, user *model.UserAccount, resetURL string) error {
	return n.pub.PublishJSON(ctx, KeyPasswordResetLink, n.mail(user, resetURL))
}

// SendPasswordChangedNotice queues the password-changed mail. It carries a
// reset link so the owner can recover if the change was not theirs.
func (n *Notifier) SendPasswordChangedNotice(ctx context.Context, user *model.UserAccount, resetURL string) error {
	return n.pub.PublishJSON(ctx, KeyPasswordChanged, n.mail(user, resetURL))
}

// PasswordReset publishes the password reset domain event.
func (n *Notifier) PasswordReset(ctx context.Context, user *model.UserAccount) error {
	return n.pub.PublishJSON(ctx, KeyPasswordReset, PasswordResetEvent{
		UserID:     user.ID.String(),
		Email:      user.Email,
		OccurredAt: n.now().UTC(),
	})
}
