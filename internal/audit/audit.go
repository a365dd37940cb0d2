// Package audit records security-relevant outcomes of the credential flows.
//
// Flows receive a *Logger. Writes go to a Sink; a failing or panicking sink
// never reaches the caller and is reported on a fallback zap logger instead.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of an audit entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Fields are the structured key/value pairs attached to an entry.
type Fields map[string]any

// Entry is one audit record.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
	Fields  Fields
}

// Sink receives audit entries.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// Redacted replaces values of credential-bearing keys.
const Redacted = "[redacted]"

var sensitiveKeys = []string{"password", "hmac", "digest", "token", "secret"}

// Logger is the audit capability handed to each flow.
type Logger struct {
	sink     Sink
	fallback *zap.Logger
	now      func() time.Time
}

// NewLogger creates a Logger writing to sink. Sink failures are reported on
// fallback; a nil fallback discards them.
func NewLogger(sink Sink, fallback *zap.Logger) *Logger {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return &Logger{sink: sink, fallback: fallback, now: time.Now}
}

// Info records a successful or informational outcome.
func (l *Logger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelInfo, msg, fields)
}

// Warning records a rejected attempt.
func (l *Logger) Warning(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelWarning, msg, fields)
}

// Error records a failure.
func (l *Logger) Error(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *Logger) log(ctx context.Context, level Level, msg string, fields Fields) {
	if l == nil || l.sink == nil {
		return
	}
	entry := Entry{
		Time:    l.now().UTC(),
		Level:   level,
		Message: msg,
		Fields:  redact(fields),
	}

	defer func() {
		if r := recover(); r != nil {
			l.fallback.Error("audit sink panicked",
				zap.String("audit_message", msg),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := l.sink.Write(ctx, entry); err != nil {
		l.fallback.Error("audit sink write failed",
			zap.String("audit_message", msg),
			zap.String("audit_level", string(level)),
			zap.Error(err))
	}
}

func redact(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if isSensitive(k) {
			out[k] = Redacted
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
