package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"elkayan/internal/model"
)

// ZapSink writes entries as structured zap log lines.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink on logger, named "audit".
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("audit")}
}

func (s *ZapSink) Write(_ context.Context, entry Entry) error {
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zf := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, entry.Fields[k]))
	}

	switch entry.Level {
	case LevelWarning:
		s.logger.Warn(entry.Message, zf...)
	case LevelError:
		s.logger.Error(entry.Message, zf...)
	default:
		s.logger.Info(entry.Message, zf...)
	}
	return nil
}

// EntryWriter persists audit rows.
type EntryWriter interface {
	Create(ctx context.Context, entry *model.AuditEntry) error
}

// RepositorySink persists entries through an EntryWriter.
type RepositorySink struct {
	repo EntryWriter
}

// NewRepositorySink creates a sink backed by repo.
func NewRepositorySink(repo EntryWriter) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Write(ctx context.Context, entry Entry) error {
	var encoded string
	if len(entry.Fields) > 0 {
		payload, err := json.Marshal(entry.Fields)
		if err != nil {
			return fmt.Errorf("marshal audit fields: %w", err)
		}
		encoded = string(payload)
	}
	return s.repo.Create(ctx, &model.AuditEntry{
		Level:     string(entry.Level),
		Message:   entry.Message,
		Fields:    encoded,
		CreatedAt: entry.Time,
	})
}

// Tee writes every entry to all sinks and joins their errors.
type Tee []Sink

func (t Tee) Write(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range t {
		if err := s.Write(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps entries in memory. It backs tests and local debugging.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Write(_ context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Find returns the first entry with message msg.
func (r *Recorder) Find(msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Message == msg {
			return e, true
		}
	}
	return Entry{}, false
}
