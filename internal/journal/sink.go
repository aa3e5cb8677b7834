package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/heimdex/offsetcheck/internal/events"
)

const writeTimeout = 2 * time.Second

// Sink persists events. Write failures are logged and otherwise ignored.
type Sink struct {
	repo      Repository
	sessionID string
	logger    *slog.Logger
}

func NewSink(repo Repository, logger *slog.Logger) *Sink {
	return &Sink{repo: repo, logger: logger}
}

// ForSession returns a sink that tags every event with sessionID.
func (s *Sink) ForSession(sessionID string) *Sink {
	return &Sink{repo: s.repo, sessionID: sessionID, logger: s.logger}
}

func (s *Sink) Emit(e events.Event) {
	e = events.Stamp(e)
	rec := &Event{
		SessionID: s.sessionID,
		Kind:      string(e.Kind),
		File:      e.File,
		Recording: e.Recording,
		Detail:    e.Detail,
		CreatedAt: e.At,
	}
	if e.Err != nil {
		rec.Error = e.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.repo.RecordEvent(ctx, rec); err != nil && s.logger != nil {
		s.logger.Warn("failed to journal event", "event", rec.Kind, "file", rec.File, "error", err)
	}
}
