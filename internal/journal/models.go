// Package journal records review sessions and best-effort events in sqlite.
package journal

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusSampling   = "sampling"
	StatusPresenting = "presenting"
	StatusDecided    = "decided"
	StatusTimedOut   = "timed_out"
	StatusFailed     = "failed"
	StatusAbandoned  = "abandoned"
)

// Session is one pass of the review driver over a single transcript.
type Session struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	Policy     string     `json:"policy"`
	Recordings int        `json:"recordings"`
	Targets    int        `json:"targets"`
	Attempted  int        `json:"attempted"`
	Extracted  int        `json:"extracted"`
	Status     string     `json:"status"`
	Decision   string     `json:"decision,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether the session reached a terminal status.
func (s *Session) Finished() bool {
	switch s.Status {
	case StatusSampling, StatusPresenting:
		return false
	}
	return true
}

// Event is a persisted best-effort notice.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Kind      string    `json:"kind"`
	File      string    `json:"file,omitempty"`
	Recording string    `json:"recording,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewID() string {
	return uuid.NewString()
}
