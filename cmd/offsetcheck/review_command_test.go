package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/heimdex/offsetcheck/internal/db"
	"github.com/heimdex/offsetcheck/internal/events"
	"github.com/heimdex/offsetcheck/internal/journal"
)

func TestReviewSinks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	database, err := db.New(filepath.Join(t.TempDir(), "offsetcheck.db"), logger)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	defer database.Close()
	repo := journal.NewRepository(database.Conn())

	logged := &events.Recorder{}
	sinks := newReviewSinks(logged, journal.NewSink(repo, logger))

	sinks.scan.Emit(events.Event{Kind: events.KindBelowThreshold, File: "small.eaf"})
	sinks.scan.Emit(events.Event{Kind: events.KindParseFailed, File: "broken.eaf", Err: errors.New("eof")})
	session := sinks.session("s-1")
	for i := 0; i < 3; i++ {
		session.Emit(events.Event{Kind: events.KindExtractFailed, File: "BF01F28WDC.eaf", Recording: "BF1c.mp4"})
	}

	if got := len(logged.Events()); got != 5 {
		t.Errorf("logged events = %d, want 5", got)
	}

	stored, err := repo.ListEvents(context.Background(), "", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 {
		t.Fatalf("journaled events = %d, want 3 (session events only)", len(stored))
	}
	for _, e := range stored {
		if e.SessionID != "s-1" || e.Kind != string(events.KindExtractFailed) {
			t.Errorf("journaled event = %+v", e)
		}
	}
}

func TestReviewSinks_NoJournal(t *testing.T) {
	logged := &events.Recorder{}
	sinks := newReviewSinks(logged, nil)

	sinks.scan.Emit(events.Event{Kind: events.KindTierMissing, File: "a.eaf"})
	sinks.session("s-1").Emit(events.Event{Kind: events.KindNoRecordings, File: "b.eaf"})

	if got := len(logged.Events()); got != 2 {
		t.Errorf("logged events = %d, want 2", got)
	}
}
