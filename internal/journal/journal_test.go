package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimdex/offsetcheck/internal/db"
	"github.com/heimdex/offsetcheck/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *SQLiteRepository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "journal.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

func TestSessionLifecycle(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	s := &Session{
		ID:        NewID(),
		Filename:  "BF01F28WDC.eaf",
		Policy:    "midpoint",
		Status:    StatusSampling,
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := repo.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	done := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	s.Recordings, s.Targets, s.Attempted, s.Extracted = 1, 6, 6, 5
	s.Status = StatusDecided
	s.Decision = "accept"
	s.FinishedAt = &done
	if err := repo.UpdateSession(ctx, s); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}

	got, err := repo.GetSession(ctx, s.ID)
	if err != nil || got == nil {
		t.Fatalf("GetSession() = %v, %v", got, err)
	}
	if got.Status != StatusDecided || got.Decision != "accept" || got.Extracted != 5 {
		t.Errorf("session = %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(done) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, done)
	}
	if !got.Finished() {
		t.Error("Finished() = false for decided session")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	repo := setupTestDB(t)
	got, err := repo.GetSession(context.Background(), "missing")
	if err != nil || got != nil {
		t.Errorf("GetSession(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestListSessionsByFile(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, name := range []string{"a.eaf", "b.eaf", "a.eaf"} {
		s := &Session{ID: NewID(), Filename: name, Policy: "midpoint", Status: StatusTimedOut, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListSessionsByFile(ctx, "a.eaf")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].StartedAt.Before(got[1].StartedAt) {
		t.Errorf("ListSessionsByFile() = %+v", got)
	}

	all, err := repo.ListSessions(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Filename != "a.eaf" {
		t.Errorf("ListSessions(2) = %+v, want newest first", all)
	}
}

func TestSink_RecordsEvents(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	s := &Session{ID: NewID(), Filename: "BF01F28WDC.eaf", Policy: "midpoint", Status: StatusSampling, StartedAt: time.Now()}
	if err := repo.CreateSession(ctx, s); err != nil {
		t.Fatal(err)
	}

	sink := NewSink(repo, testLogger())
	sink.Emit(events.Event{Kind: events.KindParseFailed, File: "broken.eaf", Err: errors.New("unexpected EOF")})
	sink.ForSession(s.ID).Emit(events.Event{Kind: events.KindExtractFailed, File: s.Filename, Recording: "/v/BF1c.mp4", Detail: "annotation 2"})

	got, err := repo.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("ListEvents() = %d events, want 2", len(got))
	}
	if got[0].Kind != string(events.KindExtractFailed) || got[0].SessionID != s.ID {
		t.Errorf("newest event = %+v", got[0])
	}
	if got[1].Error != "unexpected EOF" || got[1].SessionID != "" {
		t.Errorf("oldest event = %+v", got[1])
	}

	filtered, err := repo.ListEvents(ctx, string(events.KindParseFailed), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].File != "broken.eaf" {
		t.Errorf("filtered events = %+v", filtered)
	}

	counts, err := repo.CountEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["parse_failed"] != 1 || counts["extract_failed"] != 1 {
		t.Errorf("CountEvents() = %v", counts)
	}
}
