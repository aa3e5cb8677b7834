// Package review drives one review session: pick the next unprocessed
// eligible transcript, gather its frames, hand them to a presenter and record
// the reviewer's decision in the ledger.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/heimdex/offsetcheck/internal/eaf"
	"github.com/heimdex/offsetcheck/internal/eligibility"
	"github.com/heimdex/offsetcheck/internal/events"
	"github.com/heimdex/offsetcheck/internal/journal"
	"github.com/heimdex/offsetcheck/internal/ledger"
	"github.com/heimdex/offsetcheck/internal/logging"
	"github.com/heimdex/offsetcheck/internal/sampler"
)

// Scanner produces the eligible transcripts under a root, in a stable order.
type Scanner interface {
	Scan(ctx context.Context, root string) ([]eligibility.Candidate, error)
}

// Locator resolves the recordings for a transcript file name.
type Locator interface {
	Locate(filename string) []string
}

// ExtractorFactory builds a frame extractor that writes into workDir.
type ExtractorFactory func(workDir string) sampler.Extractor

// DecideFunc records the reviewer's verdict for the presented transcript.
type DecideFunc func(ctx context.Context, decision ledger.Decision, notes string) (ledger.Record, error)

// Presenter shows a review to a human. Present may block until decide has
// been called, or return at once and call decide later from another goroutine.
type Presenter interface {
	Present(ctx context.Context, r *Review, decide DecideFunc) error
}

// Dismisser is implemented by presenters that hold on to a review and must be
// told when its session is over.
type Dismisser interface {
	Dismiss(sessionID string)
}

// Notifier forwards a persisted decision elsewhere.
type Notifier interface {
	Notify(ctx context.Context, rec ledger.Record) error
}

// SessionRecorder keeps a history of sessions.
type SessionRecorder interface {
	CreateSession(ctx context.Context, s *journal.Session) error
	UpdateSession(ctx context.Context, s *journal.Session) error
}

// Review is everything a presenter needs for one transcript.
type Review struct {
	SessionID  string
	Candidate  eligibility.Candidate
	Filename   string
	Eligible   int
	Remaining  int // unprocessed eligible transcripts, this one included
	Policy     sampler.Policy
	Recordings []sampler.Recording
	Targets    []eaf.Interval
	Attempted  int
	Frames     []sampler.Frame
	StartedAt  time.Time
}

// Outcome describes how a call to Next ended.
type Outcome struct {
	SessionID   string
	Filename    string
	NothingToDo bool
	TimedOut    bool
	Eligible    int
	Remaining   int
	Attempted   int
	Extracted   int
	Record      *ledger.Record
}

// Config holds the per-process review settings.
type Config struct {
	EAFDir       string
	TargetLabel  string
	Policy       sampler.Policy
	DecisionWait time.Duration // 0 waits until the context ends
	TempDir      string        // parent of the per-session frame directory; "" for the OS default
}

// Deps are the collaborators a Driver needs. Notifier and Sessions are optional.
type Deps struct {
	Scanner      Scanner
	Open         eligibility.OpenFunc
	Locator      Locator
	NewExtractor ExtractorFactory
	Ledger       *ledger.Ledger
	Presenter    Presenter
	Notifier     Notifier
	Sessions     SessionRecorder
	Sink         events.Sink
	SessionSink  func(sessionID string) events.Sink // replaces Sink for one session's events
	Logger       *slog.Logger
	Now          func() time.Time
	NewID        func() string
}

// Driver runs SCAN, SELECT, SAMPLE, PRESENT and PERSIST for one transcript
// per call. It carries no state between calls.
type Driver struct {
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) (*Driver, error) {
	switch {
	case deps.Scanner == nil:
		return nil, errors.New("review: scanner is required")
	case deps.Locator == nil:
		return nil, errors.New("review: locator is required")
	case deps.NewExtractor == nil:
		return nil, errors.New("review: extractor factory is required")
	case deps.Ledger == nil:
		return nil, errors.New("review: ledger is required")
	case deps.Presenter == nil:
		return nil, errors.New("review: presenter is required")
	}
	if cfg.TargetLabel == "" {
		cfg.TargetLabel = eligibility.DefaultTargetLabel
	}
	if cfg.Policy == "" {
		cfg.Policy = sampler.PolicyMidpoint
	}
	if deps.Open == nil {
		deps.Open = eligibility.OpenEAF
	}
	if deps.Sink == nil {
		deps.Sink = events.Discard
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = journal.NewID
	}
	return &Driver{cfg: cfg, deps: deps}, nil
}

// Selection is the result of SCAN and SELECT.
type Selection struct {
	Next      *eligibility.Candidate
	Eligible  int
	Remaining int
}

// Select scans the transcript root and returns the first eligible transcript
// that has no ledger row. The ledger is re-read first so decisions written by
// other processes are honoured.
func (d *Driver) Select(ctx context.Context) (Selection, error) {
	candidates, err := d.deps.Scanner.Scan(ctx, d.cfg.EAFDir)
	if err != nil {
		return Selection{}, fmt.Errorf("scan transcripts: %w", err)
	}
	if err := d.deps.Ledger.Reload(); err != nil {
		return Selection{}, fmt.Errorf("load ledger: %w", err)
	}

	sel := Selection{Eligible: len(candidates)}
	for i := range candidates {
		if d.deps.Ledger.IsProcessed(candidates[i].Name.Filename) {
			continue
		}
		if sel.Next == nil {
			c := candidates[i]
			sel.Next = &c
		}
		sel.Remaining++
	}
	return sel, nil
}

// Next reviews one transcript. When every eligible transcript already has a
// decision it returns an Outcome with NothingToDo set and a nil error.
func (d *Driver) Next(ctx context.Context) (Outcome, error) {
	sel, err := d.Select(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if sel.Next == nil {
		d.deps.Logger.Info("nothing to review", "eligible", sel.Eligible)
		return Outcome{NothingToDo: true, Eligible: sel.Eligible}, nil
	}

	cand := *sel.Next
	sessionID := d.deps.NewID()
	logger := logging.WithFile(logging.WithSessionID(d.deps.Logger, sessionID), cand.Name.Filename)
	sink := d.deps.Sink
	if d.deps.SessionSink != nil {
		if s := d.deps.SessionSink(sessionID); s != nil {
			sink = s
		}
	}

	session := &journal.Session{
		ID:        sessionID,
		Filename:  cand.Name.Filename,
		Policy:    string(d.cfg.Policy),
		Status:    journal.StatusSampling,
		StartedAt: d.deps.Now(),
	}
	d.recordSession(ctx, logger, session, true)

	out := Outcome{
		SessionID: sessionID,
		Filename:  cand.Name.Filename,
		Eligible:  sel.Eligible,
		Remaining: sel.Remaining,
	}

	workDir, err := os.MkdirTemp(d.cfg.TempDir, "offsetcheck-")
	if err != nil {
		d.finish(logger, session, journal.StatusFailed, err.Error())
		return out, fmt.Errorf("create frame dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("failed to remove frame dir", "dir", workDir, "error", err)
		}
	}()

	rv := d.sample(ctx, logger, sink, cand, workDir)
	rv.SessionID = sessionID
	rv.Eligible = sel.Eligible
	rv.Remaining = sel.Remaining
	rv.StartedAt = session.StartedAt

	session.Recordings = len(rv.Recordings)
	session.Targets = len(rv.Targets)
	session.Attempted = rv.Attempted
	session.Extracted = len(rv.Frames)
	session.Status = journal.StatusPresenting
	d.recordSession(ctx, logger, session, false)

	out.Attempted = rv.Attempted
	out.Extracted = len(rv.Frames)

	rec, err := d.present(ctx, logger, sink, rv)
	if dis, ok := d.deps.Presenter.(Dismisser); ok {
		dis.Dismiss(sessionID)
	}
	switch {
	case err == nil:
		out.Record = &rec
		session.Decision = string(rec.Decision)
		session.Notes = rec.Notes
		d.finish(logger, session, journal.StatusDecided, "")
		logger.Info("decision recorded", "decision", rec.Decision, "frames", len(rv.Frames))
		return out, nil
	case errors.Is(err, errDecisionTimeout):
		out.TimedOut = true
		d.finish(logger, session, journal.StatusTimedOut, err.Error())
		logger.Info("no decision within wait window", "wait", d.cfg.DecisionWait)
		return out, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.finish(logger, session, journal.StatusAbandoned, err.Error())
		return out, err
	default:
		d.finish(logger, session, journal.StatusFailed, err.Error())
		return out, err
	}
}

// sample runs the locator and sampler for the selected transcript only.
func (d *Driver) sample(ctx context.Context, logger *slog.Logger, sink events.Sink, cand eligibility.Candidate, workDir string) *Review {
	rv := &Review{
		Candidate: cand,
		Filename:  cand.Name.Filename,
		Policy:    d.cfg.Policy,
	}

	var descs []eaf.MediaDescriptor
	reader, err := d.deps.Open(cand.Path)
	if err != nil {
		sink.Emit(events.Event{Kind: events.KindParseFailed, File: cand.Name.Filename, Err: err})
	} else {
		descs = reader.MediaDescriptors()
		intervals, err := reader.AnnotationData(cand.Name.DominantTier())
		if err != nil {
			sink.Emit(events.Event{Kind: events.KindTierMissing, File: cand.Name.Filename, Err: err})
		}
		rv.Targets = eligibility.SelectTargets(intervals, d.cfg.TargetLabel)
	}
	if len(rv.Targets) == 0 {
		sink.Emit(events.Event{Kind: events.KindNoTargets, File: cand.Name.Filename, Detail: "label " + d.cfg.TargetLabel})
	}

	paths := d.deps.Locator.Locate(cand.Name.Filename)
	if len(paths) == 0 {
		sink.Emit(events.Event{Kind: events.KindNoRecordings, File: cand.Name.Filename})
	}
	rv.Recordings = sampler.Recordings(paths, descs)

	s := sampler.New(d.cfg.Policy, d.deps.NewExtractor(workDir), sink, logger)
	res := s.Sample(ctx, cand.Name.Filename, rv.Targets, rv.Recordings)
	rv.Attempted = res.Attempted
	rv.Frames = res.Frames

	logger.Info("frames sampled",
		"targets", len(rv.Targets),
		"recordings", len(rv.Recordings),
		"attempted", res.Attempted,
		"extracted", len(res.Frames),
		"dropped", res.Dropped(),
	)
	return rv
}

var errDecisionTimeout = errors.New("no decision within the wait window")

// present hands the review over and waits for the first decision. The ledger
// write happens inside the decide callback so the caller learns whether it
// succeeded.
func (d *Driver) present(ctx context.Context, logger *slog.Logger, sink events.Sink, rv *Review) (ledger.Record, error) {
	decided := make(chan ledger.Record, 1)
	var once sync.Once

	decide := func(cbCtx context.Context, decision ledger.Decision, notes string) (ledger.Record, error) {
		if !decision.Valid() {
			return ledger.Record{}, ledger.ErrInvalidDecision
		}
		rec, _, err := d.deps.Ledger.Upsert(rv.Filename, decision, d.deps.Now(), notes)
		if err != nil {
			logger.Error("failed to write ledger", "error", err)
			return ledger.Record{}, fmt.Errorf("persist decision: %w", err)
		}
		d.notify(cbCtx, sink, rec)
		once.Do(func() { decided <- rec })
		return rec, nil
	}

	waitCtx := ctx
	if d.cfg.DecisionWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.cfg.DecisionWait)
		defer cancel()
	}

	if err := d.deps.Presenter.Present(waitCtx, rv, decide); err != nil {
		select {
		case rec := <-decided:
			return rec, nil
		default:
		}
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return ledger.Record{}, errDecisionTimeout
		}
		return ledger.Record{}, fmt.Errorf("present: %w", err)
	}

	select {
	case rec := <-decided:
		return rec, nil
	case <-waitCtx.Done():
		select {
		case rec := <-decided:
			return rec, nil
		default:
		}
		if ctx.Err() != nil {
			return ledger.Record{}, ctx.Err()
		}
		return ledger.Record{}, errDecisionTimeout
	}
}

func (d *Driver) notify(ctx context.Context, sink events.Sink, rec ledger.Record) {
	if d.deps.Notifier == nil {
		return
	}
	if err := d.deps.Notifier.Notify(context.WithoutCancel(ctx), rec); err != nil {
		sink.Emit(events.Event{Kind: events.KindNotifyFailed, File: rec.Filename, Detail: retryHint(err), Err: err})
	}
}

// retryHint labels a forwarding failure. Errors that do not classify
// themselves, such as transport failures, count as retryable.
func retryHint(err error) string {
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) && !r.IsRetryable() {
		return "permanent"
	}
	return "retryable"
}

func (d *Driver) recordSession(ctx context.Context, logger *slog.Logger, s *journal.Session, create bool) {
	if d.deps.Sessions == nil {
		return
	}
	var err error
	if create {
		err = d.deps.Sessions.CreateSession(context.WithoutCancel(ctx), s)
	} else {
		err = d.deps.Sessions.UpdateSession(context.WithoutCancel(ctx), s)
	}
	if err != nil {
		logger.Warn("failed to journal session", "status", s.Status, "error", err)
	}
}

func (d *Driver) finish(logger *slog.Logger, s *journal.Session, status, errMsg string) {
	now := d.deps.Now()
	s.Status = status
	s.Error = errMsg
	s.FinishedAt = &now
	d.recordSession(context.Background(), logger, s, false)
}
