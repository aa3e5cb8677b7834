package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/heimdex/offsetcheck/internal/ffmpeg"
	"github.com/heimdex/offsetcheck/internal/ledger"
	"github.com/heimdex/offsetcheck/internal/playback"
	"github.com/heimdex/offsetcheck/internal/review"
)

type Server struct {
	httpServer *http.Server
	cfg        ServerConfig
	logger     *slog.Logger
	streamer   *playback.Streamer

	mu     sync.RWMutex
	active *activeReview
}

type ServerConfig struct {
	Bind      string
	Ledger    *ledger.Ledger
	Notifier  review.Notifier
	Doctor    *ffmpeg.CachedDoctor
	Logger    *slog.Logger
	StartTime time.Time
	Version   string
	Now       func() time.Time
}

type activeReview struct {
	review *review.Review
	decide review.DecideFunc
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = cfg.Now()
	}

	s := &Server{cfg: cfg, logger: cfg.Logger, streamer: playback.NewStreamer(cfg.Logger)}
	s.httpServer = &http.Server{
		Addr:         cfg.Bind,
		Handler:      NewRouter(s),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Present publishes r on the review page and returns at once. The decision
// arrives later through POST /record_decision.
func (s *Server) Present(_ context.Context, r *review.Review, decide review.DecideFunc) error {
	s.mu.Lock()
	s.active = &activeReview{review: r, decide: decide}
	s.mu.Unlock()

	s.logger.Info("review ready",
		"session_id", r.SessionID,
		"file", r.Filename,
		"frames", len(r.Frames),
		"addr", s.httpServer.Addr,
	)
	return nil
}

// Dismiss removes the review for sessionID from the page.
func (s *Server) Dismiss(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.review.SessionID == sessionID {
		s.active = nil
	}
}

func (s *Server) current() *activeReview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// decide routes a decision to the active session when it is for that file,
// otherwise writes it straight to the ledger.
func (s *Server) decide(ctx context.Context, filename string, d ledger.Decision, notes string) (ledger.Record, error) {
	if a := s.current(); a != nil && a.review.Filename == filename {
		return a.decide(ctx, d, notes)
	}
	if s.cfg.Ledger == nil {
		return ledger.Record{}, errors.New("no ledger configured")
	}
	rec, _, err := s.cfg.Ledger.Upsert(filename, d, s.cfg.Now(), notes)
	if err != nil {
		return ledger.Record{}, err
	}
	if s.cfg.Notifier != nil {
		if err := s.cfg.Notifier.Notify(context.WithoutCancel(ctx), rec); err != nil {
			s.logger.Warn("failed to forward decision", "file", filename, "error", err)
		}
	}
	return rec, nil
}
