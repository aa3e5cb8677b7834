package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/offsetcheck/internal/ledger"
	"github.com/heimdex/offsetcheck/internal/validate"
)

const maxDecisionBody = 64 << 10

func NewRouter(s *Server) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(LoggingMiddleware(s.logger))
	r.Use(CORSMiddleware())

	r.Get("/", pageHandler(s))
	r.Get("/health", healthHandler(s))
	r.Get("/session", sessionHandler(s))
	r.Get("/frames/{n}", frameHandler(s))
	r.Get("/recordings/{n}", recordingHandler(s))
	r.Head("/recordings/{n}", recordingHandler(s))
	r.Post("/record_decision", decisionHandler(s))

	return r
}

func healthHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: s.cfg.Version,
			UptimeS: int64(time.Since(s.cfg.StartTime).Seconds()),
		}
		if a := s.current(); a != nil {
			resp.Session = a.review.SessionID
		}
		if s.cfg.Doctor != nil {
			resp.FFmpeg = s.cfg.Doctor.Get(r.Context())
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func sessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := s.current()
		if a == nil {
			WriteError(w, http.StatusNotFound, "no review in progress", "NO_SESSION")
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(a.review))
	}
}

func frameHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := s.current()
		if a == nil {
			WriteError(w, http.StatusNotFound, "no review in progress", "NO_SESSION")
			return
		}
		n, err := strconv.Atoi(chi.URLParam(r, "n"))
		if err != nil || n < 0 || n >= len(a.review.Frames) {
			WriteError(w, http.StatusNotFound, "frame not found", "NOT_FOUND")
			return
		}
		data := a.review.Frames[n].Data
		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func recordingHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := s.current()
		if a == nil {
			WriteError(w, http.StatusNotFound, "no review in progress", "NO_SESSION")
			return
		}
		n, err := strconv.Atoi(chi.URLParam(r, "n"))
		if err != nil || n < 0 || n >= len(a.review.Recordings) {
			WriteError(w, http.StatusNotFound, "recording not found", "NOT_FOUND")
			return
		}
		path := a.review.Recordings[n].Path
		if err := s.streamer.Stream(w, r, path); err != nil {
			s.logger.Error("recording stream failed", "error", err, "path", path)
		}
	}
}

func decisionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DecisionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDecisionBody)).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := validate.Struct(req); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		decision, err := ledger.ParseDecision(req.Decision)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		rec, err := s.decide(r.Context(), req.Filename, decision, req.Notes)
		if err != nil {
			if errors.Is(err, ledger.ErrInvalidDecision) {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			s.logger.Error("failed to record decision", "file", req.Filename, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to record decision", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, RecordToResponse(rec))
	}
}
