package api

import (
	"fmt"
	"time"

	"github.com/heimdex/offsetcheck/internal/ffmpeg"
	"github.com/heimdex/offsetcheck/internal/ledger"
	"github.com/heimdex/offsetcheck/internal/review"
)

type HealthResponse struct {
	Status  string               `json:"status"`
	Version string               `json:"version"`
	UptimeS int64                `json:"uptime_s"`
	Session string               `json:"session_id,omitempty"`
	FFmpeg  *ffmpeg.Capabilities `json:"ffmpeg,omitempty"`
}

type DecisionRequest struct {
	Filename string `json:"filename" validate:"required"`
	Decision string `json:"decision" validate:"decision"`
	Notes    string `json:"notes,omitempty"`
}

type DecisionResponse struct {
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	Decision  string `json:"decision"`
	Timestamp string `json:"timestamp"`
}

type RecordingResponse struct {
	Label    string `json:"label"`
	Path     string `json:"path"`
	OriginMs int64  `json:"origin_ms"`
	URL      string `json:"url"`
}

type FrameResponse struct {
	Index      int     `json:"index"`
	Annotation int     `json:"annotation"`
	Recording  string  `json:"recording"`
	Sample     string  `json:"sample"`
	StartMs    int64   `json:"start_ms"`
	EndMs      int64   `json:"end_ms"`
	TimeMs     int64   `json:"time_ms"`
	Text       string  `json:"text"`
	Seconds    float64 `json:"seconds"`
	URL        string  `json:"url"`
	PlayURL    string  `json:"play_url"`
}

type SessionResponse struct {
	SessionID  string              `json:"session_id"`
	Filename   string              `json:"filename"`
	Size       int64               `json:"size"`
	Eligible   int                 `json:"eligible"`
	Remaining  int                 `json:"remaining"`
	Policy     string              `json:"policy"`
	Targets    int                 `json:"targets"`
	Attempted  int                 `json:"attempted"`
	Recordings []RecordingResponse `json:"recordings"`
	Frames     []FrameResponse     `json:"frames"`
	StartedAt  string              `json:"started_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SessionToResponse(r *review.Review) SessionResponse {
	resp := SessionResponse{
		SessionID:  r.SessionID,
		Filename:   r.Filename,
		Size:       r.Candidate.Size,
		Eligible:   r.Eligible,
		Remaining:  r.Remaining,
		Policy:     r.Policy.String(),
		Targets:    len(r.Targets),
		Attempted:  r.Attempted,
		Recordings: make([]RecordingResponse, len(r.Recordings)),
		Frames:     make([]FrameResponse, len(r.Frames)),
		StartedAt:  r.StartedAt.Format(time.RFC3339),
	}
	recIndex := make(map[string]int, len(r.Recordings))
	for i, rec := range r.Recordings {
		recIndex[rec.Path] = i
		resp.Recordings[i] = RecordingResponse{
			Label:    rec.Label,
			Path:     rec.Path,
			OriginMs: rec.OriginMs,
			URL:      fmt.Sprintf("/recordings/%d", i),
		}
	}
	for i, f := range r.Frames {
		resp.Frames[i] = FrameResponse{
			Index:      i,
			Annotation: f.Annotation,
			Recording:  f.Recording.Label,
			Sample:     f.Fraction.Label,
			StartMs:    f.Interval.StartMs,
			EndMs:      f.Interval.EndMs,
			TimeMs:     f.TimeMs,
			Text:       f.Interval.Text,
			Seconds:    f.Seconds(),
			URL:        fmt.Sprintf("/frames/%d", i),
			PlayURL:    fmt.Sprintf("/recordings/%d#t=%.3f", recIndex[f.Recording.Path], f.Seconds()),
		}
	}
	return resp
}

func RecordToResponse(rec ledger.Record) DecisionResponse {
	return DecisionResponse{
		Status:    "success",
		Filename:  rec.Filename,
		Decision:  string(rec.Decision),
		Timestamp: rec.Timestamp,
	}
}
