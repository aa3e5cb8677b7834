package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/offsetcheck/internal/eaf"
	"github.com/heimdex/offsetcheck/internal/ffmpeg"
	"github.com/heimdex/offsetcheck/internal/ledger"
	"github.com/heimdex/offsetcheck/internal/review"
	"github.com/heimdex/offsetcheck/internal/sampler"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu      sync.Mutex
	records []ledger.Record
}

func (n *recordingNotifier) Notify(_ context.Context, rec ledger.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
	return nil
}

type fakeProber struct{}

func (fakeProber) Binary() string { return "/usr/bin/ffmpeg" }
func (fakeProber) Version(context.Context) (string, error) {
	return "ffmpeg version 6.1", nil
}

func newTestServer(t *testing.T) (*Server, *ledger.Ledger, *recordingNotifier) {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "decisions.csv"))
	if err != nil {
		t.Fatalf("ledger.Open() error = %v", err)
	}
	n := &recordingNotifier{}
	s := NewServer(ServerConfig{
		Bind:     "127.0.0.1:0",
		Ledger:   l,
		Notifier: n,
		Doctor:   ffmpeg.NewCachedDoctor(fakeProber{}, testLogger()),
		Logger:   testLogger(),
		Version:  "test",
		Now:      func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) },
	})
	return s, l, n
}

func testReview() *review.Review {
	rec := sampler.Recording{Path: "/videos/BF01M03_1.mp4", Label: "Video 1"}
	target := eaf.Interval{StartMs: 1000, EndMs: 3000, Text: "good"}
	frame := func(annotation int, timeMs int64) sampler.Frame {
		return sampler.Frame{
			Point: sampler.Point{
				Annotation: annotation,
				Interval:   target,
				Recording:  rec,
				Fraction:   sampler.Fraction{Label: "midpoint", Value: 0.475},
				TimeMs:     timeMs,
			},
			Data: pngHeader,
		}
	}
	return &review.Review{
		SessionID:  "sess-1",
		Filename:   "BF01M03.eaf",
		Eligible:   4,
		Remaining:  2,
		Policy:     sampler.PolicyMidpoint,
		Recordings: []sampler.Recording{rec},
		Targets:    []eaf.Interval{target, target},
		Attempted:  2,
		Frames:     []sampler.Frame{frame(1, 1950), frame(2, 1950)},
		StartedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	caps, ok := body["ffmpeg"].(map[string]interface{})
	if !ok {
		t.Fatal("ffmpeg capabilities missing")
	}
	if caps["available"] != true {
		t.Errorf("ffmpeg.available = %v, want true", caps["available"])
	}
}

func TestSession_NoneActive(t *testing.T) {
	s, _, _ := newTestServer(t)

	if rr := do(t, s, http.MethodGet, "/session", ""); rr.Code != http.StatusNotFound {
		t.Errorf("/session status = %d, want 404", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/frames/0", ""); rr.Code != http.StatusNotFound {
		t.Errorf("/frames/0 status = %d, want 404", rr.Code)
	}

	rr := do(t, s, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "No review in progress") {
		t.Errorf("page = %d %q", rr.Code, rr.Body.String())
	}
}

func TestPresent_ExposesSession(t *testing.T) {
	s, _, _ := newTestServer(t)
	if err := s.Present(context.Background(), testReview(), nil); err != nil {
		t.Fatalf("Present() error = %v", err)
	}

	rr := do(t, s, http.MethodGet, "/session", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/session status = %d", rr.Code)
	}
	var resp SessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Filename != "BF01M03.eaf" || resp.Remaining != 2 || len(resp.Frames) != 2 {
		t.Errorf("session = %+v", resp)
	}
	if resp.Frames[1].URL != "/frames/1" || resp.Frames[1].TimeMs != 1950 || resp.Frames[1].Recording != "Video 1" {
		t.Errorf("frame[1] = %+v", resp.Frames[1])
	}

	rr = do(t, s, http.MethodGet, "/frames/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/frames/1 status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	for _, path := range []string{"/frames/2", "/frames/-1", "/frames/x"} {
		if rr := do(t, s, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rr.Code)
		}
	}

	rr = do(t, s, http.MethodGet, "/", "")
	page := rr.Body.String()
	if !strings.Contains(page, "BF01M03.eaf") || strings.Count(page, `<img src="/frames/`) != 2 {
		t.Errorf("page missing session content: %q", page)
	}
}

func TestRecordingStream(t *testing.T) {
	s, _, _ := newTestServer(t)
	rv := testReview()
	path := filepath.Join(t.TempDir(), "BF1c.mp4")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	rv.Recordings[0].Path = path
	for i := range rv.Frames {
		rv.Frames[i].Recording.Path = path
	}
	s.Present(context.Background(), rv, nil)

	var resp SessionResponse
	json.Unmarshal(do(t, s, http.MethodGet, "/session", "").Body.Bytes(), &resp)
	if resp.Frames[0].PlayURL != "/recordings/0#t=1.950" {
		t.Errorf("PlayURL = %q", resp.Frames[0].PlayURL)
	}

	req := httptest.NewRequest(http.MethodGet, "/recordings/0", nil)
	req.Header.Set("Range", "bytes=4-")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusPartialContent || rr.Body.String() != "456789" {
		t.Errorf("range response = %d %q", rr.Code, rr.Body.String())
	}

	if rr := do(t, s, http.MethodGet, "/recordings/1", ""); rr.Code != http.StatusNotFound {
		t.Errorf("/recordings/1 status = %d, want 404", rr.Code)
	}
}

func TestDismiss(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.Present(context.Background(), testReview(), nil)

	s.Dismiss("other-session")
	if s.current() == nil {
		t.Fatal("Dismiss() with a different id should keep the review")
	}
	s.Dismiss("sess-1")
	if s.current() != nil {
		t.Fatal("Dismiss() should clear the review")
	}
}

func TestRecordDecision_RoutesToActiveSession(t *testing.T) {
	s, l, n := newTestServer(t)

	var gotDecision ledger.Decision
	var gotNotes string
	decide := func(_ context.Context, d ledger.Decision, notes string) (ledger.Record, error) {
		gotDecision, gotNotes = d, notes
		return ledger.Record{Filename: "BF01M03.eaf", Decision: d, Timestamp: "t", Notes: notes}, nil
	}
	s.Present(context.Background(), testReview(), decide)

	rr := do(t, s, http.MethodPost, "/record_decision", `{"filename":"BF01M03.eaf","decision":"Accept","notes":"hand visible"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	if body := decodeJSONBody(t, rr); body["status"] != "success" {
		t.Errorf("status = %v, want success", body["status"])
	}
	if gotDecision != ledger.Accept || gotNotes != "hand visible" {
		t.Errorf("decide got %q %q", gotDecision, gotNotes)
	}
	// the session callback owns persistence and forwarding
	if len(l.Records()) != 0 || len(n.records) != 0 {
		t.Errorf("server wrote directly: records=%d notified=%d", len(l.Records()), len(n.records))
	}
}

func TestRecordDecision_OtherFileGoesToLedger(t *testing.T) {
	s, l, n := newTestServer(t)
	s.Present(context.Background(), testReview(), func(context.Context, ledger.Decision, string) (ledger.Record, error) {
		t.Error("session callback should not be called for another file")
		return ledger.Record{}, nil
	})

	rr := do(t, s, http.MethodPost, "/record_decision", `{"filename":"GW03M02.eaf","decision":"reject"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	rec, ok := l.Lookup("GW03M02.eaf")
	if !ok || rec.Decision != ledger.Reject {
		t.Fatalf("ledger record = %+v, %v", rec, ok)
	}
	if rec.Timestamp != "2026-03-01T09:30:00Z" {
		t.Errorf("Timestamp = %q", rec.Timestamp)
	}
	if len(n.records) != 1 || n.records[0].Filename != "GW03M02.eaf" {
		t.Errorf("notified = %+v", n.records)
	}
}

func TestRecordDecision_Invalid(t *testing.T) {
	s, l, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{"filename":`, "invalid request body"},
		{"missing filename", `{"decision":"accept"}`, "filename"},
		{"bad decision", `{"filename":"a.eaf","decision":"maybe"}`, "accept or reject"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, "/record_decision", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			body := decodeJSONBody(t, rr)
			if msg, _ := body["error"].(string); !strings.Contains(msg, tt.want) {
				t.Errorf("error = %q, want mention of %q", msg, tt.want)
			}
		})
	}
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Error("invalid decisions must not create the ledger")
	}
}

func TestRecordDecision_CORSPreflight(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/record_decision", nil)
	req.Header.Set("Origin", "file://")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK && rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestGroupFrames(t *testing.T) {
	frames := []FrameResponse{
		{Index: 0, Annotation: 1}, {Index: 1, Annotation: 1},
		{Index: 2, Annotation: 2},
	}
	groups := groupFrames(frames)
	if len(groups) != 2 || len(groups[0].Frames) != 2 || len(groups[1].Frames) != 1 {
		t.Errorf("groups = %+v", groups)
	}
}
