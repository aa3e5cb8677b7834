package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/heimdex/offsetcheck/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHTTPClient_Notify_Success(t *testing.T) {
	var received DecisionPayload
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/record_decision" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("missing request id header")
		}
		receivedAuth = r.Header.Get("Authorization")

		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)

		w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/", "test-token", time.Second, testLogger())

	err := client.Notify(context.Background(), ledger.Record{
		Filename: "BF01F28WDC.eaf",
		Decision: ledger.Reject,
		Notes:    "late by ~2 frames",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedAuth != "Bearer test-token" {
		t.Errorf("auth = %q, want %q", receivedAuth, "Bearer test-token")
	}
	if received.Filename != "BF01F28WDC.eaf" || received.Decision != "reject" || received.Notes != "late by ~2 frames" {
		t.Errorf("payload = %+v", received)
	}
}

func TestHTTPClient_NoTokenNoAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("Authorization = %q, want empty", h)
		}
	}))
	defer server.Close()

	if err := NewHTTPClient(server.URL, "", 0, nil).SubmitDecision(context.Background(), DecisionPayload{Filename: "a.eaf", Decision: "accept"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHTTPClient_ReturnsSubmitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","message":"bad decision"}`))
	}))
	defer server.Close()

	err := NewHTTPClient(server.URL, "t", time.Second, testLogger()).
		SubmitDecision(context.Background(), DecisionPayload{Filename: "a.eaf", Decision: "accept"})

	var submitErr *SubmitError
	if !errors.As(err, &submitErr) {
		t.Fatalf("error = %v, want *SubmitError", err)
	}
	if submitErr.StatusCode != http.StatusBadRequest || submitErr.IsRetryable() {
		t.Errorf("submit error = %+v", submitErr)
	}
}

func TestSubmitError_IsRetryable(t *testing.T) {
	if !(&SubmitError{StatusCode: http.StatusBadGateway}).IsRetryable() {
		t.Fatal("expected 5xx submit error to be retryable")
	}
	if (&SubmitError{StatusCode: http.StatusNotFound}).IsRetryable() {
		t.Fatal("expected 4xx submit error to be permanent")
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewHTTPClient(url, "", time.Second, testLogger()).
		SubmitDecision(context.Background(), DecisionPayload{Filename: "a.eaf", Decision: "accept"})
	if err == nil {
		t.Fatal("expected error for closed server")
	}
}
