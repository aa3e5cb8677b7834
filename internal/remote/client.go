// Package remote forwards locally recorded decisions to a remote decision
// receiver. Forwarding is best-effort; the local ledger stays authoritative.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/offsetcheck/internal/ledger"
)

const (
	decisionPath   = "/record_decision"
	defaultTimeout = 10 * time.Second
)

// SubmitError represents a non-2xx answer from the decision receiver.
type SubmitError struct {
	StatusCode int
	Body       string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("decision submit failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx) are
// considered permanent.
func (e *SubmitError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// DecisionPayload is the body the receiver accepts.
type DecisionPayload struct {
	Filename string `json:"filename"`
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

// HTTPClient posts decisions to {baseURL}/record_decision.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Notify forwards a persisted ledger record.
func (c *HTTPClient) Notify(ctx context.Context, rec ledger.Record) error {
	return c.SubmitDecision(ctx, DecisionPayload{
		Filename: rec.Filename,
		Decision: string(rec.Decision),
		Notes:    rec.Notes,
	})
}

func (c *HTTPClient) SubmitDecision(ctx context.Context, payload DecisionPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal decision payload: %w", err)
	}

	url := c.baseURL + decisionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("forwarding decision",
		"url", url,
		"file", payload.Filename,
		"decision", payload.Decision,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &SubmitError{StatusCode: resp.StatusCode, Body: string(respBody)}
}
