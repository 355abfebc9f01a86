package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/foxseedlab/minutagen/internal/webhook"
)

const (
	webhookTimeout      = 15 * time.Second
	errorBodySnippetMax = 256

	headerSource        = "X-Minutes-Source"
	headerSessionID     = "X-Minutes-Session-Id"
	headerSchemaVersion = "X-Minutes-Schema-Version"
	headerIdempotency   = "Idempotency-Key"
)

type HTTPSender struct {
	webhookURL string
	client     *http.Client
}

func NewHTTPSender(webhookURL string) webhook.Sender {
	return &HTTPSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: webhookTimeout},
	}
}

// SendMinutes posts one minutes record. Receivers can deduplicate on the
// session id, which is also sent as the idempotency key.
func (s *HTTPSender) SendMinutes(ctx context.Context, payload webhook.MinutesWebhookPayload) error {
	if s.webhookURL == "" {
		return nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal minutes payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build minutes webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSource, payload.Source)
	req.Header.Set(headerSchemaVersion, strconv.Itoa(payload.SchemaVersion))
	if payload.SessionID != "" {
		req.Header.Set(headerSessionID, payload.SessionID)
		req.Header.Set(headerIdempotency, payload.SessionID)
	}

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver minutes webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("minutes webhook rejected %s session %s: status %d: %s",
			payload.Source, payload.SessionID, resp.StatusCode, bodySnippet(resp.Body))
	}
	slog.Info("minutes webhook delivered",
		"source", payload.Source,
		"session_id", payload.SessionID,
		"status", resp.StatusCode,
		"minutes_chars", len(payload.Minutes),
		"duration", time.Since(started).String())
	return nil
}

func bodySnippet(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, errorBodySnippetMax))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
