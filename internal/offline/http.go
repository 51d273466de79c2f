package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IdempotencyHeader carries Item.ID so the receiver can drop redeliveries.
const IdempotencyHeader = "Idempotency-Key"

// HTTPSender posts items to the server's sync endpoint.
type HTTPSender struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSender returns a sender for the server at baseURL.
func NewHTTPSender(baseURL string) *HTTPSender {
	return &HTTPSender{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts the payload to /api/sync/{kind}.
func (h *HTTPSender) Send(ctx context.Context, it Item) error {
	endpoint := h.BaseURL + "/api/sync/" + url.PathEscape(it.Kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(it.Payload))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, it.ID)

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", it.Kind, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: unexpected status %d", it.Kind, resp.StatusCode)
	}
	return nil
}

// Ping checks the server health endpoint; it is meant for Options.Ping.
func (h *HTTPSender) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}
