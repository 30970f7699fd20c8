package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultEndpoint is the hosted collector. Overridable through
// configuration for self-hosted deployments.
const DefaultEndpoint = "https://h9qf4nsc0i.execute-api.ap-northeast-1.amazonaws.com/logs"

// DefaultUserAgent identifies the agent to the collector.
const DefaultUserAgent = "Takumi-Installer/2.0"

// Client posts JSON payloads to the collector endpoint.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient returns a collector client. Empty endpoint or user agent
// fall back to the hosted defaults.
func NewClient(endpoint, userAgent string, timeout time.Duration, logger *zap.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Post submits one payload as JSON. Any non-2xx status is an error;
// deciding whether that error matters is the caller's job.
func (c *Client) Post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to collector: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused; the collector's reply
	// body is informational only.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}

	c.logger.Debug("collector accepted payload",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)))
	return nil
}
