package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config configures the webhook client.
type Config struct {
	WebhookURL string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Outcome reports what happened to one delivery. It is informational only.
type Outcome struct {
	Delivered bool  `json:"delivered"`
	Skipped   bool  `json:"skipped"`
	Status    int   `json:"status,omitempty"`
	Attempts  int   `json:"attempts"`
	Err       error `json:"-"`
}

// Deliverer ships records to an external sink.
type Deliverer interface {
	Deliver(ctx context.Context, rec Record) Outcome
}

// Client posts records to a spreadsheet webhook (for example a Google Apps Script).
type Client struct {
	httpClient *http.Client
	url        string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewClient constructs a webhook client. An empty URL yields a client that skips every record.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	base := cfg.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        strings.TrimSpace(cfg.WebhookURL),
		maxRetries: retries,
		baseDelay:  base,
		maxDelay:   maxDelay,
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Deliver posts the record, retrying transient failures. It never returns an error; the
// outcome carries whatever went wrong.
func (c *Client) Deliver(ctx context.Context, rec Record) Outcome {
	if !c.Enabled() {
		return Outcome{Skipped: true}
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return Outcome{Err: fmt.Errorf("marshal record: %w", err)}
	}

	var out Outcome
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				if out.Err == nil {
					out.Err = ctx.Err()
				}
				return out
			case <-timer.C:
			}
		}

		out.Attempts = attempt + 1
		status, err := c.post(ctx, payload)
		out.Status = status
		out.Err = err
		if err == nil && status >= 200 && status < 300 {
			out.Delivered = true
			return out
		}
		if err == nil {
			out.Err = fmt.Errorf("webhook returned status %d", status)
			if !retryableStatus(status) {
				return out
			}
		} else if ctx.Err() != nil {
			return out
		}
		logrus.WithError(out.Err).WithField("attempt", out.Attempts).Debug("sheets delivery failed")
	}
	return out
}

func (c *Client) post(ctx context.Context, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// delay is exponential backoff with full jitter, floored at a tenth of the base delay.
func (c *Client) delay(attempt int) time.Duration {
	exp := float64(c.baseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(c.maxDelay) {
		exp = float64(c.maxDelay)
	}
	jittered := time.Duration(rand.Float64() * exp)
	if floor := c.baseDelay / 10; jittered < floor {
		jittered = floor
	}
	return jittered
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
