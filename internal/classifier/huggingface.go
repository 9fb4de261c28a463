package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultModel   = "distilbert-base-uncased-finetuned-sst-2-english"
	DefaultBaseURL = "https://api-inference.huggingface.co"

	warmupText = "This is a warm-up request."
)

// Config holds the hosted inference configuration.
type Config struct {
	APIToken   string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// InitialBackoff is the first retry delay; doubled per attempt up to maxBackoff.
	InitialBackoff time.Duration
}

// HuggingFaceClient calls the Hugging Face inference API for text classification.
type HuggingFaceClient struct {
	httpClient     *http.Client
	apiToken       string
	model          string
	baseURL        string
	maxRetries     int
	initialBackoff time.Duration
}

const maxBackoff = 10 * time.Second

// NewHuggingFaceClient constructs a client. A missing token yields ErrDisabled.
func NewHuggingFaceClient(cfg Config) (*HuggingFaceClient, error) {
	token := strings.TrimSpace(cfg.APIToken)
	if token == "" {
		return nil, ErrDisabled
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &HuggingFaceClient{
		httpClient:     &http.Client{Timeout: timeout},
		apiToken:       token,
		model:          model,
		baseURL:        baseURL,
		maxRetries:     retries,
		initialBackoff: backoff,
	}, nil
}

// Name identifies the model in logs and persisted analyses.
func (c *HuggingFaceClient) Name() string {
	return "huggingface:" + c.model
}

// Enabled reports whether the client can make outbound calls.
func (c *HuggingFaceClient) Enabled() bool {
	return c != nil && c.apiToken != ""
}

// Warmup issues one classification so the hosted model is loaded before traffic arrives.
func (c *HuggingFaceClient) Warmup(ctx context.Context) error {
	_, err := c.Classify(ctx, warmupText)
	return err
}

// Classify requests predictions for the text, retrying while the model is loading or the
// API is rate limiting.
func (c *HuggingFaceClient) Classify(ctx context.Context, text string) ([]Prediction, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	delay := c.initialBackoff
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		predictions, err := c.classifyOnce(ctx, text)
		if err == nil {
			return predictions, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !statusErr.Retryable() {
			break
		}
		if attempt == c.maxRetries-1 {
			break
		}
		if statusErr.EstimatedTime > 0 {
			wait := time.Duration(statusErr.EstimatedTime * float64(time.Second))
			if wait < maxBackoff {
				delay = wait
			}
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"model":   c.model,
			"attempt": attempt + 1,
			"delay":   delay,
		}).Debug("retrying sentiment classification")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
	return nil, lastErr
}

func (c *HuggingFaceClient) classifyOnce(ctx context.Context, text string) ([]Prediction, error) {
	body, err := json.Marshal(map[string]any{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+c.model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{Code: resp.StatusCode}
		var apiErr struct {
			Error         string  `json:"error"`
			EstimatedTime float64 `json:"estimated_time"`
		}
		if json.Unmarshal(raw, &apiErr) == nil {
			statusErr.Message = apiErr.Error
			statusErr.EstimatedTime = apiErr.EstimatedTime
		}
		return nil, statusErr
	}

	predictions, err := decodePredictions(raw)
	if err != nil {
		return nil, err
	}
	return rank(predictions), nil
}

// decodePredictions accepts both the nested [[...]] shape returned for single inputs and a
// flat [...] list.
func decodePredictions(raw []byte) ([]Prediction, error) {
	var nested [][]Prediction
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 || len(nested[0]) == 0 {
			return nil, fmt.Errorf("%w: empty prediction list", ErrMalformed)
		}
		return nested[0], nil
	}
	var flat []Prediction
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrMalformed, err)
	}
	if len(flat) == 0 {
		return nil, fmt.Errorf("%w: empty prediction list", ErrMalformed)
	}
	return flat, nil
}

// StatusError is returned for non-200 inference responses.
type StatusError struct {
	Code          int
	Message       string
	EstimatedTime float64
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("inference status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("inference status %d", e.Code)
}

// Retryable reports whether the status indicates a transient condition.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
