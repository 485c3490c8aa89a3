// Package inference talks to the remote agent inference endpoint that backs
// spending insights and category suggestions.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	applog "budget/internal/log"
)

// ErrDisabled is returned when no endpoint is configured.
var ErrDisabled = errors.New("inference endpoint not configured")

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

// Config configures a Client.
type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// Client posts chat messages to an agent and returns the reply text.
type Client struct {
	url        string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	backoff    func(attempt int) time.Duration
	logger     *applog.Logger
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// statusError is returned for non-200 replies.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("inference API error: %d - %s", e.code, e.body)
}

// retryable reports whether a later attempt could succeed.
func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func NewClient(cfg Config, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.Default(applog.ComponentInference)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		maxRetries: retries,
		httpClient: hc,
		backoff:    exponentialBackoff,
		logger:     logger,
	}
}

// Enabled reports whether remote calls will be attempted.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Chat sends message to the agent and returns the raw reply text. Each
// attempt runs under the configured timeout; transport failures, 429 and 5xx
// replies are retried up to MaxRetries times.
func (c *Client) Chat(ctx context.Context, agentID, message string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	payload, err := json.Marshal(chatRequest{
		UserID:    "user-" + uuid.NewString(),
		AgentID:   agentID,
		SessionID: "session-" + uuid.NewString(),
		Message:   message,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		reply, err := c.send(ctx, payload)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			break
		}
		if attempt < c.maxRetries {
			c.logger.WarnContext(ctx, "Inference request failed, retrying",
				"agent_id", agentID,
				applog.FieldAttempt, attempt+1,
				applog.FieldError, err)
		}
	}
	return "", lastErr
}

func (c *Client) send(ctx context.Context, payload []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("inference API connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &statusError{code: resp.StatusCode, body: string(body)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode inference response: %w", err)
	}
	if out.Response == "" {
		return "", errors.New("inference returned empty response")
	}
	return out.Response, nil
}

// exponentialBackoff returns 500ms, 1s, 2s ... capped at 5s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 5 * time.Second
	}
	d := 500 * time.Millisecond << uint(attempt)
	if d > 5*time.Second {
		return 5 * time.Second
	}
	return d
}
