// Package llm provides text completion clients for answer synthesis, intent
// classification, and query enhancement.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("invalid llm configuration")

	// ErrCompletionFailed indicates the completion request failed after
	// exhausting retries.
	ErrCompletionFailed = errors.New("completion failed")
)

const (
	defaultTimeout     = 60 * time.Second
	defaultBaseBackoff = 500 * time.Millisecond
	defaultRateLimit   = 5
	defaultBurst       = 5
	defaultMaxRetries  = 3
)

// Client generates text completions.
type Client interface {
	// Complete sends the prompt and returns the generated text.
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Config holds configuration for the HTTP client.
type Config struct {
	// BaseURL is the chat completions server URL.
	// Default: http://localhost:8082
	BaseURL string

	// Model is the completion model name.
	// Default: gpt-4o-mini
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// RequestsPerSecond throttles outbound requests.
	// Default: 5
	RequestsPerSecond float64

	// MaxRetries bounds retry attempts for transient failures.
	// Default: 3
	MaxRetries int

	// Timeout bounds each HTTP request.
	// Default: 60s
	Timeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8082"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = defaultRateLimit
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// retryableError marks transient failures worth retrying.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// HTTPClient talks to an OpenAI-compatible chat completions endpoint.
// Requests are rate limited and transient failures are retried with
// exponential backoff.
type HTTPClient struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewHTTPClient creates an HTTP completion client.
func NewHTTPClient(cfg Config, logger *zap.Logger) (*HTTPClient, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), defaultBurst),
		logger:  logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete generates a completion from the given prompt.
func (c *HTTPClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req := chatRequest{
		Model:       c.config.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying completion request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		response, err := c.doRequest(ctx, req)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: max retries exceeded: %v", ErrCompletionFailed, lastErr)
}

// doRequest performs the actual HTTP request to the completions endpoint.
func (c *HTTPClient) doRequest(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("%w: %v", ErrCompletionFailed, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("%w: rate limited (429)", ErrCompletionFailed)}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("%w: status %d: %s", ErrCompletionFailed, resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp chatError
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("%w: status %d: %s", ErrCompletionFailed, resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrCompletionFailed, resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrCompletionFailed)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// StaticClient returns canned responses in order. It exists for tests and for
// running the engine without a completion server.
type StaticClient struct {
	responses []string
	next      int

	// Err, when set, is returned by every call.
	Err error
}

// NewStaticClient creates a client that replays the given responses. Once
// exhausted it repeats the last one.
func NewStaticClient(responses ...string) *StaticClient {
	return &StaticClient{responses: responses}
}

// Complete returns the next canned response.
func (s *StaticClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("%w: no responses configured", ErrCompletionFailed)
	}
	resp := s.responses[s.next]
	if s.next < len(s.responses)-1 {
		s.next++
	}
	return resp, nil
}

// Ensure implementations satisfy Client.
var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*StaticClient)(nil)
)
