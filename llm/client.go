// Package llm provides the completion client shared by the planner and
// the workers. One Client talks to one configured endpoint; vendor wire
// formats live behind the Provider interface.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// maxResponseSize caps how much of a completion body the client will
// read. A model reply should never come close to this.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// TextGenerator is the completion surface consumed by the planner and
// the workers. *Client implements it; tests substitute a mock.
type TextGenerator interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client sends completion requests to a single provider endpoint,
// retrying transient failures with exponential backoff.
type Client struct {
	provider    string
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// Message is one turn of a chat conversation. Role is "system",
// "user", or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	// Model names the model the endpoint should serve.
	Model string

	// Messages is the conversation so far, oldest first.
	Messages []Message

	// Temperature, when non-nil, overrides the endpoint's sampling
	// default. Zero is a valid override and means deterministic.
	Temperature *float64

	// MaxTokens caps the reply length; 0 defers to the endpoint.
	MaxTokens int
}

// TokenUsage counts the tokens one call consumed.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of one completion call.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the model that actually served the call, which may
	// differ from the one requested.
	Model string

	// Usage holds token counts when the endpoint reports them.
	Usage TokenUsage

	// FinishReason tells why generation stopped.
	FinishReason string
}

func (r Request) validate() error {
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	return nil
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryConfig replaces the default retry policy.
func WithRetryConfig(rc RetryConfig) ClientOption {
	return func(c *Client) {
		c.retryConfig = rc
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the named provider. An empty baseURL
// uses the provider's default endpoint. Authentication comes from the
// provider's environment variables.
func NewClient(provider, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		provider:    provider,
		baseURL:     baseURL,
		retryConfig: DefaultRetryConfig(),
		// Large plans can take minutes to generate on local models.
		httpClient: &http.Client{Timeout: 180 * time.Second},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends a completion request, retrying transient failures.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Fatal errors indicate config or auth problems; retrying won't help.
		if IsFatal(err) {
			return nil, err
		}

		if attempt == c.retryConfig.MaxAttempts {
			break
		}

		backoff := c.backoffFor(attempt)
		c.logger.Debug("Completion attempt failed",
			"attempt", attempt,
			"retry_in", backoff,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("llm request failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// backoffFor doubles the base delay per completed attempt and jitters
// the result by up to 25% either way so parallel clients desynchronize.
func (c *Client) backoffFor(attempt int) time.Duration {
	backoff := c.retryConfig.Backoff << (attempt - 1)
	if backoff > c.retryConfig.MaxBackoff || backoff <= 0 {
		backoff = c.retryConfig.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// doRequest performs one attempt against the endpoint. Errors come
// back classified so Complete knows whether another try is worthwhile.
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	provider := GetProvider(c.provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", c.provider))
	}

	payload, err := provider.MarshalRequest(req)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("marshal request: %w", err))
	}

	url := provider.Endpoint(c.baseURL)
	c.logger.Debug("Sending completion request",
		"provider", c.provider,
		"model", req.Model,
		"url", url,
		"messages", len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.Authenticate(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Connection resets and timeouts may clear up on a later try.
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, body)
	}

	return provider.UnmarshalResponse(body, req.Model)
}

// classifyHTTPError decides whether a non-200 status is worth a retry.
// Rate limits and server-side failures are; client-side mistakes and
// bad credentials are not.
func classifyHTTPError(statusCode int, body []byte) error {
	detail := string(body)
	if len(detail) > 200 {
		detail = detail[:200] + "..."
	}

	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, detail)

	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}
