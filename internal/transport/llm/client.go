package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"captionsync/internal/services"
	"captionsync/internal/transport"
)

const (
	providerName          = "llm"
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 2
	defaultTemperature    = 0.3
	snippetLimit          = 160
)

// Config captures the runtime settings required to talk to the gateway.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	Temperature    float64
	TimeoutSeconds int
}

// Client wraps an OpenAI-compatible chat completion endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	sleeper   func(time.Duration)
}

var _ transport.Transport = (*Client)(nil)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets the total attempts per caption. Values below one
// mean a single attempt.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.attempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// WithSleeper replaces the timer used between attempts.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   defaultRetryAttempts,
		baseDelay:  defaultRetryBaseDelay,
		maxDelay:   defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.attempts < 1 {
		client.attempts = 1
	}
	return client
}

func (c *Client) Name() string { return providerName }

// Translate sends one caption for translation into targetLang.
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrMalformedResponse, providerName, "translate", "empty source text", nil)
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrMissingCredentials, providerName, "translate", "api key required", nil)
	}
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: transport.SystemPrompt(targetLang)},
			{Role: "user", Content: text},
		},
		Temperature: c.cfg.Temperature,
	}
	content, err := c.complete(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	translated := transport.CleanOutput(content)
	if translated == "" {
		return "", services.Wrap(services.ErrMalformedResponse, providerName, "translate", "reply was only formatting", nil)
	}
	return translated, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// reply returns the first non-empty message content, or the finish reason and
// refusal of the first choice when there is none.
func (r chatResponse) reply() (content, finishReason, refusal string) {
	for _, choice := range r.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, "", ""
		}
	}
	if len(r.Choices) > 0 {
		first := r.Choices[0]
		return "", strings.TrimSpace(first.FinishReason), strings.TrimSpace(first.Message.Refusal)
	}
	return "", "", ""
}

type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.code, e.body)
}

type emptyReplyError struct {
	finishReason string
	refusal      string
	snippet      string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("llm translate: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.finishReason, e.refusal, e.snippet)
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "llm request: decode response: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

// classify maps client failures onto the services taxonomy.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransport, providerName, "translate", "request aborted", err)
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		switch statusErr.code {
		case http.StatusTooManyRequests:
			return &services.RateLimitError{Provider: providerName, RetryAfter: statusErr.retryAfter, Err: err}
		case http.StatusUnauthorized, http.StatusForbidden:
			return services.Wrap(services.ErrMissingCredentials, providerName, "translate", "credentials rejected", err)
		default:
			return services.Wrap(services.ErrTransport, providerName, "translate", "", err)
		}
	}
	var emptyErr *emptyReplyError
	var decErr *decodeError
	if errors.As(err, &emptyErr) || errors.As(err, &decErr) {
		return services.Wrap(services.ErrMalformedResponse, providerName, "translate", "", err)
	}
	return services.Wrap(services.ErrTransport, providerName, "translate", "", err)
}

func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		var resp chatResponse
		var body []byte
		resp, body, err = c.post(ctx, req)
		if err == nil {
			content, finishReason, refusal := resp.reply()
			if content != "" {
				return content, nil
			}
			err = &emptyReplyError{finishReason: finishReason, refusal: refusal, snippet: snippet(body)}
		}
		if attempt == c.attempts {
			break
		}
		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return "", err
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
	}
	if c.attempts > 1 {
		return "", fmt.Errorf("llm translate: failed after %d attempts: %w", c.attempts, err)
	}
	return "", err
}

func (c *Client) post(ctx context.Context, payload chatRequest) (chatResponse, []byte, error) {
	var out chatResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return out, nil, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := transport.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return out, body, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body)), retryAfter: retryAfter}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, body, &decodeError{err: err}
	}
	if out.Error != nil {
		return out, body, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(out.Error.Message))
	}
	return out, body, nil
}

// retryDelay covers transient server faults only. Rate limits are left to the
// paced queue so they count against its retry budget.
func (c *Client) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var emptyErr *emptyReplyError
	if errors.As(err, &emptyErr) {
		return c.backoff(attempt), true
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		if statusErr.code != http.StatusRequestTimeout && statusErr.code < http.StatusInternalServerError {
			return 0, false
		}
		if statusErr.retryAfter > 0 {
			return min(statusErr.retryAfter, c.maxDelay), true
		}
		return c.backoff(attempt), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles the base delay per attempt, capped at maxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	if c.baseDelay <= 0 {
		return 0
	}
	delay := c.baseDelay
	for i := 1; i < attempt && delay < c.maxDelay; i++ {
		delay *= 2
	}
	if c.maxDelay > 0 && delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(body []byte) string {
	clean := strings.Join(strings.Fields(string(body)), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > snippetLimit {
		clean = string(runes[:snippetLimit]) + "..."
	}
	return clean
}
