// Package openai adapts the official OpenAI Go SDK to the transport boundary.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"captionsync/internal/services"
	"captionsync/internal/transport"
)

const (
	providerName       = "openai"
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.3
	defaultTimeout     = 15 * time.Second
)

// Config captures the SDK settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	TimeoutSeconds int
}

// Client translates captions through Chat Completions.
type Client struct {
	cfg    Config
	client openai.Client
}

var _ transport.Transport = (*Client)(nil)

// NewClient builds an SDK client. SDK-level retries are disabled; rate limits
// surface to the paced queue instead.
func NewClient(cfg Config, extra ...option.RequestOption) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)
	return &Client{cfg: cfg, client: openai.NewClient(opts...)}
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

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(transport.SystemPrompt(targetLang)),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(c.cfg.Temperature),
	})
	if err != nil {
		return "", classify(err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", services.Wrap(services.ErrMalformedResponse, providerName, "translate", "no choices", nil)
	}
	choice := completion.Choices[0]
	translated := transport.CleanOutput(choice.Message.Content)
	if translated == "" {
		message := "empty content (finish_reason=" + string(choice.FinishReason) + ")"
		if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
			message += ": refusal: " + refusal
		}
		return "", services.Wrap(services.ErrMalformedResponse, providerName, "translate", message, nil)
	}
	return translated, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return services.Wrap(services.ErrTransport, providerName, "translate", "", err)
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		var retryAfter time.Duration
		if apiErr.Response != nil {
			retryAfter, _ = transport.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return &services.RateLimitError{Provider: providerName, RetryAfter: retryAfter, Err: err}
	case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrMissingCredentials, providerName, "translate", "credentials rejected", err)
	default:
		return services.Wrap(services.ErrTransport, providerName, "translate", "", err)
	}
}
