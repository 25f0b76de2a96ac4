package engine

import (
	"fmt"
	"log/slog"

	"captionsync/internal/clock"
	"captionsync/internal/config"
	"captionsync/internal/metrics"
	"captionsync/internal/services"
	"captionsync/internal/transport"
	"captionsync/internal/transport/llm"
	"captionsync/internal/transport/openai"
)

// NewTransport builds the configured provider client behind the paced
// outbound queue.
func NewTransport(cfg *config.Config, c clock.Clock, logger *slog.Logger, m *metrics.Metrics) (transport.Transport, error) {
	if cfg == nil {
		return nil, fmt.Errorf("transport requires config")
	}
	t := cfg.Translation
	if cfg.NeedsCredentials() && t.APIKey == "" {
		return nil, services.Wrap(services.ErrMissingCredentials, "transport", "configure",
			fmt.Sprintf("provider %q requires translation.api_key or CAPTIONSYNC_API_KEY", t.Provider), nil)
	}

	var base transport.Transport
	switch t.Provider {
	case config.ProviderOpenAI:
		base = openai.NewClient(openai.Config{
			APIKey:         t.APIKey,
			BaseURL:        t.BaseURL,
			Model:          t.Model,
			Temperature:    t.Temperature,
			TimeoutSeconds: t.TimeoutSeconds,
		})
	case config.ProviderLLM:
		base = llm.NewClient(llm.Config{
			APIKey:         t.APIKey,
			BaseURL:        t.BaseURL,
			Model:          t.Model,
			Referer:        t.Referer,
			Title:          t.Title,
			Temperature:    t.Temperature,
			TimeoutSeconds: t.TimeoutSeconds,
		})
	case config.ProviderEcho:
		base = transport.Echo{}
	default:
		return nil, fmt.Errorf("unsupported translation provider %q", t.Provider)
	}

	options := []transport.PacedOption{
		transport.WithClock(c),
		transport.WithLogger(logger),
	}
	if m != nil {
		options = append(options, transport.WithObserver(m))
	}
	return transport.NewPaced(base, PacedOptions(cfg), options...), nil
}
