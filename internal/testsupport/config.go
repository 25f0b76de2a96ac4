package testsupport

import (
	"path/filepath"
	"testing"

	"captionsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp log directory per test.
// It selects the offline echo provider and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Translation.Provider = config.ProviderEcho
	cfgVal.Translation.APIKey = "test"
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithProvider sets the translation provider on the test config.
func WithProvider(provider string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Translation.Provider = provider
	}
}

// WithTargetLanguage overrides the translation target.
func WithTargetLanguage(tag string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Translation.TargetLanguage = tag
	}
}

// WithForcedMode pins the live/static classifier ("static" or "live").
func WithForcedMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mode.Force = mode
	}
}

// WithoutPrefetch disables background translation.
func WithoutPrefetch() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Prefetch.Enabled = false
	}
}

// WithConfig applies an arbitrary mutation.
func WithConfig(fn func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		fn(b.cfg)
	}
}
