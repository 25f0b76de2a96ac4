package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Translation contains provider selection and connection settings.
type Translation struct {
	Provider       string  `toml:"provider"`
	TargetLanguage string  `toml:"target_language"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	// Outbound pacing shared by every call to the provider.
	MinSpacingMs     int `toml:"min_spacing_ms"`
	RateLimitRetries int `toml:"rate_limit_retries"`
	RetryBaseMs      int `toml:"retry_base_ms"`
	RetryMaxMs       int `toml:"retry_max_ms"`
}

// Scheduler contains per-mode pacing and the failure cooldown.
type Scheduler struct {
	StaticIntervalMs     int  `toml:"static_interval_ms"`
	LiveIntervalMs       int  `toml:"live_interval_ms"`
	StaticConcurrency    int  `toml:"static_concurrency"`
	LiveConcurrency      int  `toml:"live_concurrency"`
	MaxConsecutiveErrors int  `toml:"max_consecutive_errors"`
	CooldownSeconds      int  `toml:"cooldown_seconds"`
	SkipTargetLanguage   bool `toml:"skip_target_language"`
}

// Prefetch contains background translation settings.
type Prefetch struct {
	Enabled     bool `toml:"enabled"`
	Lookahead   int  `toml:"lookahead"`
	Concurrency int  `toml:"concurrency"`
	IntervalMs  int  `toml:"interval_ms"`
}

// Render contains display timing.
type Render struct {
	TickIntervalMs   int  `toml:"tick_interval_ms"`
	EarlyWindowMs    int  `toml:"early_window_ms"`
	HideDebounceMs   int  `toml:"hide_debounce_ms"`
	SnapshotSettleMs int  `toml:"snapshot_settle_ms"`
	MaxOriginalChars int  `toml:"max_original_chars"`
	Bilingual        bool `toml:"bilingual"`
}

// Timeline contains cue normalization and track alignment settings.
type Timeline struct {
	MinCues          int `toml:"min_cues"`
	CoalesceGapMs    int `toml:"coalesce_gap_ms"`
	OpenEndedMs      int `toml:"open_ended_ms"`
	AlignToleranceMs int `toml:"align_tolerance_ms"`
}

// Grouping contains sentence grouping limits.
type Grouping struct {
	MaxChars       int `toml:"max_chars"`
	MaxCues        int `toml:"max_cues"`
	MaxGapMs       int `toml:"max_gap_ms"`
	SoftBreakChars int `toml:"soft_break_chars"`
}

// Mode contains live/static classifier thresholds.
type Mode struct {
	Threshold     int    `toml:"threshold"`
	Slack         int    `toml:"slack"`
	MaxDeltaChars int    `toml:"max_delta_chars"`
	MaxElapsedMs  int    `toml:"max_elapsed_ms"`
	Force         string `toml:"force"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Metrics contains the optional Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Notifications contains the optional ntfy endpoint for translation notices.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Config encapsulates all configuration values for captionsync.
//
// Configuration sections by subsystem:
//   - Translation: provider, target language, credentials, outbound pacing
//   - Scheduler: per-mode request interval and concurrency, error cooldown
//   - Prefetch: background translation lookahead
//   - Render: tick period, early window, debounce, bilingual display
//   - Timeline: cue normalization and translated-track alignment
//   - Grouping: sentence group limits
//   - Mode: live caption classifier
//   - Logging: log format, level, and optional file directory
//   - Metrics: Prometheus endpoint
//   - Notifications: ntfy delivery of failure and pause notices
type Config struct {
	Translation   Translation   `toml:"translation"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Prefetch      Prefetch      `toml:"prefetch"`
	Render        Render        `toml:"render"`
	Timeline      Timeline      `toml:"timeline"`
	Grouping      Grouping      `toml:"grouping"`
	Mode          Mode          `toml:"mode"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error: defaults plus environment fallbacks are returned.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML with the API key masked.
func (c *Config) Encode() (string, error) {
	clone := *c
	if clone.Translation.APIKey != "" {
		clone.Translation.APIKey = "********"
	}
	data, err := toml.Marshal(clone)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

// NeedsCredentials reports whether the configured provider calls a remote API.
func (c *Config) NeedsCredentials() bool {
	return c.Translation.Provider != ProviderEcho
}
