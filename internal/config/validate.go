package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are not required
// here; a provider without an API key reports missing credentials per call.
func (c *Config) Validate() error {
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validatePrefetch(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateTimeline(); err != nil {
		return err
	}
	if err := c.validateGrouping(); err != nil {
		return err
	}
	if err := c.validateMode(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateTranslation() error {
	t := c.Translation
	switch t.Provider {
	case ProviderOpenAI, ProviderLLM, ProviderEcho:
	default:
		return fmt.Errorf("translation.provider must be one of openai, llm, echo (got %q)", t.Provider)
	}
	if t.TargetLanguage == "" {
		return errors.New("translation.target_language must be set")
	}
	if t.Temperature < 0 || t.Temperature > 2 {
		return errors.New("translation.temperature must be between 0 and 2")
	}
	if t.TimeoutSeconds <= 0 {
		return errors.New("translation.timeout_seconds must be positive")
	}
	if t.MinSpacingMs < 0 {
		return errors.New("translation.min_spacing_ms must be non-negative")
	}
	if t.RateLimitRetries < 0 {
		return errors.New("translation.rate_limit_retries must be non-negative")
	}
	if t.RetryBaseMs <= 0 {
		return errors.New("translation.retry_base_ms must be positive")
	}
	if t.RetryMaxMs < t.RetryBaseMs {
		return errors.New("translation.retry_max_ms must be at least translation.retry_base_ms")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	s := c.Scheduler
	if s.StaticIntervalMs < 0 || s.LiveIntervalMs < 0 {
		return errors.New("scheduler intervals must be non-negative")
	}
	if s.StaticConcurrency <= 0 {
		return errors.New("scheduler.static_concurrency must be positive")
	}
	if s.LiveConcurrency <= 0 {
		return errors.New("scheduler.live_concurrency must be positive")
	}
	if s.MaxConsecutiveErrors <= 0 {
		return errors.New("scheduler.max_consecutive_errors must be positive")
	}
	if s.CooldownSeconds <= 0 {
		return errors.New("scheduler.cooldown_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePrefetch() error {
	if !c.Prefetch.Enabled {
		return nil
	}
	if c.Prefetch.Lookahead <= 0 {
		return errors.New("prefetch.lookahead must be positive when prefetch.enabled is true")
	}
	if c.Prefetch.Concurrency <= 0 {
		return errors.New("prefetch.concurrency must be positive when prefetch.enabled is true")
	}
	if c.Prefetch.IntervalMs <= 0 {
		return errors.New("prefetch.interval_ms must be positive when prefetch.enabled is true")
	}
	return nil
}

func (c *Config) validateRender() error {
	r := c.Render
	if r.TickIntervalMs <= 0 {
		return errors.New("render.tick_interval_ms must be positive")
	}
	if r.EarlyWindowMs < 0 {
		return errors.New("render.early_window_ms must be non-negative")
	}
	if r.HideDebounceMs < 0 || r.SnapshotSettleMs < 0 {
		return errors.New("render debounce windows must be non-negative")
	}
	if r.MaxOriginalChars < 0 {
		return errors.New("render.max_original_chars must be non-negative")
	}
	return nil
}

func (c *Config) validateTimeline() error {
	t := c.Timeline
	if t.MinCues <= 0 {
		return errors.New("timeline.min_cues must be positive")
	}
	if t.CoalesceGapMs < 0 {
		return errors.New("timeline.coalesce_gap_ms must be non-negative")
	}
	if t.OpenEndedMs <= 0 {
		return errors.New("timeline.open_ended_ms must be positive")
	}
	if t.AlignToleranceMs <= 0 {
		return errors.New("timeline.align_tolerance_ms must be positive")
	}
	return nil
}

func (c *Config) validateGrouping() error {
	g := c.Grouping
	if g.MaxChars <= 0 {
		return errors.New("grouping.max_chars must be positive")
	}
	if g.MaxCues <= 0 {
		return errors.New("grouping.max_cues must be positive")
	}
	if g.MaxGapMs < 0 {
		return errors.New("grouping.max_gap_ms must be non-negative")
	}
	if g.SoftBreakChars <= 0 {
		return errors.New("grouping.soft_break_chars must be positive")
	}
	return nil
}

func (c *Config) validateMode() error {
	m := c.Mode
	if m.Threshold <= 0 {
		return errors.New("mode.threshold must be positive")
	}
	if m.Slack < 0 {
		return errors.New("mode.slack must be non-negative")
	}
	if m.MaxDeltaChars <= 0 {
		return errors.New("mode.max_delta_chars must be positive")
	}
	if m.MaxElapsedMs <= 0 {
		return errors.New("mode.max_elapsed_ms must be positive")
	}
	switch m.Force {
	case "", "static", "live":
	default:
		return fmt.Errorf("mode.force must be empty, static, or live (got %q)", m.Force)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Enabled && c.Metrics.Bind == "" {
		return errors.New("metrics.bind must be set when metrics.enabled is true")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if n.NtfyTopic == "" {
		return nil
	}
	if !strings.HasPrefix(n.NtfyTopic, "http://") && !strings.HasPrefix(n.NtfyTopic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL (got %q)", n.NtfyTopic)
	}
	if n.RequestTimeoutSeconds <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}
