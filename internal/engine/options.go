package engine

import (
	"time"

	"captionsync/internal/config"
	"captionsync/internal/mode"
	"captionsync/internal/render"
	"captionsync/internal/scheduler"
	"captionsync/internal/sentence"
	"captionsync/internal/timeline"
	"captionsync/internal/transport"
)

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// TimelineOptions converts the [timeline] section.
func TimelineOptions(cfg *config.Config) timeline.Options {
	return timeline.Options{
		MinCues:          cfg.Timeline.MinCues,
		CoalesceGapMs:    int64(cfg.Timeline.CoalesceGapMs),
		OpenEndedMs:      int64(cfg.Timeline.OpenEndedMs),
		AlignToleranceMs: int64(cfg.Timeline.AlignToleranceMs),
	}
}

// GroupingLimits converts the [grouping] section.
func GroupingLimits(cfg *config.Config) sentence.Limits {
	return sentence.Limits{
		MaxChars:       cfg.Grouping.MaxChars,
		MaxCues:        cfg.Grouping.MaxCues,
		MaxGapMs:       int64(cfg.Grouping.MaxGapMs),
		SoftBreakChars: cfg.Grouping.SoftBreakChars,
	}
}

// ModeOptions converts the [mode] section.
func ModeOptions(cfg *config.Config) mode.Options {
	return mode.Options{
		Threshold:     cfg.Mode.Threshold,
		Slack:         cfg.Mode.Slack,
		MaxDeltaChars: cfg.Mode.MaxDeltaChars,
		MaxElapsedMs:  int64(cfg.Mode.MaxElapsedMs),
	}
}

// SchedulerOptions converts the [scheduler] section and the target language.
func SchedulerOptions(cfg *config.Config) scheduler.Options {
	s := cfg.Scheduler
	return scheduler.Options{
		TargetLanguage:       cfg.Translation.TargetLanguage,
		StaticInterval:       millis(s.StaticIntervalMs),
		LiveInterval:         millis(s.LiveIntervalMs),
		StaticConcurrency:    s.StaticConcurrency,
		LiveConcurrency:      s.LiveConcurrency,
		MaxConsecutiveErrors: s.MaxConsecutiveErrors,
		Cooldown:             time.Duration(s.CooldownSeconds) * time.Second,
		SkipTargetLanguage:   s.SkipTargetLanguage,
	}
}

// PrefetchOptions converts the [prefetch] section.
func PrefetchOptions(cfg *config.Config) scheduler.PrefetchOptions {
	return scheduler.PrefetchOptions{
		Lookahead:   cfg.Prefetch.Lookahead,
		Concurrency: cfg.Prefetch.Concurrency,
		Interval:    millis(cfg.Prefetch.IntervalMs),
	}
}

// RenderOptions converts the [render] section.
func RenderOptions(cfg *config.Config) render.Options {
	r := cfg.Render
	return render.Options{
		EarlyWindowMs:    int64(r.EarlyWindowMs),
		HideDebounce:     millis(r.HideDebounceMs),
		SnapshotSettle:   millis(r.SnapshotSettleMs),
		MaxOriginalChars: r.MaxOriginalChars,
		Bilingual:        r.Bilingual,
	}
}

// PacedOptions converts the outbound pacing keys of [translation].
func PacedOptions(cfg *config.Config) transport.PacedOptions {
	t := cfg.Translation
	return transport.PacedOptions{
		MinSpacing: millis(t.MinSpacingMs),
		MaxRetries: t.RateLimitRetries,
		RetryBase:  millis(t.RetryBaseMs),
		RetryMax:   millis(t.RetryMaxMs),
	}
}
