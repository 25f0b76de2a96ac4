package config

const (
	ProviderOpenAI = "openai"
	ProviderLLM    = "llm"
	ProviderEcho   = "echo"
)

const (
	defaultConfigPath           = "~/.config/captionsync/config.toml"
	projectConfigName           = "captionsync.toml"
	defaultProvider             = ProviderOpenAI
	defaultTargetLanguage       = "zh-CN"
	defaultModel                = "gpt-4o-mini"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMTitle             = "captionsync"
	defaultTemperature          = 0.3
	defaultTimeoutSeconds       = 15
	defaultMinSpacingMs         = 200
	defaultRateLimitRetries     = 3
	defaultRetryBaseMs          = 500
	defaultRetryMaxMs           = 8000
	defaultStaticIntervalMs     = 250
	defaultLiveIntervalMs       = 100
	defaultStaticConcurrency    = 2
	defaultLiveConcurrency      = 4
	defaultMaxConsecutiveErrors = 3
	defaultCooldownSeconds      = 30
	defaultPrefetchLookahead    = 8
	defaultPrefetchConcurrency  = 2
	defaultPrefetchIntervalMs   = 400
	defaultTickIntervalMs       = 50
	defaultEarlyWindowMs        = 400
	defaultHideDebounceMs       = 300
	defaultSnapshotSettleMs     = 300
	defaultMaxOriginalChars     = 120
	defaultMinCues              = 2
	defaultCoalesceGapMs        = 250
	defaultOpenEndedMs          = 2000
	defaultAlignToleranceMs     = 1500
	defaultGroupMaxChars        = 160
	defaultGroupMaxCues         = 4
	defaultGroupMaxGapMs        = 1200
	defaultGroupSoftBreakChars  = 60
	defaultModeThreshold        = 2
	defaultModeSlack            = 2
	defaultModeMaxDeltaChars    = 24
	defaultModeMaxElapsedMs     = 1500
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMetricsBind          = "127.0.0.1:9464"
	defaultNtfyTimeoutSeconds   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Translation: Translation{
			Provider:         defaultProvider,
			TargetLanguage:   defaultTargetLanguage,
			Model:            defaultModel,
			Temperature:      defaultTemperature,
			TimeoutSeconds:   defaultTimeoutSeconds,
			Title:            defaultLLMTitle,
			MinSpacingMs:     defaultMinSpacingMs,
			RateLimitRetries: defaultRateLimitRetries,
			RetryBaseMs:      defaultRetryBaseMs,
			RetryMaxMs:       defaultRetryMaxMs,
		},
		Scheduler: Scheduler{
			StaticIntervalMs:     defaultStaticIntervalMs,
			LiveIntervalMs:       defaultLiveIntervalMs,
			StaticConcurrency:    defaultStaticConcurrency,
			LiveConcurrency:      defaultLiveConcurrency,
			MaxConsecutiveErrors: defaultMaxConsecutiveErrors,
			CooldownSeconds:      defaultCooldownSeconds,
			SkipTargetLanguage:   true,
		},
		Prefetch: Prefetch{
			Enabled:     true,
			Lookahead:   defaultPrefetchLookahead,
			Concurrency: defaultPrefetchConcurrency,
			IntervalMs:  defaultPrefetchIntervalMs,
		},
		Render: Render{
			TickIntervalMs:   defaultTickIntervalMs,
			EarlyWindowMs:    defaultEarlyWindowMs,
			HideDebounceMs:   defaultHideDebounceMs,
			SnapshotSettleMs: defaultSnapshotSettleMs,
			MaxOriginalChars: defaultMaxOriginalChars,
			Bilingual:        true,
		},
		Timeline: Timeline{
			MinCues:          defaultMinCues,
			CoalesceGapMs:    defaultCoalesceGapMs,
			OpenEndedMs:      defaultOpenEndedMs,
			AlignToleranceMs: defaultAlignToleranceMs,
		},
		Grouping: Grouping{
			MaxChars:       defaultGroupMaxChars,
			MaxCues:        defaultGroupMaxCues,
			MaxGapMs:       defaultGroupMaxGapMs,
			SoftBreakChars: defaultGroupSoftBreakChars,
		},
		Mode: Mode{
			Threshold:     defaultModeThreshold,
			Slack:         defaultModeSlack,
			MaxDeltaChars: defaultModeMaxDeltaChars,
			MaxElapsedMs:  defaultModeMaxElapsedMs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
	}
}
