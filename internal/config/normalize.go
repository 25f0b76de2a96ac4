package config

import (
	"fmt"
	"os"
	"strings"

	"captionsync/internal/language"
)

var apiKeyEnvVars = []string{"CAPTIONSYNC_API_KEY", "OPENAI_API_KEY"}

func (c *Config) normalize() error {
	if err := c.normalizeTranslation(); err != nil {
		return err
	}
	c.normalizeMode()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds == 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeTranslation() error {
	t := &c.Translation
	t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
	if t.Provider == "" {
		t.Provider = defaultProvider
	}

	t.TargetLanguage = strings.TrimSpace(t.TargetLanguage)
	if t.TargetLanguage == "" {
		t.TargetLanguage = defaultTargetLanguage
	}
	tag, err := language.Normalize(t.TargetLanguage)
	if err != nil {
		return fmt.Errorf("translation.target_language: %w", err)
	}
	t.TargetLanguage = tag

	t.APIKey = strings.TrimSpace(t.APIKey)
	if t.APIKey == "" {
		for _, name := range apiKeyEnvVars {
			if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
				t.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	t.BaseURL = strings.TrimSpace(t.BaseURL)
	if t.BaseURL == "" && t.Provider == ProviderLLM {
		t.BaseURL = defaultLLMBaseURL
	}
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		t.Model = defaultModel
	}
	t.Referer = strings.TrimSpace(t.Referer)
	t.Title = strings.TrimSpace(t.Title)
	return nil
}

func (c *Config) normalizeMode() {
	c.Mode.Force = strings.ToLower(strings.TrimSpace(c.Mode.Force))
	if c.Mode.Force == "auto" {
		c.Mode.Force = ""
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = ""
		return nil
	}
	dir, err := expandPath(c.Logging.Dir)
	if err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	c.Logging.Dir = dir
	return nil
}
