// Package config loads, normalizes, and validates captionsync configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CAPTIONSYNC_API_KEY. The Config type centralizes every knob the engine and
// CLI need: provider credentials, scheduler pacing, prefetch, render timing,
// grouping limits, and mode detection thresholds.
//
// Always obtain settings through this package so downstream code receives
// canonical language tags, log formats, and clear validation errors.
package config
