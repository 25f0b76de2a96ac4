// Package services defines shared utilities consumed by the caption engine
// components and the translation transports they call.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, provider names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that tag failures with the
//     taxonomy the scheduler uses to decide between retry, cooldown, and
//     surfacing the error to the waiting caller.
//
// Use these helpers when wiring new transports or engine logic so error
// classification and observability stay uniform across the engine.
package services
