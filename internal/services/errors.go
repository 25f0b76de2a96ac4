package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoTimeline marks a timeline that produced fewer cues than required.
	ErrNoTimeline = errors.New("no timeline")
	// ErrMissingCredentials marks a provider that cannot be called without configuration.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrRateLimited marks a provider rejection that may succeed after a delay.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransport marks network or provider failures that are not retried here.
	ErrTransport = errors.New("transport failure")
	// ErrMalformedResponse marks a provider reply that could not be interpreted.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrStaleResult marks a translation that resolved after its unit stopped being current.
	ErrStaleResult = errors.New("stale result")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// RateLimitError carries the provider's Retry-After hint alongside ErrRateLimited.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	msg := "rate limited"
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports ErrRateLimited so callers can use errors.Is on the marker.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// RetryAfter extracts the provider's requested delay from a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	return 0, false
}

// Retryable reports whether the transport boundary may retry the error.
// Only rate limiting qualifies; everything else is terminal for the call.
func Retryable(err error) bool {
	return err != nil && errors.Is(err, ErrRateLimited)
}

// Kind maps an error to its taxonomy label for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoTimeline):
		return "no-timeline"
	case errors.Is(err, ErrMissingCredentials):
		return "missing-credentials"
	case errors.Is(err, ErrRateLimited):
		return "rate-limited"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed-response"
	case errors.Is(err, ErrStaleResult):
		return "stale-result"
	default:
		return "transport-failure"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
