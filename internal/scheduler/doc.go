// Package scheduler owns the translation cache and every outbound request.
//
// Translate resolves a source text in order: cache, non-translatable or
// already-in-target text (returned as is), cooldown short-circuit, join of an
// in-flight request for the same text, and finally a new request. New requests
// are paced per mode by a token bucket and bounded per mode by a weighted
// semaphore. Results are cached before the in-flight entry is cleared, so a
// caller never observes a text that is neither cached nor in flight while its
// successful request is completing.
//
// Requests run on a context detached from the caller's cancellation: a caller
// that gives up stops waiting, but the request completes and its result is
// cached for the next caller.
//
// Consecutive failures across texts open a cooldown window during which
// uncached texts resolve to the empty string without a transport call. A
// Notifier receives one notice on the first failure of a streak and one when
// the cooldown opens.
//
// The Prefetcher walks ahead of playback, translating upcoming texts in the
// background under its own concurrency cap.
package scheduler
