// Package engine wires the caption pipeline together for one playback
// session.
//
// An Engine owns the cue timeline, its sentence grouping, the mode detector,
// the translation scheduler with its prefetcher, and the renderer. Callers
// inject the timeline source, the playback clock, the transport and the
// display, then drive it either with Start (background tick and prefetch
// loops) or by calling Tick directly.
package engine
