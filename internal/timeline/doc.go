// Package timeline holds the ordered cue sequence extracted from a caption
// track and answers clock-driven lookups against it.
//
// A Timeline is replaced wholesale whenever a new raw track arrives; readers
// never observe a partially built sequence. Lookups keep a cursor seeded from
// the previous call so monotonically advancing playback resolves in constant
// time, with a binary search fallback for seeks.
//
// The same type also serves as the independently timed translated track that
// some providers supply, where FindNearestByStart aligns source cues to it.
package timeline
