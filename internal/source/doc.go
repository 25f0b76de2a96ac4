// Package source provides timeline sources that feed raw caption events into
// the engine.
//
// File reads a caption file from disk and decodes YouTube json3 timedtext,
// SubRip or WebVTT into timeline.RawEvent values. Static serves a fixed event
// list and is used by tests and by callers that already hold a track in
// memory.
package source
