// Package render decides, on every playback tick, which translated unit the
// overlay shows.
//
// Units are sentence groups in static mode and raw cues in live mode. When an
// external translated track is loaded, each cue is paired with the track cue
// whose start is nearest within tolerance. Without a timeline the latest
// caption snapshot is the unit once it has held still long enough.
//
// Translation is asynchronous and never blocks a tick. Each unit change bumps
// a version counter; a result that resolves after its version was superseded
// is dropped. A failed or empty result leaves the last valid display in
// place. The overlay hides only after the no-cue state has lasted the hide
// debounce window.
package render
