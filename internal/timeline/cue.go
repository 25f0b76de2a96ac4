package timeline

// Cue is a timestamped span of caption text. EndMs is exclusive.
type Cue struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// Contains reports whether nowMs falls inside [StartMs, EndMs).
func (c Cue) Contains(nowMs int64) bool {
	return c.StartMs <= nowMs && nowMs < c.EndMs
}

// DurationMs returns the cue length in milliseconds.
func (c Cue) DurationMs() int64 {
	return c.EndMs - c.StartMs
}

// RawEvent is a caption event as delivered by a timeline source, before
// normalization. A non-positive DurationMs means the event runs until the
// next event starts.
type RawEvent struct {
	StartMs    int64  `json:"start_ms"`
	DurationMs int64  `json:"duration_ms"`
	Text       string `json:"text"`
}
