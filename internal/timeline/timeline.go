package timeline

import (
	"sort"
	"sync"
)

// maxCursorSteps bounds the linear scan from the cursor before falling back
// to binary search.
const maxCursorSteps = 4

// Timeline is a replaceable cue sequence with a lookup cursor.
type Timeline struct {
	mu         sync.Mutex
	opts       Options
	cues       []Cue
	cursor     int
	generation uint64
}

// New creates an empty timeline.
func New(opts Options) *Timeline {
	return &Timeline{opts: opts.withDefaults()}
}

// Replace rebuilds the cue sequence from raw events. When the events yield
// too few cues the current sequence is kept and ErrNoTimeline is returned.
func (t *Timeline) Replace(events []RawEvent) error {
	cues, err := Build(events, t.opts)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.cues = cues
	t.cursor = 0
	t.generation++
	t.mu.Unlock()
	return nil
}

// Reset drops all cues.
func (t *Timeline) Reset() {
	t.mu.Lock()
	t.cues = nil
	t.cursor = 0
	t.generation++
	t.mu.Unlock()
}

// Len returns the number of cues.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cues)
}

// Generation increments on every Replace or Reset.
func (t *Timeline) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// Cue returns the cue at index i.
func (t *Timeline) Cue(i int) (Cue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.cues) {
		return Cue{}, false
	}
	return t.cues[i], true
}

// Cues returns a copy of the current sequence.
func (t *Timeline) Cues() []Cue {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Cue, len(t.cues))
	copy(out, t.cues)
	return out
}

// FindActiveIndex returns the index of the cue containing nowMs.
func (t *Timeline) FindActiveIndex(nowMs int64) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.cues)
	if n == 0 {
		return -1, false
	}
	c := t.cursor
	if c < 0 || c >= n {
		c = 0
	}
	if t.cues[c].Contains(nowMs) {
		return c, true
	}

	if nowMs >= t.cues[c].EndMs {
		// nowMs is past cue i-1 on every iteration.
		for step, i := 0, c+1; step < maxCursorSteps && i < n; step, i = step+1, i+1 {
			if nowMs < t.cues[i].StartMs {
				t.cursor = i
				return -1, false
			}
			if nowMs < t.cues[i].EndMs {
				t.cursor = i
				return i, true
			}
		}
	} else {
		// nowMs is before cue i+1 on every iteration.
		for step, i := 0, c-1; step < maxCursorSteps && i >= 0; step, i = step+1, i-1 {
			if nowMs >= t.cues[i].EndMs {
				t.cursor = i
				return -1, false
			}
			if nowMs >= t.cues[i].StartMs {
				t.cursor = i
				return i, true
			}
		}
	}

	idx := sort.Search(n, func(i int) bool { return t.cues[i].StartMs > nowMs }) - 1
	if idx < 0 {
		t.cursor = 0
		return -1, false
	}
	t.cursor = idx
	if nowMs < t.cues[idx].EndMs {
		return idx, true
	}
	return -1, false
}

// FindUpcomingIndex returns the next cue starting after nowMs when its start
// lies within earlyWindowMs.
func (t *Timeline) FindUpcomingIndex(nowMs, earlyWindowMs int64) (int, bool) {
	if earlyWindowMs <= 0 {
		return -1, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.cues)
	i := sort.Search(n, func(i int) bool { return t.cues[i].StartMs > nowMs })
	if i >= n {
		return -1, false
	}
	if t.cues[i].StartMs-nowMs > earlyWindowMs {
		return -1, false
	}
	return i, true
}

// FindNearestByStart returns the cue whose start is closest to targetStartMs,
// provided the distance is within the alignment tolerance.
func (t *Timeline) FindNearestByStart(targetStartMs int64) (Cue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.cues)
	if n == 0 {
		return Cue{}, false
	}
	i := sort.Search(n, func(i int) bool { return t.cues[i].StartMs >= targetStartMs })
	best := -1
	var bestDelta int64
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= n {
			continue
		}
		delta := abs(t.cues[j].StartMs - targetStartMs)
		if best < 0 || delta < bestDelta {
			best, bestDelta = j, delta
		}
	}
	if best < 0 || bestDelta > t.opts.AlignToleranceMs {
		return Cue{}, false
	}
	return t.cues[best], true
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
