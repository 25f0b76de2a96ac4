package timeline

import (
	"fmt"
	"sort"

	"captionsync/internal/services"
)

const (
	// DefaultMinCues is the smallest track accepted by Replace.
	DefaultMinCues = 2
	// DefaultCoalesceGapMs bounds the gap across which identical adjacent cues merge.
	DefaultCoalesceGapMs = 250
	// DefaultOpenEndedMs is the length given to a trailing event without a duration.
	DefaultOpenEndedMs = 2000
	// DefaultAlignToleranceMs bounds the start delta FindNearestByStart accepts.
	DefaultAlignToleranceMs = 1500
)

// Options tunes timeline construction and alignment.
type Options struct {
	MinCues          int
	CoalesceGapMs    int64
	OpenEndedMs      int64
	AlignToleranceMs int64
}

// DefaultOptions returns the repository defaults.
func DefaultOptions() Options {
	return Options{
		MinCues:          DefaultMinCues,
		CoalesceGapMs:    DefaultCoalesceGapMs,
		OpenEndedMs:      DefaultOpenEndedMs,
		AlignToleranceMs: DefaultAlignToleranceMs,
	}
}

func (o Options) withDefaults() Options {
	if o.MinCues <= 0 {
		o.MinCues = DefaultMinCues
	}
	if o.CoalesceGapMs < 0 {
		o.CoalesceGapMs = 0
	}
	if o.OpenEndedMs <= 0 {
		o.OpenEndedMs = DefaultOpenEndedMs
	}
	if o.AlignToleranceMs <= 0 {
		o.AlignToleranceMs = DefaultAlignToleranceMs
	}
	return o
}

// Build normalizes raw events into a sorted, non-overlapping cue sequence.
// It returns ErrNoTimeline when fewer than opts.MinCues cues survive.
func Build(events []RawEvent, opts Options) ([]Cue, error) {
	opts = opts.withDefaults()

	items := make([]RawEvent, 0, len(events))
	for _, ev := range events {
		text := NormalizeText(ev.Text)
		if text == "" || ev.StartMs < 0 {
			continue
		}
		ev.Text = text
		items = append(items, ev)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartMs < items[j].StartMs
	})

	cues := make([]Cue, 0, len(items))
	for i, item := range items {
		end := item.StartMs + item.DurationMs
		if item.DurationMs <= 0 {
			end = item.StartMs + opts.OpenEndedMs
			for j := i + 1; j < len(items); j++ {
				if items[j].StartMs > item.StartMs {
					end = items[j].StartMs
					break
				}
			}
		}
		cues = append(cues, Cue{StartMs: item.StartMs, EndMs: end, Text: item.Text})
	}

	cues = mergeSameStart(cues)
	clipOverlaps(cues)
	cues = coalesce(cues, opts.CoalesceGapMs)

	if len(cues) < opts.MinCues {
		return nil, services.Wrap(services.ErrNoTimeline, "timeline", "build",
			fmt.Sprintf("%d cues, need at least %d", len(cues), opts.MinCues), nil)
	}
	return cues, nil
}

// mergeSameStart folds cues that share a start time into one cue.
func mergeSameStart(cues []Cue) []Cue {
	if len(cues) < 2 {
		return cues
	}
	out := cues[:1]
	for _, cue := range cues[1:] {
		last := &out[len(out)-1]
		if cue.StartMs != last.StartMs {
			out = append(out, cue)
			continue
		}
		if cue.Text != last.Text {
			last.Text = last.Text + " " + cue.Text
		}
		if cue.EndMs > last.EndMs {
			last.EndMs = cue.EndMs
		}
	}
	return out
}

// clipOverlaps ends each cue no later than the start of its successor.
// Starts are strictly increasing here, so every cue keeps a positive length.
func clipOverlaps(cues []Cue) {
	for i := 0; i+1 < len(cues); i++ {
		if cues[i].EndMs > cues[i+1].StartMs {
			cues[i].EndMs = cues[i+1].StartMs
		}
	}
}

// coalesce merges adjacent cues whose text is identical and whose gap is small.
func coalesce(cues []Cue, gapMs int64) []Cue {
	if len(cues) < 2 {
		return cues
	}
	out := cues[:1]
	for _, cue := range cues[1:] {
		last := &out[len(out)-1]
		if cue.Text == last.Text && cue.StartMs-last.EndMs <= gapMs {
			if cue.EndMs > last.EndMs {
				last.EndMs = cue.EndMs
			}
			continue
		}
		out = append(out, cue)
	}
	return out
}
