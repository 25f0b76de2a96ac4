// Package mode classifies the live caption signal as discrete (static) or
// incrementally growing (live).
//
// The classifier is a smoothed heuristic: each snapshot that extends the
// previous one by a small amount within a short window counts toward live,
// any other change counts toward static. The thresholds are tunable and the
// counter provides hysteresis so noisy input does not flap the mode.
package mode

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// Mode is the stream classification.
type Mode int

const (
	Static Mode = iota
	Live
)

func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	default:
		return "static"
	}
}

// Parse maps a config value to a Mode. Unknown values report false.
func Parse(value string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "static":
		return Static, true
	case "live":
		return Live, true
	default:
		return Static, false
	}
}

const (
	DefaultThreshold     = 2
	DefaultSlack         = 2
	DefaultMaxDeltaChars = 24
	DefaultMaxElapsedMs  = 1500
)

// Options tunes the classifier.
type Options struct {
	Threshold     int
	Slack         int
	MaxDeltaChars int
	MaxElapsedMs  int64
}

// DefaultOptions returns the repository defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:     DefaultThreshold,
		Slack:         DefaultSlack,
		MaxDeltaChars: DefaultMaxDeltaChars,
		MaxElapsedMs:  DefaultMaxElapsedMs,
	}
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Slack < 0 {
		o.Slack = 0
	}
	if o.MaxDeltaChars <= 0 {
		o.MaxDeltaChars = DefaultMaxDeltaChars
	}
	if o.MaxElapsedMs <= 0 {
		o.MaxElapsedMs = DefaultMaxElapsedMs
	}
	return o
}

// Detector tracks the previous snapshot and the smoothing counter.
type Detector struct {
	mu       sync.Mutex
	opts     Options
	mode     Mode
	hits     int
	prevText string
	prevAtMs int64
	hasPrev  bool
}

// NewDetector creates a detector starting in static mode.
func NewDetector(opts Options) *Detector {
	return &Detector{opts: opts.withDefaults()}
}

// Observe feeds a snapshot and returns the resulting mode and whether this
// observation changed it.
func (d *Detector) Observe(text string, nowMs int64) (Mode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		d.prevText = ""
		d.hasPrev = false
		return d.mode, false
	}
	if d.hasPrev && text == d.prevText {
		return d.mode, false
	}

	if d.hasPrev && d.isIncremental(text, nowMs) {
		if d.hits < d.opts.Threshold+d.opts.Slack {
			d.hits++
		}
	} else if d.hasPrev && d.hits > 0 {
		d.hits--
	}
	d.prevText = text
	d.prevAtMs = nowMs
	d.hasPrev = true

	before := d.mode
	switch {
	case d.mode == Static && d.hits >= d.opts.Threshold:
		d.mode = Live
	case d.mode == Live && d.hits == 0:
		d.mode = Static
	}
	return d.mode, d.mode != before
}

func (d *Detector) isIncremental(text string, nowMs int64) bool {
	if !strings.HasPrefix(text, d.prevText) || len(text) <= len(d.prevText) {
		return false
	}
	delta := utf8.RuneCountInString(text) - utf8.RuneCountInString(d.prevText)
	if delta > d.opts.MaxDeltaChars {
		return false
	}
	elapsed := nowMs - d.prevAtMs
	return elapsed >= 0 && elapsed <= d.opts.MaxElapsedMs
}

// Mode returns the current classification.
func (d *Detector) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Hits returns the smoothing counter.
func (d *Detector) Hits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits
}

// Force pins the mode, for providers that declare their stream type.
// The counter is set to match so later observations decay from there.
func (d *Detector) Force(m Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = m
	if m == Live {
		d.hits = d.opts.Threshold + d.opts.Slack
	} else {
		d.hits = 0
	}
}

// Reset returns to static with no history.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = Static
	d.hits = 0
	d.prevText = ""
	d.prevAtMs = 0
	d.hasPrev = false
}
