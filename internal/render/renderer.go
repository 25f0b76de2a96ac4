package render

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"captionsync/internal/clock"
	"captionsync/internal/logging"
	"captionsync/internal/metrics"
	"captionsync/internal/mode"
	"captionsync/internal/sentence"
	"captionsync/internal/services"
	"captionsync/internal/timeline"
)

const (
	DefaultEarlyWindowMs    = 400
	DefaultHideDebounce     = 300 * time.Millisecond
	DefaultSnapshotSettle   = 300 * time.Millisecond
	DefaultMaxOriginalChars = 120
)

// Display is the overlay sink.
type Display interface {
	Show(translated, original string)
	Hide()
}

// Translator resolves source text. It is satisfied by *scheduler.Scheduler.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
	Cached(text string) (string, bool)
	Resolvable(text string) bool
}

// Options tunes display timing.
type Options struct {
	EarlyWindowMs    int64
	HideDebounce     time.Duration
	SnapshotSettle   time.Duration
	MaxOriginalChars int
	Bilingual        bool
}

// DefaultOptions returns the built-in render settings.
func DefaultOptions() Options {
	return Options{
		EarlyWindowMs:    DefaultEarlyWindowMs,
		HideDebounce:     DefaultHideDebounce,
		SnapshotSettle:   DefaultSnapshotSettle,
		MaxOriginalChars: DefaultMaxOriginalChars,
		Bilingual:        true,
	}
}

func (o Options) withDefaults() Options {
	if o.EarlyWindowMs < 0 {
		o.EarlyWindowMs = 0
	}
	if o.HideDebounce < 0 {
		o.HideDebounce = 0
	}
	if o.SnapshotSettle < 0 {
		o.SnapshotSettle = 0
	}
	if o.MaxOriginalChars < 0 {
		o.MaxOriginalChars = 0
	}
	return o
}

// Phase is the display state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseShowing
)

func (p Phase) String() string {
	if p == PhaseShowing {
		return "showing"
	}
	return "idle"
}

// Status is a point-in-time view of the renderer.
type Status struct {
	Phase        Phase
	UnitKey      string
	Version      uint64
	Translated   string
	Original     string
	Renders      uint64
	StaleDropped uint64
	Failures     uint64
}

// unit is one translation-worthy span resolved for the current instant.
type unit struct {
	key        string
	source     string
	translated string
	aligned    bool
}

// Renderer is the playback-synchronized selection state machine.
type Renderer struct {
	translator Translator
	display    Display
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics

	wg sync.WaitGroup

	mu         sync.Mutex
	opts       Options
	timeline   *timeline.Timeline
	grouping   sentence.Grouping
	external   *timeline.Timeline
	mode       mode.Mode
	phase      Phase
	unitKey    string
	version    uint64
	translated string
	original   string
	noCueSince time.Time

	snapshot   string
	snapshotAt time.Time

	renders  uint64
	stale    uint64
	failures uint64
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithClock overrides the wall clock used for debounce windows.
func WithClock(c clock.Clock) Option {
	return func(r *Renderer) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records renders and stale drops.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Renderer) {
		r.metrics = m
	}
}

// New constructs an idle renderer reading cues from tl.
func New(tl *timeline.Timeline, translator Translator, display Display, opts Options, options ...Option) *Renderer {
	r := &Renderer{
		translator: translator,
		display:    display,
		clock:      clock.Real{},
		logger:     logging.NewNop(),
		opts:       opts.withDefaults(),
		timeline:   tl,
	}
	for _, opt := range options {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "render")
	return r
}

// SetGrouping installs the sentence grouping built from the current timeline.
func (r *Renderer) SetGrouping(g sentence.Grouping) {
	r.mu.Lock()
	r.grouping = g
	r.mu.Unlock()
}

// SetExternalTrack installs or, with nil, removes a translated track.
func (r *Renderer) SetExternalTrack(track *timeline.Timeline) {
	r.mu.Lock()
	r.external = track
	r.resetAnchorsLocked()
	r.mu.Unlock()
}

// HasExternalTrack reports whether a translated track is installed.
func (r *Renderer) HasExternalTrack() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.external != nil && r.external.Len() > 0
}

// SetMode selects how units are formed.
func (r *Renderer) SetMode(m mode.Mode) {
	r.mu.Lock()
	r.mode = m
	r.mu.Unlock()
}

// ResetAnchors forces the next tick to re-resolve its unit and drops any
// pending resolution. The current display stays up.
func (r *Renderer) ResetAnchors() {
	r.mu.Lock()
	r.resetAnchorsLocked()
	r.mu.Unlock()
}

func (r *Renderer) resetAnchorsLocked() {
	r.unitKey = ""
	r.version++
	r.noCueSince = time.Time{}
}

// OnSnapshot records the latest caption text seen on the page. It is the
// unit source only while no timeline is loaded.
func (r *Renderer) OnSnapshot(text string) {
	text = timeline.NormalizeText(text)
	now := r.clock.Now()
	r.mu.Lock()
	if text != r.snapshot {
		r.snapshot = text
		r.snapshotAt = now
	}
	r.mu.Unlock()
}

// Tick selects and renders the unit for playback position nowMs.
func (r *Renderer) Tick(ctx context.Context, nowMs int64) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	u, found, pending := r.selectLocked(nowMs, now)
	if pending {
		return
	}
	if !found {
		r.noCueLocked(now)
		return
	}
	r.noCueSince = time.Time{}
	if u.key == r.unitKey {
		return
	}
	r.unitKey = u.key
	r.version++
	version := r.version

	if u.aligned {
		r.showLocked(u.translated, u.source)
		return
	}
	if cached, ok := r.translator.Cached(u.source); ok && cached != "" {
		r.showLocked(cached, u.source)
		return
	}
	r.wg.Add(1)
	go r.resolve(ctx, u, version)
}

// selectLocked finds the unit for the instant. pending reports a snapshot
// that has not settled yet, in which case nothing changes.
func (r *Renderer) selectLocked(nowMs int64, now time.Time) (unit, bool, bool) {
	if r.timeline == nil || r.timeline.Len() == 0 {
		return r.snapshotUnitLocked(now)
	}
	if idx, ok := r.timeline.FindActiveIndex(nowMs); ok {
		u, ok := r.unitForLocked(idx)
		return u, ok, false
	}
	idx, ok := r.timeline.FindUpcomingIndex(nowMs, r.opts.EarlyWindowMs)
	if !ok {
		return unit{}, false, false
	}
	u, ok := r.unitForLocked(idx)
	if !ok {
		return unit{}, false, false
	}
	if !u.aligned && !r.translator.Resolvable(u.source) {
		return unit{}, false, false
	}
	return u, true, false
}

func (r *Renderer) snapshotUnitLocked(now time.Time) (unit, bool, bool) {
	if r.snapshot == "" {
		return unit{}, false, false
	}
	if r.mode == mode.Live && now.Sub(r.snapshotAt) < r.opts.SnapshotSettle {
		return unit{}, false, true
	}
	return unit{key: timeline.Key(r.snapshot), source: r.snapshot}, true, false
}

func (r *Renderer) unitForLocked(idx int) (unit, bool) {
	cue, ok := r.timeline.Cue(idx)
	if !ok {
		return unit{}, false
	}
	if r.external != nil && r.external.Len() > 0 {
		if aligned, ok := r.external.FindNearestByStart(cue.StartMs); ok {
			return unit{key: timeline.Key(cue.Text), source: cue.Text, translated: aligned.Text, aligned: true}, true
		}
		return unit{key: timeline.Key(cue.Text), source: cue.Text}, true
	}
	if r.mode == mode.Static {
		if group, ok := r.grouping.GroupOf(idx); ok {
			return unit{key: timeline.Key(group.Text), source: group.Text}, true
		}
	}
	return unit{key: timeline.Key(cue.Text), source: cue.Text}, true
}

func (r *Renderer) noCueLocked(now time.Time) {
	if r.unitKey != "" {
		// Playback left the unit; a resolution still pending for it is stale.
		r.unitKey = ""
		r.version++
	}
	if r.phase != PhaseShowing {
		return
	}
	if r.noCueSince.IsZero() {
		r.noCueSince = now
	}
	if now.Sub(r.noCueSince) < r.opts.HideDebounce {
		return
	}
	r.display.Hide()
	r.phase = PhaseIdle
	r.translated = ""
	r.original = ""
	r.version++
	r.noCueSince = time.Time{}
}

func (r *Renderer) resolve(ctx context.Context, u unit, version uint64) {
	defer r.wg.Done()

	translated, err := r.translator.Translate(ctx, u.source)

	r.mu.Lock()
	defer r.mu.Unlock()
	if version != r.version {
		r.stale++
		r.metrics.ObserveStale()
		r.logger.Debug("dropped stale translation",
			logging.ErrorKind(services.ErrStaleResult),
			logging.Int64("version", int64(version)),
			logging.Int64("current_version", int64(r.version)),
		)
		return
	}
	if err != nil || translated == "" {
		r.failures++
		if err != nil {
			r.logger.Debug("translation unavailable, keeping last display",
				logging.ErrorKind(err),
				logging.Error(err),
			)
		}
		return
	}
	r.showLocked(translated, u.source)
}

func (r *Renderer) showLocked(translated, source string) {
	original := ""
	if r.opts.Bilingual && timeline.Key(translated) != timeline.Key(source) &&
		utf8.RuneCountInString(source) <= r.opts.MaxOriginalChars {
		original = source
	}
	if r.phase == PhaseShowing && translated == r.translated && original == r.original {
		return
	}
	r.display.Show(translated, original)
	r.phase = PhaseShowing
	r.translated = translated
	r.original = original
	r.renders++
	r.metrics.ObserveRender()
}

// Wait blocks until outstanding resolutions finish.
func (r *Renderer) Wait() {
	r.wg.Wait()
}

// Reset hides the overlay and clears all state except options and sources.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseShowing {
		r.display.Hide()
	}
	r.phase = PhaseIdle
	r.translated = ""
	r.original = ""
	r.snapshot = ""
	r.snapshotAt = time.Time{}
	r.resetAnchorsLocked()
}

// Status returns a snapshot of renderer state.
func (r *Renderer) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Phase:        r.phase,
		UnitKey:      r.unitKey,
		Version:      r.version,
		Translated:   r.translated,
		Original:     r.original,
		Renders:      r.renders,
		StaleDropped: r.stale,
		Failures:     r.failures,
	}
}
