package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"captionsync/internal/clock"
	"captionsync/internal/config"
	"captionsync/internal/language"
	"captionsync/internal/logging"
	"captionsync/internal/metrics"
	"captionsync/internal/mode"
	"captionsync/internal/render"
	"captionsync/internal/scheduler"
	"captionsync/internal/sentence"
	"captionsync/internal/services"
	"captionsync/internal/timeline"
	"captionsync/internal/transport"
)

// TimelineSource supplies the raw caption track for the current media.
type TimelineSource interface {
	Fetch(ctx context.Context) ([]timeline.RawEvent, error)
}

// PlaybackClock reports the media position in milliseconds.
type PlaybackClock interface {
	NowMs() int64
}

// Deps are the collaborators injected into an Engine. Playback and Display
// are required. When Transport is nil one is built from the config.
type Deps struct {
	Source    TimelineSource
	Playback  PlaybackClock
	Transport transport.Transport
	Display   render.Display
	Clock     clock.Clock
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Notifier  scheduler.Notifier
}

// Status is a point-in-time view of the whole pipeline.
type Status struct {
	SessionID       string          `json:"session_id"`
	Running         bool            `json:"running"`
	Provider        string          `json:"provider"`
	TargetLanguage  string          `json:"target_language"`
	Mode            string          `json:"mode"`
	ForcedMode      bool            `json:"forced_mode"`
	TimelineCues    int             `json:"timeline_cues"`
	Groups          int             `json:"groups"`
	ExternalTrack   bool            `json:"external_track"`
	PrefetchPending int             `json:"prefetch_pending"`
	PlaybackMs      int64           `json:"playback_ms"`
	Render          render.Status   `json:"render"`
	Scheduler       scheduler.Stats `json:"scheduler"`
}

// Engine is one playback session.
type Engine struct {
	cfg       *config.Config
	source    TimelineSource
	playback  PlaybackClock
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	sessionID string
	forced    bool

	// sessionLogger is handed to transports rebuilt by ReconfigureTransport.
	sessionLogger *slog.Logger

	timeline *timeline.Timeline
	detector *mode.Detector
	sched    *scheduler.Scheduler
	prefetch *scheduler.Prefetcher
	renderer *render.Renderer

	mu         sync.Mutex
	grouping   sentence.Grouping
	cueTexts   []string
	anchor     int
	anchorMode mode.Mode
	running    bool
	cancel     context.CancelFunc
	group      *errgroup.Group
}

// New wires an idle engine. Nothing runs until Start or Tick.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine requires config")
	}
	if deps.Playback == nil || deps.Display == nil {
		return nil, errors.New("engine requires a playback clock and a display")
	}

	sessionID := uuid.NewString()
	c := clock.OrReal(deps.Clock)
	base := deps.Logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithSessionID(base, sessionID)

	tr := deps.Transport
	if tr == nil {
		built, err := NewTransport(cfg, c, logger, deps.Metrics)
		if err != nil {
			return nil, err
		}
		tr = built
	}

	sched := scheduler.New(tr, SchedulerOptions(cfg),
		scheduler.WithClock(c),
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(deps.Metrics),
		scheduler.WithNotifier(noticeLogger(logger, deps.Notifier)),
	)
	tl := timeline.New(TimelineOptions(cfg))
	renderer := render.New(tl, sched, deps.Display, RenderOptions(cfg),
		render.WithClock(c),
		render.WithLogger(logger),
		render.WithMetrics(deps.Metrics),
	)

	e := &Engine{
		cfg:       cfg,
		source:    deps.Source,
		playback:  deps.Playback,
		clock:     c,
		logger:    logging.NewComponentLogger(logger, "engine"),
		metrics:   deps.Metrics,
		sessionID: sessionID,
		timeline:  tl,
		detector:  mode.NewDetector(ModeOptions(cfg)),
		sched:     sched,
		renderer:  renderer,
		anchor:    -1,

		sessionLogger: logger,
	}
	e.prefetch = scheduler.NewPrefetcher(sched, PrefetchOptions(cfg),
		scheduler.WithPrefetchClock(c),
		scheduler.WithPrefetchLogger(logger),
		scheduler.WithPrefetchMetrics(deps.Metrics),
		scheduler.WithStopWhen(renderer.HasExternalTrack),
	)

	e.metrics.SetMode(mode.Static.String(), mode.Static.String(), mode.Live.String())
	if forced, ok := mode.Parse(cfg.Mode.Force); ok {
		e.forced = true
		e.detector.Force(forced)
		e.applyMode(forced)
	}
	return e, nil
}

func noticeLogger(logger *slog.Logger, next scheduler.Notifier) scheduler.Notifier {
	logger = logging.NewComponentLogger(logger, "notices")
	return scheduler.NotifierFunc(func(n scheduler.Notice) {
		attrs := []logging.Attr{
			logging.String("notice", n.Kind.String()),
			logging.String("message", n.Message()),
		}
		if !n.Until.IsZero() {
			attrs = append(attrs, logging.String("until", n.Until.Format(time.RFC3339)))
		}
		logger.Info("translation notice", logging.Args(attrs...)...)
		if next != nil {
			next.Notify(n)
		}
	})
}

// SessionID identifies this engine in logs and status.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Start launches the tick loop and, when enabled, the prefetch loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine already running")
	}
	runCtx, cancel := context.WithCancel(e.sessionContext(ctx))
	group, groupCtx := errgroup.WithContext(runCtx)
	e.cancel = cancel
	e.group = group
	e.running = true
	e.mu.Unlock()

	interval := millis(e.cfg.Render.TickIntervalMs)
	group.Go(func() error {
		for {
			if err := e.clock.Sleep(groupCtx, interval); err != nil {
				return nil
			}
			e.Tick(groupCtx)
		}
	})
	if e.cfg.Prefetch.Enabled {
		group.Go(func() error {
			e.prefetch.Run(groupCtx)
			return nil
		})
	}

	e.logger.Info("engine started",
		logging.String("provider", e.sched.ProviderName()),
		logging.String("target_language", e.sched.TargetLanguage()),
		logging.Duration("tick_interval", interval),
		logging.Bool("prefetch", e.cfg.Prefetch.Enabled),
	)
	return nil
}

// Stop cancels the loops and waits for them and any outstanding
// resolutions to return. Session state is kept so Start can resume.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	group := e.group
	e.running = false
	e.cancel = nil
	e.group = nil
	e.mu.Unlock()

	cancel()
	_ = group.Wait()
	e.Wait()
	e.logger.Info("engine stopped")
}

// Close stops the engine and tears down the session state.
func (e *Engine) Close() {
	e.Stop()
	e.prefetch.Clear()
	e.renderer.Reset()
	e.timeline.Reset()
	e.detector.Reset()
	e.mu.Lock()
	e.grouping = sentence.Grouping{}
	e.cueTexts = nil
	e.anchor = -1
	e.mu.Unlock()
	e.metrics.SetTimelineCues(0)
}

// Wait blocks until dispatched renders and prefetches finish.
func (e *Engine) Wait() {
	e.renderer.Wait()
	e.prefetch.Wait()
}

func (e *Engine) sessionContext(ctx context.Context) context.Context {
	ctx = services.WithSessionID(ctx, e.sessionID)
	return services.WithProvider(ctx, e.sched.ProviderName())
}

// Refresh fetches the track from the source and replaces the timeline.
func (e *Engine) Refresh(ctx context.Context) error {
	if e.source == nil {
		return errors.New("engine has no timeline source")
	}
	events, err := e.source.Fetch(e.sessionContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch timeline: %w", err)
	}
	return e.LoadTimeline(events)
}

// LoadTimeline replaces the cue timeline, rebuilds the grouping and re-anchors
// the renderer and prefetcher. A track with too few cues keeps the previous
// timeline and returns services.ErrNoTimeline.
func (e *Engine) LoadTimeline(events []timeline.RawEvent) error {
	if err := e.timeline.Replace(events); err != nil {
		logging.WarnWithContext(e.logger, "caption track rejected; keeping previous timeline", "timeline_rejected",
			logging.Int("events", len(events)),
			logging.Int("current_cues", e.timeline.Len()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the track may be empty or still loading"),
			logging.String(logging.FieldImpact, "captions follow the live snapshot until a track loads"),
		)
		return err
	}

	cues := e.timeline.Cues()
	grouping := sentence.Build(cues, GroupingLimits(e.cfg))
	texts := make([]string, len(cues))
	for i, cue := range cues {
		texts[i] = cue.Text
	}

	e.mu.Lock()
	e.grouping = grouping
	e.cueTexts = texts
	e.anchor = -1
	e.mu.Unlock()

	e.renderer.SetGrouping(grouping)
	e.renderer.ResetAnchors()
	e.prefetch.Clear()
	e.metrics.SetTimelineCues(len(cues))
	e.logger.Info("timeline loaded",
		logging.Int("cues", len(cues)),
		logging.Int("groups", grouping.Len()),
		logging.Int64("generation", int64(e.timeline.Generation())),
	)
	return nil
}

// SetTranslatedTrack installs a translated track that is aligned to the
// source timeline by start time. An empty event list removes it.
func (e *Engine) SetTranslatedTrack(events []timeline.RawEvent) error {
	if len(events) == 0 {
		e.renderer.SetExternalTrack(nil)
		e.logger.Info("translated track removed")
		return nil
	}
	track := timeline.New(TimelineOptions(e.cfg))
	if err := track.Replace(events); err != nil {
		return fmt.Errorf("translated track: %w", err)
	}
	e.renderer.SetExternalTrack(track)
	e.prefetch.Clear()
	e.logger.Info("translated track installed", logging.Int("cues", track.Len()))
	return nil
}

// OnSnapshot feeds the caption text currently visible on the page. atMs is
// the observation time in milliseconds on any monotonic scale.
func (e *Engine) OnSnapshot(text string, atMs int64) {
	e.renderer.OnSnapshot(text)
	if e.forced {
		return
	}
	if m, changed := e.detector.Observe(text, atMs); changed {
		e.applyMode(m)
	}
}

func (e *Engine) applyMode(m mode.Mode) {
	e.sched.SetMode(m)
	e.renderer.SetMode(m)
	e.renderer.ResetAnchors()
	e.mu.Lock()
	e.anchor = -1
	e.mu.Unlock()
	e.metrics.SetMode(m.String(), mode.Static.String(), mode.Live.String())
	e.logger.Info("caption mode changed",
		logging.String("mode", m.String()),
		logging.Bool("forced", e.forced),
	)
}

// Tick runs one renderer step at the current playback position and keeps
// the prefetch queue anchored to it.
func (e *Engine) Tick(ctx context.Context) {
	nowMs := e.playback.NowMs()
	e.renderer.Tick(ctx, nowMs)
	if e.cfg.Prefetch.Enabled {
		e.reanchorPrefetch(nowMs)
	}
}

// reanchorPrefetch rebuilds the queue whenever playback reaches a new unit,
// which also covers seeks in either direction.
func (e *Engine) reanchorPrefetch(nowMs int64) {
	if e.renderer.HasExternalTrack() {
		return
	}
	idx, ok := e.timeline.FindActiveIndex(nowMs)
	if !ok {
		window := int64(math.MaxInt64)
		if nowMs > 0 {
			window -= nowMs
		}
		idx, ok = e.timeline.FindUpcomingIndex(nowMs, window)
	}
	if !ok {
		return
	}

	current := e.sched.Mode()
	e.mu.Lock()
	texts := e.cueTexts
	start := idx
	if current == mode.Static {
		if idx >= len(e.grouping.CueToGroup) {
			e.mu.Unlock()
			return
		}
		texts = e.grouping.Texts()
		start = e.grouping.CueToGroup[idx]
	}
	if start == e.anchor && current == e.anchorMode {
		e.mu.Unlock()
		return
	}
	e.anchor = start
	e.anchorMode = current
	e.mu.Unlock()

	e.prefetch.Rebuild(texts, start)
}

// Reconfigure switches the target language. A change clears the cache and
// re-resolves the current unit on the next tick.
func (e *Engine) Reconfigure(targetLang string) error {
	tag, err := language.Normalize(targetLang)
	if err != nil {
		return fmt.Errorf("target language: %w", err)
	}
	if !e.sched.SetTargetLanguage(tag) {
		return nil
	}
	e.prefetch.Clear()
	e.renderer.ResetAnchors()
	e.mu.Lock()
	e.anchor = -1
	e.mu.Unlock()
	e.logger.Info("target language changed", logging.String("target_language", tag))
	return nil
}

// ReconfigureTransport rebuilds the translation provider from cfg and swaps it
// in. The cache and failure state are cleared and the current unit
// re-resolves on the next tick. On error the previous provider stays active.
func (e *Engine) ReconfigureTransport(cfg *config.Config) error {
	tr, err := NewTransport(cfg, e.clock, e.sessionLogger, e.metrics)
	if err != nil {
		return err
	}
	e.sched.SetTransport(tr)
	e.sched.Reset()
	e.prefetch.Clear()
	e.renderer.ResetAnchors()
	e.mu.Lock()
	e.anchor = -1
	e.mu.Unlock()
	e.logger.Info("translation provider reconfigured",
		logging.String("provider", tr.Name()),
		logging.String(logging.FieldEventType, "provider_reconfigured"),
	)
	return nil
}

// Status reports the pipeline state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	running := e.running
	groups := e.grouping.Len()
	e.mu.Unlock()

	stats := e.sched.Stats()
	return Status{
		SessionID:       e.sessionID,
		Running:         running,
		Provider:        e.sched.ProviderName(),
		TargetLanguage:  stats.TargetLanguage,
		Mode:            stats.Mode.String(),
		ForcedMode:      e.forced,
		TimelineCues:    e.timeline.Len(),
		Groups:          groups,
		ExternalTrack:   e.renderer.HasExternalTrack(),
		PrefetchPending: e.prefetch.Pending(),
		PlaybackMs:      e.playback.NowMs(),
		Render:          e.renderer.Status(),
		Scheduler:       stats,
	}
}

// Grouping returns the sentence grouping of the current timeline.
func (e *Engine) Grouping() sentence.Grouping {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grouping
}
