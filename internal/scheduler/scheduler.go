package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"captionsync/internal/clock"
	"captionsync/internal/language"
	"captionsync/internal/logging"
	"captionsync/internal/metrics"
	"captionsync/internal/mode"
	"captionsync/internal/services"
	"captionsync/internal/timeline"
	"captionsync/internal/transport"
)

const (
	DefaultStaticInterval       = 250 * time.Millisecond
	DefaultLiveInterval         = 100 * time.Millisecond
	DefaultStaticConcurrency    = 2
	DefaultLiveConcurrency      = 4
	DefaultMaxConsecutiveErrors = 3
	DefaultCooldown             = 30 * time.Second
)

// Options configures pacing, concurrency, and the failure cooldown.
type Options struct {
	TargetLanguage       string
	StaticInterval       time.Duration
	LiveInterval         time.Duration
	StaticConcurrency    int
	LiveConcurrency      int
	MaxConsecutiveErrors int
	Cooldown             time.Duration
	SkipTargetLanguage   bool
}

// DefaultOptions returns the built-in scheduler settings.
func DefaultOptions() Options {
	return Options{
		StaticInterval:       DefaultStaticInterval,
		LiveInterval:         DefaultLiveInterval,
		StaticConcurrency:    DefaultStaticConcurrency,
		LiveConcurrency:      DefaultLiveConcurrency,
		MaxConsecutiveErrors: DefaultMaxConsecutiveErrors,
		Cooldown:             DefaultCooldown,
		SkipTargetLanguage:   true,
	}
}

func (o Options) withDefaults() Options {
	if o.StaticInterval < 0 {
		o.StaticInterval = 0
	}
	if o.LiveInterval < 0 {
		o.LiveInterval = 0
	}
	if o.StaticConcurrency <= 0 {
		o.StaticConcurrency = DefaultStaticConcurrency
	}
	if o.LiveConcurrency <= 0 {
		o.LiveConcurrency = DefaultLiveConcurrency
	}
	if o.MaxConsecutiveErrors <= 0 {
		o.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}
	return o
}

// Stats is a point-in-time view of scheduler activity.
type Stats struct {
	TargetLanguage    string
	Mode              mode.Mode
	Cached            int
	InFlight          int
	CacheHits         uint64
	Joined            uint64
	Skipped           uint64
	TransportCalls    uint64
	Failures          uint64
	ShortCircuited    uint64
	ConsecutiveErrors int
	CooldownUntil     time.Time
}

// lane holds the pacing state for one mode.
type lane struct {
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

func newLane(interval time.Duration, concurrency int) lane {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return lane{
		limiter: rate.NewLimiter(limit, 1),
		sem:     semaphore.NewWeighted(int64(concurrency)),
	}
}

// Scheduler is the single owner of the translation cache and in-flight table.
type Scheduler struct {
	transport transport.Transport
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	notifier  Notifier

	group singleflight.Group

	mu            sync.Mutex
	opts          Options
	mode          mode.Mode
	lanes         map[mode.Mode]lane
	cache         map[string]string
	inflight      map[string]struct{}
	epoch         uint64
	consecutive   int
	cooldownUntil time.Time
	stats         Stats
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the wall clock used for pacing and cooldown.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records request outcomes and errors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithNotifier receives failure and pause notices.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// New constructs a Scheduler in static mode.
func New(t transport.Transport, opts Options, options ...Option) *Scheduler {
	opts = opts.withDefaults()
	s := &Scheduler{
		transport: t,
		clock:     clock.Real{},
		logger:    logging.NewNop(),
		opts:      opts,
		mode:      mode.Static,
		lanes: map[mode.Mode]lane{
			mode.Static: newLane(opts.StaticInterval, opts.StaticConcurrency),
			mode.Live:   newLane(opts.LiveInterval, opts.LiveConcurrency),
		},
		cache:    make(map[string]string),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "scheduler")
	return s
}

// Translate resolves text into the target language. During a cooldown an
// uncached text resolves to "" with a nil error. If ctx ends first the caller
// stops waiting; the request itself keeps running.
func (s *Scheduler) Translate(ctx context.Context, text string) (string, error) {
	key := timeline.Key(text)
	if key == "" {
		return "", nil
	}

	now := s.clock.Now()
	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.stats.CacheHits++
		s.mu.Unlock()
		s.metrics.ObserveRequest(metrics.OutcomeCached)
		return cached, nil
	}
	if s.skippableLocked(key) {
		s.cache[key] = key
		s.stats.Skipped++
		s.mu.Unlock()
		s.metrics.ObserveRequest(metrics.OutcomeSkipped)
		return key, nil
	}
	if s.inCooldownLocked(now) {
		s.stats.ShortCircuited++
		s.mu.Unlock()
		s.metrics.ObserveRequest(metrics.OutcomeCooldown)
		return "", nil
	}
	_, joining := s.inflight[key]
	if joining {
		s.stats.Joined++
	}
	target := s.opts.TargetLanguage
	epoch := s.epoch
	current := s.mode
	s.mu.Unlock()

	if joining {
		s.metrics.ObserveRequest(metrics.OutcomeJoined)
	} else {
		s.metrics.ObserveRequest(metrics.OutcomeRequested)
	}

	detached := context.WithoutCancel(ctx)
	flightKey := fmt.Sprintf("%d\x00%s\x00%s", epoch, target, key)
	ch := s.group.DoChan(flightKey, func() (any, error) {
		return s.request(detached, key, target, epoch, current)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Scheduler) request(ctx context.Context, key, target string, epoch uint64, current mode.Mode) (string, error) {
	s.mu.Lock()
	if cached, ok := s.cache[key]; ok && s.epoch == epoch {
		s.mu.Unlock()
		return cached, nil
	}
	s.inflight[key] = struct{}{}
	ln := s.lanes[current]
	tr := s.transport
	s.mu.Unlock()

	result, err := s.call(ctx, tr, ln, key, target)

	s.mu.Lock()
	current = s.mode
	if s.epoch != epoch {
		// Results of a superseded target or provider neither populate the
		// cache nor count against the current failure streak.
		s.mu.Unlock()
		if err != nil {
			s.logger.Debug("discarding failure from superseded request",
				logging.String(logging.FieldProvider, tr.Name()),
				logging.Error(err),
			)
		}
		return result, err
	}
	if err == nil {
		s.cache[key] = result
	}
	delete(s.inflight, key)
	notice, cooldownStarted := s.recordOutcomeLocked(err)
	s.mu.Unlock()

	if err != nil {
		s.metrics.ObserveError(err)
		s.logFailure(ctx, tr.Name(), key, err, current)
	}
	if cooldownStarted {
		s.metrics.SetCooldown(true)
	}
	if notice != nil && s.notifier != nil {
		s.notifier.Notify(*notice)
	}
	return result, err
}

func (s *Scheduler) call(ctx context.Context, tr transport.Transport, ln lane, key, target string) (string, error) {
	if err := ln.sem.Acquire(ctx, 1); err != nil {
		return "", services.Wrap(services.ErrTransport, "scheduler", "acquire slot", "", err)
	}
	defer ln.sem.Release(1)

	now := s.clock.Now()
	if delay := ln.limiter.ReserveN(now, 1).DelayFrom(now); delay > 0 {
		if err := s.clock.Sleep(ctx, delay); err != nil {
			return "", services.Wrap(services.ErrTransport, "scheduler", "pace", "", err)
		}
	}

	s.mu.Lock()
	s.stats.TransportCalls++
	s.mu.Unlock()

	result, err := tr.Translate(ctx, key, target)
	if err != nil {
		return "", err
	}
	result = strings.TrimSpace(result)
	if result == "" {
		return "", services.Wrap(services.ErrMalformedResponse, "scheduler", "translate", "provider returned empty text", nil)
	}
	return result, nil
}

// recordOutcomeLocked updates the failure streak. It returns the notice to
// deliver, if any, and whether this outcome opened the cooldown.
func (s *Scheduler) recordOutcomeLocked(err error) (*Notice, bool) {
	if err == nil {
		s.consecutive = 0
		return nil, false
	}
	s.stats.Failures++
	s.consecutive++
	if s.consecutive >= s.opts.MaxConsecutiveErrors {
		s.consecutive = 0
		s.cooldownUntil = s.clock.Now().Add(s.opts.Cooldown)
		return &Notice{Kind: NoticePaused, Err: err, Until: s.cooldownUntil}, true
	}
	if s.consecutive == 1 {
		return &Notice{Kind: NoticeFailure, Err: err}, false
	}
	return nil, false
}

func (s *Scheduler) inCooldownLocked(now time.Time) bool {
	if s.cooldownUntil.IsZero() {
		return false
	}
	if now.Before(s.cooldownUntil) {
		return true
	}
	s.cooldownUntil = time.Time{}
	s.metrics.SetCooldown(false)
	s.logger.Info("translation cooldown ended",
		logging.String(logging.FieldEventType, "translation_resumed"),
	)
	return false
}

func (s *Scheduler) skippableLocked(key string) bool {
	if !language.IsTranslatable(key) {
		return true
	}
	return s.opts.SkipTargetLanguage && language.IsLikelyTarget(key, s.opts.TargetLanguage)
}

func (s *Scheduler) logFailure(ctx context.Context, provider, text string, err error, current mode.Mode) {
	logger := logging.WithContext(ctx, s.logger)
	logging.WarnWithContext(logger, "translation request failed", "translation_failed",
		logging.String(logging.FieldProvider, provider),
		logging.ErrorKind(err),
		logging.String(logging.FieldMode, current.String()),
		logging.Caption(text),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, errorHint(err)),
		logging.String(logging.FieldImpact, "original caption shown until a translation succeeds"),
	)
}

func errorHint(err error) string {
	switch services.Kind(err) {
	case "missing-credentials":
		return "set translation.api_key or CAPTIONSYNC_API_KEY"
	case "rate-limited":
		return "lower scheduler concurrency or raise translation.min_spacing_ms"
	case "malformed-response":
		return "check translation.model supports chat completions"
	default:
		return "check provider connectivity and translation.base_url"
	}
}

// Cached returns the cached translation for text.
func (s *Scheduler) Cached(text string) (string, bool) {
	key := timeline.Key(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache[key]
	return v, ok
}

// InFlight reports whether a request for text is outstanding.
func (s *Scheduler) InFlight(text string) bool {
	key := timeline.Key(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[key]
	return ok
}

// Resolvable reports whether text can resolve without issuing a new request:
// it is cached, in flight, or needs no translation.
func (s *Scheduler) Resolvable(text string) bool {
	key := timeline.Key(text)
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[key]; ok {
		return true
	}
	if _, ok := s.inflight[key]; ok {
		return true
	}
	return s.skippableLocked(key)
}

// SetMode switches the pacing lane used by new requests.
func (s *Scheduler) SetMode(m mode.Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// Mode returns the current pacing lane.
func (s *Scheduler) Mode() mode.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// TargetLanguage returns the current target tag.
func (s *Scheduler) TargetLanguage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.TargetLanguage
}

// SetTargetLanguage changes the target. A different target clears the cache.
func (s *Scheduler) SetTargetLanguage(tag string) bool {
	s.mu.Lock()
	if s.opts.TargetLanguage == tag {
		s.mu.Unlock()
		return false
	}
	s.opts.TargetLanguage = tag
	s.resetLocked()
	s.mu.Unlock()
	s.metrics.SetCooldown(false)
	s.logger.Info("translation target changed",
		logging.String("target_language", tag),
		logging.String(logging.FieldEventType, "target_language_changed"),
	)
	return true
}

// Reset clears the cache, the in-flight table, and the failure state.
// Requests still running complete but their results are not cached.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.metrics.SetCooldown(false)
}

// SetTransport swaps the provider used by new requests. Requests already
// running finish on the previous provider; call Reset to discard them.
func (s *Scheduler) SetTransport(t transport.Transport) {
	if t == nil {
		return
	}
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
	s.logger.Info("translation provider changed",
		logging.String(logging.FieldProvider, t.Name()),
		logging.String(logging.FieldEventType, "provider_changed"),
	)
}

// ProviderName returns the name of the active transport.
func (s *Scheduler) ProviderName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.Name()
}

func (s *Scheduler) resetLocked() {
	s.epoch++
	s.cache = make(map[string]string)
	s.inflight = make(map[string]struct{})
	s.consecutive = 0
	s.cooldownUntil = time.Time{}
}

// Stats returns a snapshot of scheduler activity.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.TargetLanguage = s.opts.TargetLanguage
	out.Mode = s.mode
	out.Cached = len(s.cache)
	out.InFlight = len(s.inflight)
	out.ConsecutiveErrors = s.consecutive
	out.CooldownUntil = s.cooldownUntil
	return out
}
