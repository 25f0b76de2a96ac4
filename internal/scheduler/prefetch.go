package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"captionsync/internal/clock"
	"captionsync/internal/logging"
	"captionsync/internal/metrics"
	"captionsync/internal/timeline"
)

const (
	DefaultLookahead           = 8
	DefaultPrefetchConcurrency = 2
	DefaultPrefetchInterval    = 400 * time.Millisecond
)

// PrefetchOptions bounds background translation.
type PrefetchOptions struct {
	Lookahead   int
	Concurrency int
	Interval    time.Duration
}

// DefaultPrefetchOptions returns the built-in prefetch settings.
func DefaultPrefetchOptions() PrefetchOptions {
	return PrefetchOptions{
		Lookahead:   DefaultLookahead,
		Concurrency: DefaultPrefetchConcurrency,
		Interval:    DefaultPrefetchInterval,
	}
}

func (o PrefetchOptions) withDefaults() PrefetchOptions {
	if o.Lookahead <= 0 {
		o.Lookahead = DefaultLookahead
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultPrefetchConcurrency
	}
	if o.Interval <= 0 {
		o.Interval = DefaultPrefetchInterval
	}
	return o
}

// Prefetcher translates upcoming texts ahead of playback.
type Prefetcher struct {
	sched   *Scheduler
	opts    PrefetchOptions
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	stop    func() bool

	mu          sync.Mutex
	queue       []string
	cursor      int
	outstanding int
	wg          sync.WaitGroup
}

// PrefetchOption customizes a Prefetcher.
type PrefetchOption func(*Prefetcher)

// WithPrefetchClock overrides the clock that paces Run.
func WithPrefetchClock(c clock.Clock) PrefetchOption {
	return func(p *Prefetcher) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithPrefetchLogger attaches a logger.
func WithPrefetchLogger(logger *slog.Logger) PrefetchOption {
	return func(p *Prefetcher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPrefetchMetrics counts dispatched prefetches.
func WithPrefetchMetrics(m *metrics.Metrics) PrefetchOption {
	return func(p *Prefetcher) {
		p.metrics = m
	}
}

// WithStopWhen halts prefetching while stop reports true, typically once an
// external translated track is available.
func WithStopWhen(stop func() bool) PrefetchOption {
	return func(p *Prefetcher) {
		p.stop = stop
	}
}

// NewPrefetcher creates an idle prefetcher over s.
func NewPrefetcher(s *Scheduler, opts PrefetchOptions, options ...PrefetchOption) *Prefetcher {
	p := &Prefetcher{
		sched:  s,
		opts:   opts.withDefaults(),
		clock:  clock.Real{},
		logger: logging.NewNop(),
	}
	for _, opt := range options {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "prefetch")
	return p
}

// Rebuild replaces the queue with at most Lookahead texts from texts[start:]
// that are neither resolvable nor duplicated.
func (p *Prefetcher) Rebuild(texts []string, start int) {
	if start < 0 {
		start = 0
	}
	queue := make([]string, 0, p.opts.Lookahead)
	seen := make(map[string]struct{}, p.opts.Lookahead)
	for i := start; i < len(texts) && len(queue) < p.opts.Lookahead; i++ {
		key := timeline.Key(texts[i])
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if p.sched.Resolvable(key) {
			continue
		}
		queue = append(queue, key)
	}

	p.mu.Lock()
	p.queue = queue
	p.cursor = 0
	p.mu.Unlock()

	p.logger.Debug("prefetch queue rebuilt",
		logging.Int("anchor", start),
		logging.Int("queued", len(queue)),
	)
}

// Clear drops the queue.
func (p *Prefetcher) Clear() {
	p.mu.Lock()
	p.queue = nil
	p.cursor = 0
	p.mu.Unlock()
}

// Pending reports queued texts not yet dispatched.
func (p *Prefetcher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) - p.cursor
}

// Step dispatches at most one queued text and reports whether it did.
func (p *Prefetcher) Step(ctx context.Context) bool {
	if p.stop != nil && p.stop() {
		p.Clear()
		return false
	}

	p.mu.Lock()
	if p.outstanding >= p.opts.Concurrency {
		p.mu.Unlock()
		return false
	}
	var text string
	for p.cursor < len(p.queue) {
		candidate := p.queue[p.cursor]
		p.cursor++
		if !p.sched.Resolvable(candidate) {
			text = candidate
			break
		}
	}
	if text == "" {
		p.mu.Unlock()
		return false
	}
	p.outstanding++
	p.wg.Add(1)
	p.mu.Unlock()

	p.metrics.ObservePrefetch()
	go func() {
		defer p.wg.Done()
		if _, err := p.sched.Translate(ctx, text); err != nil {
			p.logger.Debug("prefetch translation failed", logging.Caption(text), logging.Error(err))
		}
		p.mu.Lock()
		p.outstanding--
		p.mu.Unlock()
	}()
	return true
}

// Run calls Step every Interval until ctx is done.
func (p *Prefetcher) Run(ctx context.Context) {
	for {
		if err := p.clock.Sleep(ctx, p.opts.Interval); err != nil {
			return
		}
		p.Step(ctx)
	}
}

// Wait blocks until dispatched prefetches finish.
func (p *Prefetcher) Wait() {
	p.wg.Wait()
}
