package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"captionsync/internal/clock"
	"captionsync/internal/logging"
	"captionsync/internal/services"
)

const (
	DefaultMinSpacing = 200 * time.Millisecond
	DefaultMaxRetries = 3
	DefaultRetryBase  = 500 * time.Millisecond
	DefaultRetryMax   = 8 * time.Second
)

// PacedOptions controls outbound spacing and rate-limit retries.
type PacedOptions struct {
	MinSpacing time.Duration
	MaxRetries int
	RetryBase  time.Duration
	RetryMax   time.Duration
}

// DefaultPacedOptions returns the built-in pacing settings.
func DefaultPacedOptions() PacedOptions {
	return PacedOptions{
		MinSpacing: DefaultMinSpacing,
		MaxRetries: DefaultMaxRetries,
		RetryBase:  DefaultRetryBase,
		RetryMax:   DefaultRetryMax,
	}
}

func (o PacedOptions) withDefaults() PacedOptions {
	if o.MinSpacing < 0 {
		o.MinSpacing = 0
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = DefaultRetryBase
	}
	if o.RetryMax < o.RetryBase {
		o.RetryMax = o.RetryBase
	}
	return o
}

// Observer receives one callback per outbound call and per scheduled retry.
type Observer interface {
	ObserveCall(provider string, elapsed time.Duration, err error)
	ObserveRetry(provider string)
}

// Paced serializes calls to the wrapped transport.
type Paced struct {
	next     Transport
	opts     PacedOptions
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer

	token chan struct{}

	mu       sync.Mutex
	lastCall time.Time
}

// PacedOption customizes a Paced transport.
type PacedOption func(*Paced)

// WithClock overrides the clock used for spacing and retry sleeps.
func WithClock(c clock.Clock) PacedOption {
	return func(p *Paced) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger attaches a logger for retry warnings.
func WithLogger(logger *slog.Logger) PacedOption {
	return func(p *Paced) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver reports calls and retries, typically to metrics.
func WithObserver(o Observer) PacedOption {
	return func(p *Paced) {
		p.observer = o
	}
}

// NewPaced wraps next with the outbound queue.
func NewPaced(next Transport, opts PacedOptions, options ...PacedOption) *Paced {
	p := &Paced{
		next:   next,
		opts:   opts.withDefaults(),
		clock:  clock.Real{},
		logger: logging.NewNop(),
		token:  make(chan struct{}, 1),
	}
	for _, opt := range options {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "transport")
	return p
}

// Name reports the wrapped provider's name.
func (p *Paced) Name() string {
	return p.next.Name()
}

// Translate issues the call through the queue, retrying rate-limited failures
// up to MaxRetries times.
func (p *Paced) Translate(ctx context.Context, text, targetLang string) (string, error) {
	attempt := 0
	for {
		result, err := p.call(ctx, text, targetLang)
		if err == nil {
			return result, nil
		}
		if !services.Retryable(err) || attempt >= p.opts.MaxRetries {
			return "", err
		}
		attempt++
		delay := p.retryDelay(err, attempt)
		if p.observer != nil {
			p.observer.ObserveRetry(p.next.Name())
		}
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "provider rate limited, retrying", "provider_rate_limited",
			logging.String(logging.FieldProvider, p.next.Name()),
			logging.Duration("backoff", delay),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", p.opts.MaxRetries),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "lower scheduler concurrency or raise translation.min_spacing_ms"),
			logging.String(logging.FieldImpact, "translation delayed until the provider accepts requests"),
		)
		if err := p.clock.Sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

func (p *Paced) call(ctx context.Context, text, targetLang string) (string, error) {
	select {
	case p.token <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-p.token }()

	if err := p.waitForWindow(ctx); err != nil {
		return "", err
	}
	started := p.clock.Now()
	result, err := p.next.Translate(ctx, text, targetLang)
	p.markCall()
	if p.observer != nil {
		p.observer.ObserveCall(p.next.Name(), p.clock.Now().Sub(started), err)
	}
	return result, err
}

func (p *Paced) waitForWindow(ctx context.Context) error {
	p.mu.Lock()
	lastCall := p.lastCall
	p.mu.Unlock()
	if lastCall.IsZero() || p.opts.MinSpacing <= 0 {
		return nil
	}
	elapsed := p.clock.Now().Sub(lastCall)
	if elapsed >= p.opts.MinSpacing {
		return nil
	}
	return p.clock.Sleep(ctx, p.opts.MinSpacing-elapsed)
}

func (p *Paced) markCall() {
	p.mu.Lock()
	p.lastCall = p.clock.Now()
	p.mu.Unlock()
}

// retryDelay honors the provider's Retry-After hint, otherwise doubles the
// base delay per attempt. Both are capped at RetryMax.
func (p *Paced) retryDelay(err error, attempt int) time.Duration {
	if hint, ok := services.RetryAfter(err); ok {
		return p.capDelay(hint)
	}
	delay := p.opts.RetryBase
	for i := 1; i < attempt; i++ {
		if delay > p.opts.RetryMax/2 {
			delay = p.opts.RetryMax
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p *Paced) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if delay > p.opts.RetryMax {
		return p.opts.RetryMax
	}
	return delay
}
