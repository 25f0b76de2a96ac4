package testsupport

import (
	"context"
	"sync"
	"time"
)

// FakeClock is a manually advanced clock. Sleep returns immediately after
// moving time forward by the requested duration.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFakeClock returns a clock starting at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	c.mu.Unlock()
	return nil
}

// Advance moves the clock forward.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleeps returns every duration passed to Sleep, in call order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// PlaybackClock is a settable media position.
type PlaybackClock struct {
	mu sync.Mutex
	ms int64
}

func (p *PlaybackClock) NowMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ms
}

// Set moves the playback position.
func (p *PlaybackClock) Set(ms int64) {
	p.mu.Lock()
	p.ms = ms
	p.mu.Unlock()
}
