// Package window implements the per-connection operation throttle.
//
// The limiter approximates a sliding window with a fixed-window counter: it
// tracks how many operations were admitted since the window started and
// resets both once the window has fully elapsed. One Limiter belongs to one
// connection; nothing is shared across connections.
package window

import (
	"fmt"
	"sync"
	"time"
)

// Config holds the admission budget for a single connection.
type Config struct {
	MaxOps int           `mapstructure:"max_ops"`
	Window time.Duration `mapstructure:"window"`
}

// DefaultConfig admits 30 operations per 2 seconds.
func DefaultConfig() Config {
	return Config{MaxOps: 30, Window: 2 * time.Second}
}

// Validate checks the budget is usable.
func (c Config) Validate() error {
	if c.MaxOps <= 0 {
		return fmt.Errorf("rate limit max ops must be positive, got %d", c.MaxOps)
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", c.Window)
	}
	return nil
}

// Limiter is a fixed-window counter. It is safe for concurrent use because a
// transport may deliver one connection's events from several goroutines.
type Limiter struct {
	mu    sync.Mutex
	cfg   Config
	count int
	start time.Time
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter whose first window starts now.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	l.start = l.now()
	return l
}

// Allow counts one operation and reports whether it is within budget.
// Rejected operations still count, so a client that keeps flooding stays
// throttled until the window rolls over.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.start) > l.cfg.Window {
		l.count = 0
		l.start = now
	}
	l.count++
	return l.count <= l.cfg.MaxOps
}

// Remaining returns how many operations the current window still admits.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.now().Sub(l.start) > l.cfg.Window {
		return l.cfg.MaxOps
	}
	return max(l.cfg.MaxOps-l.count, 0)
}
