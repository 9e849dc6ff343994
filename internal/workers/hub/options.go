package hub

import (
	"log/slog"
	"time"

	"workerhub/internal/audit"
	"workerhub/internal/platform/metrics"
	"workerhub/internal/ratelimit/window"
	"workerhub/internal/workers/validation"
)

const (
	DefaultMaxWorkers       = 10000
	DefaultSubscriberBuffer = 256
)

// Option configures a Hub.
type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithValidator replaces the default validator (default bounds).
func WithValidator(v *validation.Validator) Option {
	return func(h *Hub) {
		h.validator = v
	}
}

// WithMaxWorkers caps the registry size.
func WithMaxWorkers(n int) Option {
	return func(h *Hub) {
		h.maxWorkers = n
	}
}

// WithRateLimit sets the per-connection operation budget.
func WithRateLimit(cfg window.Config) Option {
	return func(h *Hub) {
		h.limits = cfg
	}
}

// WithSubscriberBuffer bounds each connection's outbound queue. A connection
// that falls this far behind is evicted.
func WithSubscriberBuffer(n int) Option {
	return func(h *Hub) {
		h.bufferSize = n
	}
}

// WithPublisher sets the change feed publisher.
func WithPublisher(p audit.Publisher) Option {
	return func(h *Hub) {
		h.feed = p
	}
}

// WithClock replaces time.Now for connection rate limiters.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}
