package store

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"workerhub/internal/platform/metrics"
	"workerhub/internal/workers/models"
	"workerhub/pkg/platform/sentinel"
)

const defaultWriteTimeout = 10 * time.Second

// Durable serializes snapshot writes to a Backend.
//
// At most one write is in flight. Saves that arrive while a write is running
// collapse into a single pending slot holding the newest snapshot, so the
// backend sees a strictly ordered sequence of complete registry states and
// never two writes at once. Every caller's completion channel fires once the
// write carrying its snapshot (or a newer one) finishes.
type Durable struct {
	backend      Backend
	logger       *slog.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration

	mu      sync.Mutex
	pending *pendingWrite
	running bool
	closed  bool
	idle    chan struct{}
}

type pendingWrite struct {
	workers []models.Worker
	waiters []chan error
}

// Option configures a Durable.
type Option func(*Durable)

// WithLogger sets the logger used to report failed writes.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Durable) {
		d.logger = logger
	}
}

// WithMetrics records write outcomes and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Durable) {
		d.metrics = m
	}
}

// WithWriteTimeout bounds a single backend write.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(d *Durable) {
		if timeout > 0 {
			d.writeTimeout = timeout
		}
	}
}

// NewDurable wraps backend with the serialized write queue.
func NewDurable(backend Backend, opts ...Option) *Durable {
	d := &Durable{
		backend:      backend,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load reads the persisted snapshot from the backend.
func (d *Durable) Load(ctx context.Context) ([]models.Worker, error) {
	return d.backend.Load(ctx)
}

// Save schedules workers to be written and returns immediately. The returned
// channel receives the write result exactly once. The caller must not mutate
// workers after handing it over.
func (d *Durable) Save(workers []models.Worker) <-chan error {
	done := make(chan error, 1)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		done <- sentinel.ErrClosed
		return done
	}

	if d.pending == nil {
		d.pending = &pendingWrite{}
	}
	d.pending.workers = workers
	d.pending.waiters = append(d.pending.waiters, done)

	if !d.running {
		d.running = true
		d.idle = make(chan struct{})
		go d.drain()
	}
	return done
}

// drain writes pending snapshots until the slot is empty.
func (d *Durable) drain() {
	for {
		d.mu.Lock()
		next := d.pending
		d.pending = nil
		if next == nil {
			d.running = false
			close(d.idle)
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		err := d.write(next.workers)
		for _, w := range next.waiters {
			w <- err
		}
	}
}

func (d *Durable) write(workers []models.Worker) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	start := time.Now()
	err := d.backend.Write(ctx, workers)
	d.metrics.ObservePersist(start, err)
	if err != nil {
		d.logger.Error("failed to persist registry snapshot", "error", err, "count", len(workers))
		return err
	}
	d.logger.Debug("registry snapshot persisted", "count", len(workers), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Flush blocks until every scheduled write has completed or ctx is done.
func (d *Durable) Flush(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	idle := d.idle
	d.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further saves and waits for queued writes to finish.
func (d *Durable) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.Flush(ctx)
}
