// Package redis persists the registry snapshot under a single Redis key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"workerhub/internal/workers/models"
	"workerhub/internal/workers/store"
	"workerhub/pkg/platform/sentinel"
)

var (
	writeDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "workerhub_redis_snapshot_write_duration_ms",
		Help:    "Latency of Redis snapshot writes in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)

// DefaultKey is where the snapshot lives unless overridden.
const DefaultKey = "workerhub:registry:snapshot"

// Store is a Redis-backed snapshot store. SET replaces the value atomically,
// so readers never observe a partial document.
type Store struct {
	client *redis.Client
	key    string
}

// Option configures a Store instance.
type Option func(*Store)

// WithKey overrides the snapshot key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// New constructs a Redis-backed snapshot store.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, key: DefaultKey}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load reads the snapshot. A missing key is reported as sentinel.ErrNotFound.
func (s *Store) Load(ctx context.Context) ([]models.Worker, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("snapshot key %s: %w", s.key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return store.Decode(data)
}

// Write replaces the snapshot.
func (s *Store) Write(ctx context.Context, workers []models.Worker) error {
	start := time.Now()
	defer func() {
		writeDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	data, err := store.Encode(workers)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}
