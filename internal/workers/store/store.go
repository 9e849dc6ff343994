// Package store persists registry snapshots. Backends only know how to read
// and replace one document; Durable layers serialized, coalescing writes on
// top so rapid mutations never race each other to the same destination.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"workerhub/internal/workers/models"
	"workerhub/pkg/platform/sentinel"
)

//go:generate mockgen -source=store.go -destination=mocks/backend_mock.go -package=mocks

// Backend reads and atomically replaces the persisted snapshot.
//
// Load returns an error wrapping sentinel.ErrNotFound when nothing has been
// persisted yet and one wrapping sentinel.ErrCorrupt when content exists but
// cannot be decoded.
// Write must replace the whole document atomically: a reader never observes
// a partially written snapshot.
type Backend interface {
	Load(ctx context.Context) ([]models.Worker, error)
	Write(ctx context.Context, workers []models.Worker) error
}

// Encode renders workers as the persisted document: a JSON array of records.
func Encode(workers []models.Worker) ([]byte, error) {
	if workers == nil {
		workers = []models.Worker{}
	}
	data, err := json.MarshalIndent(workers, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a persisted document. Malformed content is reported as
// sentinel.ErrCorrupt so callers can fall back to a cold start.
func Decode(data []byte) ([]models.Worker, error) {
	var workers []models.Worker
	if err := json.Unmarshal(data, &workers); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w: %v", sentinel.ErrCorrupt, err)
	}
	return workers, nil
}
