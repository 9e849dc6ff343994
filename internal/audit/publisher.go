// Package audit publishes a change feed of accepted registry mutations.
// Publishing is best effort: failures are reported to the caller for logging
// and never affect the registry.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Publisher emits change feed events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Stamp fills in the event ID and timestamp when missing.
func Stamp(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return event
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Memory keeps events in memory. Useful in tests and for local debugging.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an empty in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Stamp(event))
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event{}, m.events...)
}
