package hub

import (
	"log/slog"
	"sync/atomic"

	"workerhub/internal/ratelimit/window"
	"workerhub/internal/workers/models"
)

// Sink delivers events to one viewer over whatever transport carries them.
// Deliver is called from a single goroutine per connection, in hub order.
// Close is called if the hub evicts the connection.
type Sink interface {
	Deliver(event models.Event) error
	Close()
}

// Conn is the hub's handle for a connected viewer. Its outbox is written only
// by the hub loop and drained by the connection's own pump goroutine, so a
// slow viewer never stalls the hub.
type Conn struct {
	id      string
	sink    Sink
	limiter *window.Limiter
	out     chan models.Event
	evicted atomic.Bool
	done    chan struct{}
}

// ID returns the connection identifier, or "" for server initiated calls.
func (c *Conn) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

// Done is closed once the connection has been removed from the hub and every
// queued event has been handed to its sink.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// pump hands queued events to the sink until the outbox is closed.
func (c *Conn) pump(logger *slog.Logger) {
	defer close(c.done)
	for ev := range c.out {
		if c.evicted.Load() {
			continue
		}
		if err := c.sink.Deliver(ev); err != nil {
			logger.Debug("event delivery failed", "conn_id", c.id, "event", ev.Name, "error", err)
		}
	}
	if c.evicted.Load() {
		c.sink.Close()
	}
}
