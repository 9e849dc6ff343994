package audit

import (
	"time"

	"workerhub/internal/workers/models"
)

// Event records one accepted registry mutation. Keep it transport-agnostic so
// publishers can fan out to any sink.
type Event struct {
	ID        string           `json:"id"`
	Type      models.EventName `json:"type"`
	ConnID    string           `json:"conn_id,omitempty"`
	Workers   []models.Worker  `json:"workers,omitempty"`
	Size      int              `json:"registry_size"`
	Timestamp time.Time        `json:"timestamp"`
}
