package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workerhub/internal/workers/models"
)

func TestStamp(t *testing.T) {
	t.Run("fills missing id and timestamp", func(t *testing.T) {
		ev := Stamp(Event{Type: models.EventAllCleared})
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
	})

	t.Run("keeps provided values", func(t *testing.T) {
		ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		ev := Stamp(Event{ID: "fixed", Timestamp: ts})
		assert.Equal(t, "fixed", ev.ID)
		assert.Equal(t, ts, ev.Timestamp)
	})
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Publish(context.Background(), Event{Type: models.EventWorkerAdded}))
	require.NoError(t, m.Publish(context.Background(), Event{Type: models.EventAllCleared}))

	events := m.Events()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventWorkerAdded, events[0].Type)
	assert.Equal(t, models.EventAllCleared, events[1].Type)

	events[0].Type = "mutated"
	assert.Equal(t, models.EventWorkerAdded, m.Events()[0].Type, "Events returns a copy")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
