package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/argus/internal/event"
)

// Noop accepts and discards every event. It is used to exercise the service
// without storage overhead; it holds no state.
type Noop struct{}

// NewNoop returns a Noop backend.
func NewNoop() Noop { return Noop{} }

// Insert discards ev and returns the ID it would have had.
func (Noop) Insert(_ context.Context, ev event.Event) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	slog.Debug("noop repository: insert discarded", "event_type", ev.Type, "event_id", ev.ID)
	return ev.ID, nil
}

// Query always returns an empty result.
func (Noop) Query(_ context.Context, _ event.Query) ([]event.Event, error) {
	slog.Debug("noop repository: query")
	return []event.Event{}, nil
}

// Count is always zero.
func (Noop) Count(_ context.Context) (int, error) { return 0, nil }
