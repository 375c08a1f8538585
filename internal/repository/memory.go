package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/argus/internal/event"
)

// Memory is the in-memory event store. Events are grouped by type so that a
// typed query only scans its own bucket.
// It is safe for concurrent use; readers share the lock.
type Memory struct {
	mu     sync.RWMutex
	byType map[string][]event.Event // type → events in insertion order
	ids    map[string]struct{}
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		byType: make(map[string][]event.Event),
		ids:    make(map[string]struct{}),
	}
}

// Insert fails only with ErrDuplicateID. The event is fully built before the
// lock is taken so it becomes visible to readers in one step.
func (m *Memory) Insert(_ context.Context, ev event.Event) (string, error) {
	stored := ev.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.ids[stored.ID]; taken {
		return "", fmt.Errorf("memory insert %s: %w", stored.ID, ErrDuplicateID)
	}
	m.ids[stored.ID] = struct{}{}
	m.byType[stored.Type] = append(m.byType[stored.Type], stored)

	return stored.ID, nil
}

// Query returns copies of the matching events; callers may modify them freely.
func (m *Memory) Query(_ context.Context, q event.Query) ([]event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if q.Type != nil {
		bucket := m.byType[*q.Type]
		return event.Filter(make([]event.Event, 0, len(bucket)), bucket, q), nil
	}

	out := make([]event.Event, 0, len(m.ids))
	for _, bucket := range m.byType {
		out = event.Filter(out, bucket, q)
	}
	return out, nil
}

// Count returns the number of stored events.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids), nil
}
