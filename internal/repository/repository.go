package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/argus/internal/event"
)

// Backend kinds accepted by New.
const (
	KindMemory = "memory"
	KindNoop   = "noop"
	KindRedis  = "redis"
)

var (
	// ErrStorage marks a failure of the underlying storage, as opposed to an
	// empty result. Backends wrap their errors with it.
	ErrStorage = errors.New("storage failure")

	// ErrDuplicateID is returned by Insert when an event with the same ID is
	// already stored. The stored event is left untouched.
	ErrDuplicateID = errors.New("duplicate event id")

	// ErrUnknownKind is returned by New for an unrecognised backend kind.
	ErrUnknownKind = errors.New("unknown repository kind")
)

// Repository is the contract every event storage backend satisfies.
// Implementations must be safe for concurrent use without external locking.
type Repository interface {
	// Insert stores ev, assigning an ID when ev.ID is empty, and returns the ID.
	// An ID that is already stored fails with ErrDuplicateID.
	Insert(ctx context.Context, ev event.Event) (string, error)
	// Query returns every stored event matching q. An empty result is not an error.
	Query(ctx context.Context, q event.Query) ([]event.Event, error)
	// Count returns the number of stored events.
	Count(ctx context.Context) (int, error)
}

// Options carries backend-specific settings for New.
type Options struct {
	Redis RedisOptions
}

// New constructs the backend named by kind.
func New(kind string, opts Options) (Repository, error) {
	switch kind {
	case KindMemory:
		return NewMemory(), nil
	case KindNoop:
		return NewNoop(), nil
	case KindRedis:
		return NewRedis(opts.Redis)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// storageErr wraps err with ErrStorage and the failing operation.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
