package storage

import (
	"context"
	"errors"
	"time"

	"focuspilot/internal/event"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// UpdateFunc receives the current value (nil when absent) and returns the value to store.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

type Storage interface {
	Init(ctx context.Context) error

	// Key/value records, stored by value.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Update runs fn and the write in one transaction.
	Update(ctx context.Context, key string, fn UpdateFunc) ([]byte, error)

	// History log.
	SaveEvent(ctx context.Context, e event.Event) (int64, error)
	GetEvents(ctx context.Context, start, end time.Time, eventTypes ...event.EventType) ([]event.Event, error)

	Close() error
}
