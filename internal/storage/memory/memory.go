// Package memory is a process-local Storage used when no database path is configured.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"focuspilot/internal/event"
	"focuspilot/internal/storage"
)

var errClosed = errors.New("memory store: closed")

type Store struct {
	mu     sync.Mutex
	kv     map[string][]byte
	events []event.Event
	closed bool
	// FailWrites makes every write fail, for exercising the storage-failure paths.
	FailWrites bool
}

func New() *Store {
	return &Store{kv: make(map[string][]byte)}
}

func (s *Store) Init(ctx context.Context) error {
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	value, ok := s.kv[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return err
	}
	s.kv[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Update(ctx context.Context, key string, fn storage.UpdateFunc) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return nil, err
	}
	current, found := s.kv[key]
	next, err := fn(append([]byte(nil), current...), found)
	if err != nil {
		return nil, err
	}
	s.kv[key] = append([]byte(nil), next...)
	return next, nil
}

func (s *Store) SaveEvent(ctx context.Context, e event.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return 0, err
	}
	e.ID = int64(len(s.events) + 1)
	s.events = append(s.events, e)
	return e.ID, nil
}

func (s *Store) GetEvents(ctx context.Context, start, end time.Time, eventTypes ...event.EventType) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	var out []event.Event
	for _, e := range s.events {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		if len(eventTypes) > 0 && !containsType(eventTypes, e.Type) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) writableLocked() error {
	if s.closed {
		return errClosed
	}
	if s.FailWrites {
		return errors.New("memory store: write failed")
	}
	return nil
}

func containsType(types []event.EventType, t event.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
