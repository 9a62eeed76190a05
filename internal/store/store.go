package store

import (
	"context"
	"fmt"
	"sync"

	appLog "tutorcal/internal/log"
	"tutorcal/internal/model"
)

// Remote is the authoritative lesson-schedule source.
type Remote interface {
	List(ctx context.Context) ([]model.CalendarEvent, error)
	Get(ctx context.Context, id int64) (model.CalendarEvent, error)
	Create(ctx context.Context, in model.EventInput) (model.CalendarEvent, error)
	Update(ctx context.Context, id int64, in model.EventInput) (model.CalendarEvent, error)
	Delete(ctx context.Context, id int64) error
}

// RefreshError means a write succeeded but the follow-up list fetch did
// not, so the local cache still holds the pre-write collection.
type RefreshError struct {
	Op  string
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("store: %s succeeded but refresh failed: %v", e.Op, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Store is a client-side cache of the remote collection. Every successful
// write is followed by a full refetch; the collection is only ever
// replaced as a whole, never patched. Writes and fetches never touch the
// cache themselves, so they can run without holding the page state.
type Store struct {
	remote Remote

	mu      sync.RWMutex
	events  []model.CalendarEvent
	version uint64
}

func New(remote Remote) *Store {
	return &Store{remote: remote}
}

// Remote returns the backing source.
func (s *Store) Remote() Remote {
	return s.remote
}

// Events returns a copy of the cached collection.
func (s *Store) Events() []model.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CalendarEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Find returns the cached event with the given id.
func (s *Store) Find(id int64) (model.CalendarEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ev := range s.events {
		if ev.ID == id {
			return ev, true
		}
	}
	return model.CalendarEvent{}, false
}

// Version increases with every replace.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Replace swaps in a freshly fetched collection.
func (s *Store) Replace(events []model.CalendarEvent) {
	cp := make([]model.CalendarEvent, len(events))
	copy(cp, events)

	s.mu.Lock()
	s.events = cp
	s.version++
	s.mu.Unlock()
}

// Fetch lists the remote collection without touching the cache.
func (s *Store) Fetch(ctx context.Context) ([]model.CalendarEvent, error) {
	events, err := s.remote.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return events, nil
}

// Create writes in and lists the collection again. The cache is not
// touched; callers Replace it with the returned events once they own the
// page state again.
func (s *Store) Create(ctx context.Context, in model.EventInput) ([]model.CalendarEvent, error) {
	if _, err := s.remote.Create(ctx, in); err != nil {
		return nil, fmt.Errorf("store: create: %w", err)
	}
	return s.fetchAfter(ctx, "create")
}

func (s *Store) Update(ctx context.Context, id int64, in model.EventInput) ([]model.CalendarEvent, error) {
	if _, err := s.remote.Update(ctx, id, in); err != nil {
		return nil, fmt.Errorf("store: update %d: %w", id, err)
	}
	return s.fetchAfter(ctx, "update")
}

func (s *Store) Delete(ctx context.Context, id int64) ([]model.CalendarEvent, error) {
	if err := s.remote.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("store: delete %d: %w", id, err)
	}
	return s.fetchAfter(ctx, "delete")
}

func (s *Store) fetchAfter(ctx context.Context, op string) ([]model.CalendarEvent, error) {
	events, err := s.Fetch(ctx)
	if err != nil {
		return nil, &RefreshError{Op: op, Err: err}
	}
	appLog.Debug("store refetched after write", "op", op, "count", len(events))
	return events, nil
}
