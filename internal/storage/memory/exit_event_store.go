package memory

import (
	"context"
	"sync"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// ExitEventStore is an in-memory implementation of storage.ExitEventStore.
// Append-only, unbounded: intended for tests and single-session runs.
type ExitEventStore struct {
	mu   sync.RWMutex
	data []*domain.ExitEvent // append order
}

// NewExitEventStore creates a new in-memory exit event store.
func NewExitEventStore() *ExitEventStore {
	return &ExitEventStore{}
}

// Insert appends one exit action record.
func (s *ExitEventStore) Insert(_ context.Context, e *domain.ExitEvent) error {
	if e == nil || e.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *e
	s.data = append(s.data, &copy)
	return nil
}

// InsertBulk appends multiple exit action records.
func (s *ExitEventStore) InsertBulk(_ context.Context, events []*domain.ExitEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		if e == nil || e.PositionID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		copy := *e
		s.data = append(s.data, &copy)
	}
	return nil
}

// ListByPosition retrieves all events for a position, ordered by decided_at ASC.
func (s *ExitEventStore) ListByPosition(_ context.Context, positionID string) ([]*domain.ExitEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExitEvent
	for _, e := range s.data {
		if e.PositionID == positionID {
			copy := *e
			result = append(result, &copy)
		}
	}

	return result, nil
}

// ListRecent retrieves the most recent events, newest first.
func (s *ExitEventStore) ListRecent(_ context.Context, limit int) ([]*domain.ExitEvent, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.data)
	if limit > n {
		limit = n
	}

	result := make([]*domain.ExitEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		copy := *s.data[i]
		result = append(result, &copy)
	}

	return result, nil
}

var _ storage.ExitEventStore = (*ExitEventStore)(nil)
