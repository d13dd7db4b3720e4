package memory

import (
	"context"
	"sort"
	"sync"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// SignalRecordStore is an in-memory implementation of storage.SignalRecordStore.
type SignalRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SignalRecord // keyed by signal tag
}

// NewSignalRecordStore creates a new in-memory signal record store.
func NewSignalRecordStore() *SignalRecordStore {
	return &SignalRecordStore{
		data: make(map[string]*domain.SignalRecord),
	}
}

// Upsert inserts or replaces the record for a signal tag.
func (s *SignalRecordStore) Upsert(_ context.Context, r *domain.SignalRecord) error {
	if r == nil || r.Signal == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *r
	s.data[r.Signal] = &copy
	return nil
}

// GetBySignal retrieves the record for a tag. Returns ErrNotFound if not exists.
func (s *SignalRecordStore) GetBySignal(_ context.Context, signal string) (*domain.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[signal]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// ListAll retrieves all signal records, ordered by signal tag ASC.
func (s *SignalRecordStore) ListAll(_ context.Context) ([]*domain.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SignalRecord, 0, len(s.data))
	for _, r := range s.data {
		copy := *r
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Signal < result[j].Signal
	})

	return result, nil
}

// DeleteAll removes every signal record.
func (s *SignalRecordStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*domain.SignalRecord)
	return nil
}

var _ storage.SignalRecordStore = (*SignalRecordStore)(nil)
