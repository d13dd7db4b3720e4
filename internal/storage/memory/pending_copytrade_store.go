package memory

import (
	"context"
	"sort"
	"sync"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// PendingCopyTradeStore is an in-memory implementation of
// storage.PendingCopyTradeStore. There is no persistent backend: pending
// approvals do not survive a restart.
type PendingCopyTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PendingCopyTrade // keyed by pending_id
}

// NewPendingCopyTradeStore creates a new in-memory pending copy-trade store.
func NewPendingCopyTradeStore() *PendingCopyTradeStore {
	return &PendingCopyTradeStore{
		data: make(map[string]*domain.PendingCopyTrade),
	}
}

// Insert adds a pending trade. Returns ErrDuplicateKey if pending_id exists.
func (s *PendingCopyTradeStore) Insert(_ context.Context, p *domain.PendingCopyTrade) error {
	if p == nil || p.PendingID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PendingID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *p
	s.data[p.PendingID] = &copy
	return nil
}

// GetByID retrieves a pending trade. Returns ErrNotFound if not exists.
func (s *PendingCopyTradeStore) GetByID(_ context.Context, pendingID string) (*domain.PendingCopyTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[pendingID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}

// List retrieves all pending trades, ordered by created_at ASC.
func (s *PendingCopyTradeStore) List(_ context.Context) ([]*domain.PendingCopyTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PendingCopyTrade, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}

// Delete removes a resolved pending trade. Returns ErrNotFound if not exists.
func (s *PendingCopyTradeStore) Delete(_ context.Context, pendingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[pendingID]; !exists {
		return storage.ErrNotFound
	}

	delete(s.data, pendingID)
	return nil
}

var _ storage.PendingCopyTradeStore = (*PendingCopyTradeStore)(nil)
