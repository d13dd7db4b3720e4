package memory

import (
	"context"
	"sync"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// DecisionLogStore is an in-memory implementation of storage.DecisionLogStore.
// Append-only, unbounded: intended for tests and single-session runs.
type DecisionLogStore struct {
	mu   sync.RWMutex
	data []*domain.LaunchDecision // append order
}

// NewDecisionLogStore creates a new in-memory decision log store.
func NewDecisionLogStore() *DecisionLogStore {
	return &DecisionLogStore{}
}

func cloneDecision(d *domain.LaunchDecision) *domain.LaunchDecision {
	copy := *d
	copy.RedFlags = append([]string(nil), d.RedFlags...)
	return &copy
}

// Insert appends one evaluator decision.
func (s *DecisionLogStore) Insert(_ context.Context, d *domain.LaunchDecision) error {
	if d == nil || d.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, cloneDecision(d))
	return nil
}

// InsertBulk appends multiple decisions.
func (s *DecisionLogStore) InsertBulk(_ context.Context, decisions []*domain.LaunchDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	for _, d := range decisions {
		if d == nil || d.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range decisions {
		s.data = append(s.data, cloneDecision(d))
	}
	return nil
}

// ListRecent retrieves the most recent decisions, newest first.
func (s *DecisionLogStore) ListRecent(_ context.Context, limit int) ([]*domain.LaunchDecision, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.data)
	if limit > n {
		limit = n
	}

	result := make([]*domain.LaunchDecision, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		result = append(result, cloneDecision(s.data[i]))
	}

	return result, nil
}

var _ storage.DecisionLogStore = (*DecisionLogStore)(nil)
