package memory

import (
	"context"
	"sort"
	"sync"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// SmartWalletStore is an in-memory implementation of storage.SmartWalletStore.
type SmartWalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SmartWallet // keyed by address
}

// NewSmartWalletStore creates a new in-memory smart wallet store.
func NewSmartWalletStore() *SmartWalletStore {
	return &SmartWalletStore{
		data: make(map[string]*domain.SmartWallet),
	}
}

// Insert enrolls a wallet. Returns ErrDuplicateKey if address exists.
func (s *SmartWalletStore) Insert(_ context.Context, w *domain.SmartWallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[w.Address]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *w
	s.data[w.Address] = &copy
	return nil
}

// GetByAddress retrieves an enrolled wallet. Returns ErrNotFound if not exists.
func (s *SmartWalletStore) GetByAddress(_ context.Context, address string) (*domain.SmartWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *w
	return &copy, nil
}

// ListAll retrieves all enrolled wallets, ordered by enrolled_at ASC.
func (s *SmartWalletStore) ListAll(_ context.Context) ([]*domain.SmartWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SmartWallet, 0, len(s.data))
	for _, w := range s.data {
		copy := *w
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EnrolledAt < result[j].EnrolledAt
	})

	return result, nil
}

// Delete unenrolls a wallet. Returns ErrNotFound if not exists.
func (s *SmartWalletStore) Delete(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[address]; !exists {
		return storage.ErrNotFound
	}

	delete(s.data, address)
	return nil
}

var _ storage.SmartWalletStore = (*SmartWalletStore)(nil)
