package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v3"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

// positionPrefix namespaces position keys within the shared database.
const positionPrefix = "position:"

// PositionStore implements storage.PositionStore on an embedded badger
// database. Values are JSON-encoded positions keyed by position ID, for
// single-binary deployments that need durability without a database server.
type PositionStore struct {
	db *DB
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(db *DB) *PositionStore {
	return &PositionStore{db: db}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

func positionKey(positionID string) []byte {
	return []byte(positionPrefix + positionID)
}

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	key := positionKey(p.PositionID)
	err = s.db.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return storage.ErrDuplicateKey
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update replaces an existing position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	key := positionKey(p.PositionID)
	err = s.db.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("update position: %w", err)
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, positionID string) (*domain.Position, error) {
	var p domain.Position

	err := s.db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(positionKey(positionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}

	return &p, nil
}

// ListOpen retrieves all non-CLOSED positions, ordered by created_at ASC.
func (s *PositionStore) ListOpen(ctx context.Context) ([]*domain.Position, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var result []*domain.Position
	for _, p := range all {
		if p.Status != domain.StatusClosed {
			result = append(result, p)
		}
	}
	return result, nil
}

// ListAll retrieves every position, ordered by created_at ASC.
func (s *PositionStore) ListAll(_ context.Context) ([]*domain.Position, error) {
	var result []*domain.Position

	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(positionPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var p domain.Position
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if err != nil {
				return err
			}
			result = append(result, &p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}
