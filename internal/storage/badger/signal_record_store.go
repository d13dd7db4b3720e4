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

// signalPrefix namespaces signal record keys within the shared database.
const signalPrefix = "signal:"

// SignalRecordStore implements storage.SignalRecordStore on an embedded
// badger database. Values are JSON-encoded records keyed by signal tag.
type SignalRecordStore struct {
	db *DB
}

// NewSignalRecordStore creates a new SignalRecordStore.
func NewSignalRecordStore(db *DB) *SignalRecordStore {
	return &SignalRecordStore{db: db}
}

// Compile-time interface check.
var _ storage.SignalRecordStore = (*SignalRecordStore)(nil)

func signalKey(signal string) []byte {
	return []byte(signalPrefix + signal)
}

// Upsert inserts or replaces the record for a signal tag.
func (s *SignalRecordStore) Upsert(_ context.Context, r *domain.SignalRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal signal record: %w", err)
	}

	err = s.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(signalKey(r.Signal), data)
	})
	if err != nil {
		return fmt.Errorf("upsert signal record: %w", err)
	}
	return nil
}

// GetBySignal retrieves the record for a tag. Returns ErrNotFound if not exists.
func (s *SignalRecordStore) GetBySignal(_ context.Context, signal string) (*domain.SignalRecord, error) {
	var r domain.SignalRecord

	err := s.db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(signalKey(signal))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get signal record: %w", err)
	}

	return &r, nil
}

// ListAll retrieves all signal records, ordered by signal ASC.
func (s *SignalRecordStore) ListAll(_ context.Context) ([]*domain.SignalRecord, error) {
	var result []*domain.SignalRecord

	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(signalPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var r domain.SignalRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return err
			}
			result = append(result, &r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list signal records: %w", err)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Signal < result[j].Signal
	})

	return result, nil
}

// DeleteAll removes every signal record (learning reset).
func (s *SignalRecordStore) DeleteAll(_ context.Context) error {
	err := s.db.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(signalPrefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete signal records: %w", err)
	}
	return nil
}
