package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// DB wraps a badger database handle shared by the embedded stores.
// One DB serves all key prefixes; stores carve out their own namespaces.
type DB struct {
	db *badger.DB
}

// Open opens (or creates) the badger database at path. Badger's own logger
// is disabled to keep application logs clean; errors still surface from
// every operation.
func Open(path string) (*DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	return &DB{db: db}, nil
}

// Close flushes pending writes and closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}
