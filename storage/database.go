// Package storage persists the parts of a block body that cannot be
// reconstructed from headers and transactions alone: ommer headers and
// withdrawal lists, keyed by block number in a pebble store. Whether a body
// carries those parts at all is decided by the fork schedule, so reads take
// the chain configuration and only consult the store where the schedule
// allows the data to exist.
package storage

import (
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// DB is a block-body store backed by pebble.
type DB struct {
	pdb *pebble.DB
}

// Open opens the body store at path, creating it if necessary.
func Open(path string) (*DB, error) {
	pdb, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &DB{pdb: pdb}, nil
}

// OpenMemory opens a body store on an in-memory filesystem, used by tests
// and the offline tooling.
func OpenMemory() (*DB, error) {
	pdb, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	return &DB{pdb: pdb}, nil
}

// Close flushes and closes the underlying store.
func (db *DB) Close() error {
	return db.pdb.Close()
}
