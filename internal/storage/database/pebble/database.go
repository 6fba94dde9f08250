// Package pebbledb implements the database contract on top of CockroachDB's
// pebble LSM store.
package pebbledb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/LeJamon/goXRPLdig/internal/storage/database"
)

// DB wraps a pebble instance.
type DB struct {
	mu     sync.RWMutex
	db     *pebble.DB
	closed bool
}

// Open opens (or creates) a pebble database at path.
func Open(path string) (*DB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble database at %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

// NewDB wraps an already open pebble handle. The caller keeps ownership
// of the handle lifecycle when using this constructor.
func NewDB(db *pebble.DB) *DB {
	return &DB{db: db}
}

func (d *DB) Read(ctx context.Context, key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, database.ErrDBClosed
	}

	value, closer, err := d.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, database.ErrKeyNotFound
		}
		return nil, fmt.Errorf("reading key: %w", err)
	}
	defer closer.Close()

	// The returned slice is only valid until the closer is released.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (d *DB) Write(ctx context.Context, key []byte, value []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return database.ErrDBClosed
	}

	if err := d.db.Set(key, value, pebble.Sync); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, key []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return database.ErrDBClosed
	}

	if err := d.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	return nil
}

func (d *DB) Batch(ctx context.Context, ops []database.BatchOperation) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return database.ErrDBClosed
	}

	batch := d.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Type {
		case database.BatchPut:
			if err := batch.Set(op.Key, op.Value, nil); err != nil {
				return fmt.Errorf("batch set: %w", err)
			}
		case database.BatchDelete:
			if err := batch.Delete(op.Key, nil); err != nil {
				return fmt.Errorf("batch delete: %w", err)
			}
		default:
			return fmt.Errorf("unknown batch operation type %d", op.Type)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

func (d *DB) Iterator(ctx context.Context, start, end []byte) (database.Iterator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, database.ErrDBClosed
	}

	it, err := d.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, fmt.Errorf("creating iterator: %w", err)
	}
	return &iterator{it: it, first: true}, nil
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

type iterator struct {
	it    *pebble.Iterator
	first bool
}

func (i *iterator) Next() bool {
	if i.first {
		i.first = false
		return i.it.First()
	}
	return i.it.Next()
}

func (i *iterator) Key() []byte {
	key := i.it.Key()
	out := make([]byte, len(key))
	copy(out, key)
	return out
}

func (i *iterator) Value() []byte {
	value := i.it.Value()
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

func (i *iterator) Error() error { return i.it.Error() }

func (i *iterator) Close() error { return i.it.Close() }
