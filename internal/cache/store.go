package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LeJamon/goXRPLdig/internal/storage/compression"
	"github.com/LeJamon/goXRPLdig/internal/storage/database"
	pebbledb "github.com/LeJamon/goXRPLdig/internal/storage/database/pebble"
)

// Store persists cache entries across restarts.
type Store interface {
	Save(key string, entry *Entry) error
	// Load returns the entry for key, or nil when absent.
	Load(key string) (*Entry, error)
	Remove(keys ...string) error
	// RemovePrefix drops every entry whose key starts with prefix,
	// including ones already evicted from memory.
	RemovePrefix(prefix string) error
	LoadAll() (map[string]*Entry, error)
	Close() error
}

// kvStore persists entries as compressed JSON in a key-value database.
type kvStore struct {
	db         database.DB
	compressor compression.Compressor
}

// storeKeyPrefix namespaces cache entries inside the database so other
// record types can share it later.
const storeKeyPrefix = "cache/"

// NewStore opens a pebble-backed store at path using lz4 compression.
func NewStore(path string) (Store, error) {
	db, err := pebbledb.Open(path)
	if err != nil {
		return nil, err
	}
	compressor, err := compression.Get("lz4")
	if err != nil {
		db.Close()
		return nil, err
	}
	return &kvStore{db: db, compressor: compressor}, nil
}

// NewStoreWithDB builds a store over an existing database, for tests.
func NewStoreWithDB(db database.DB, compressor compression.Compressor) Store {
	return &kvStore{db: db, compressor: compressor}
}

func (s *kvStore) Save(key string, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	blob, err := s.compressor.Compress(raw)
	if err != nil {
		return fmt.Errorf("compressing cache entry: %w", err)
	}
	return s.db.Write(context.Background(), []byte(storeKeyPrefix+key), blob)
}

func (s *kvStore) Load(key string) (*Entry, error) {
	blob, err := s.db.Read(context.Background(), []byte(storeKeyPrefix+key))
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.decode(blob)
}

func (s *kvStore) Remove(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ops := make([]database.BatchOperation, len(keys))
	for i, k := range keys {
		ops[i] = database.BatchOperation{
			Type: database.BatchDelete,
			Key:  []byte(storeKeyPrefix + k),
		}
	}
	return s.db.Batch(context.Background(), ops)
}

func (s *kvStore) RemovePrefix(prefix string) error {
	start := []byte(storeKeyPrefix + prefix)
	it, err := s.db.Iterator(context.Background(), start, prefixEnd(start))
	if err != nil {
		return err
	}

	var ops []database.BatchOperation
	for it.Next() {
		ops = append(ops, database.BatchOperation{
			Type: database.BatchDelete,
			Key:  it.Key(),
		})
	}
	if err := it.Error(); err != nil {
		it.Close()
		return fmt.Errorf("scanning cache entries: %w", err)
	}
	if err := it.Close(); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	return s.db.Batch(context.Background(), ops)
}

func (s *kvStore) LoadAll() (map[string]*Entry, error) {
	start := []byte(storeKeyPrefix)
	it, err := s.db.Iterator(context.Background(), start, prefixEnd(start))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	entries := make(map[string]*Entry)
	for it.Next() {
		entry, err := s.decode(it.Value())
		if err != nil {
			// A corrupt blob should not poison the whole warm-up.
			continue
		}
		key := string(it.Key())[len(storeKeyPrefix):]
		entries[key] = entry
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("scanning cache entries: %w", err)
	}
	return entries, nil
}

func (s *kvStore) Close() error {
	return s.db.Close()
}

func (s *kvStore) decode(blob []byte) (*Entry, error) {
	raw, err := s.compressor.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("decompressing cache entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	return &entry, nil
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, for use as an exclusive iterator upper bound.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
