// Package kvstore persists refactoring metadata as typed records under
// string keys.
package kvstore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/scigolib/mdr/internal/utils"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("key not found")

// Store is a flat key-value store.
type Store interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
	Close() error
}

// Bucket holds every record of a BoltStore.
var Bucket = []byte("mdr")

// BoltStore keeps records in a single bbolt bucket.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) a bbolt database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", utils.ErrPersistence, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(Bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create bucket: %w", utils.ErrPersistence, err)
	}
	return &BoltStore{db: db}, nil
}

// Put stores value under key, replacing any previous record.
func (s *BoltStore) Put(key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(Bucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("%w: put %q: %w", utils.ErrPersistence, key, err)
	}
	return nil
}

// Get returns a copy of the record under key.
func (s *BoltStore) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// Seek distinguishes an empty record from a missing key.
		k, v := tx.Bucket(Bucket).Cursor().Seek([]byte(key))
		if k == nil || string(k) != key {
			return ErrNotFound
		}
		out = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return out, nil
}

// Close releases the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string][]byte)}
}

// Put stores a copy of value.
func (s *MemStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = append([]byte{}, value...)
	return nil
}

// Get returns a copy of the record under key.
func (s *MemStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	return append([]byte{}, v...), nil
}

// Keys returns the number of stored records.
func (s *MemStore) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }
