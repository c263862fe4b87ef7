// Package localcache is the consumer-side lookaside store. It has no TTL and no
// per-key eviction: staleness is judged by the caller from the directives of
// the responses it wraps, and the only destructive operation is Clear.
package localcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pitscout/pkg/metrics"
	"github.com/syndtr/goleveldb/leveldb"
	ldb_errors "github.com/syndtr/goleveldb/leveldb/errors"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_storage "github.com/syndtr/goleveldb/leveldb/storage"
)

// every record starts with the big-endian unix nanos it was stored at
const headerSize = 8

// Entry is one stored value.
type Entry struct {
	Key      string
	Value    []byte
	StoredAt time.Time
}

// Cache is a goleveldb-backed key/value store.
type Cache struct {
	mu  sync.RWMutex
	db  *leveldb.DB
	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for StoredAt stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Open opens or creates the cache directory at path. A corrupted database is
// recovered rather than rejected.
func Open(path string, opts ...Option) (*Cache, error) {
	db, err := leveldb.OpenFile(path, &ldb_opt.Options{ErrorIfExist: false})
	if ldb_errors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open local cache %s: %w", path, err)
	}
	return newCache(db, opts), nil
}

// OpenInMemory creates a cache that lives only as long as the process.
func OpenInMemory(opts ...Option) (*Cache, error) {
	db, err := leveldb.Open(ldb_storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory local cache: %w", err)
	}
	return newCache(db, opts), nil
}

func newCache(db *leveldb.DB, opts []Option) *Cache {
	c := &Cache{db: db, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	e, ok, err := c.GetEntry(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return e.Value, true, nil
}

// GetEntry returns the value stored under key with its timestamp.
func (c *Cache) GetEntry(key string) (*Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, false, ErrClosed
	}

	raw, err := c.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		metrics.RecordLocalCache("get", "miss")
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordLocalCache("get", "error")
		return nil, false, err
	}
	if len(raw) < headerSize {
		metrics.RecordLocalCache("get", "error")
		return nil, false, fmt.Errorf("%w: %q", ErrCorruptEntry, key)
	}
	metrics.RecordLocalCache("get", "hit")
	return &Entry{
		Key:      key,
		Value:    raw[headerSize:],
		StoredAt: time.Unix(0, int64(binary.BigEndian.Uint64(raw[:headerSize]))),
	}, true, nil
}

// Put stores value under key, replacing any previous value.
func (c *Cache) Put(key string, value []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return ErrClosed
	}

	record := make([]byte, headerSize+len(value))
	binary.BigEndian.PutUint64(record, uint64(c.now().UnixNano()))
	copy(record[headerSize:], value)

	if err := c.db.Put([]byte(key), record, nil); err != nil {
		metrics.RecordLocalCache("put", "error")
		return err
	}
	metrics.RecordLocalCache("put", "ok")
	return nil
}

// Clear deletes every key in one batch. Clearing an empty cache is a no-op.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return ErrClosed
	}

	batch := new(leveldb.Batch)
	iter := c.db.NewIterator(nil, nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		metrics.RecordLocalCache("clear", "error")
		return err
	}
	if err := c.db.Write(batch, nil); err != nil {
		metrics.RecordLocalCache("clear", "error")
		return err
	}
	metrics.RecordLocalCache("clear", "ok")
	return nil
}

// Len counts stored keys.
func (c *Cache) Len() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return 0, ErrClosed
	}
	n := 0
	iter := c.db.NewIterator(nil, nil)
	for iter.Next() {
		n++
	}
	iter.Release()
	return n, iter.Error()
}

// Close releases the database. Later calls return ErrClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
