// Package dedupe tracks subjects whose enrichment is queued or running so a
// burst of writes naming the same subject triggers one lookup.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

const defaultMaxSize = 50000

// Deduper records subject keys currently claimed for enrichment.
type Deduper interface {
	// SeenAndRecord atomically checks whether id is claimed and claims it if not.
	// Returns true if id was already claimed.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord releases a claim so a later write can retry the subject.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps claims in a bounded LRU. When full, the oldest claim
// is dropped; the worst case is one duplicate lookup.
type inMemoryDeduper struct {
	maxSize int

	bounded *lru.Cache

	mu        sync.Mutex
	unbounded map[string]struct{}
}

// NewInMemoryDeduper creates a deduper. A non-positive max size means unbounded.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize > 0 {
		c, err := lru.New(d.maxSize)
		if err == nil {
			d.bounded = c
			return d
		}
	}
	d.unbounded = make(map[string]struct{})
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	if d.bounded != nil {
		seen, _ := d.bounded.ContainsOrAdd(id, struct{}{})
		return seen
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.unbounded[id]; ok {
		return true
	}
	d.unbounded[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	if d.bounded != nil {
		d.bounded.Remove(id)
		return
	}
	d.mu.Lock()
	delete(d.unbounded, id)
	d.mu.Unlock()
}

func (d *inMemoryDeduper) Size() int64 {
	if d.bounded != nil {
		return int64(d.bounded.Len())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.unbounded))
}
