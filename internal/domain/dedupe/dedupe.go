// Package dedupe tracks idempotency keys of mutating requests.
package dedupe

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

const defaultMaxSize = 50000

// Deduper remembers request keys so a retried mutation is not applied twice.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so the request can be resubmitted, e.g. after
	// the registry rejected it.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key scopes a client-chosen idempotency key to the caller that sent it.
func Key(caller, key string) string {
	return caller + "|" + strings.TrimSpace(key)
}

// inMemoryDeduper keeps at most maxSize keys and evicts the oldest first.
// A non-positive maxSize keeps every key.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is oldest
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[key] = d.order.PushBack(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
