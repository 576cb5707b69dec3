// Package dedupe tracks which items a run has already attempted so a batch
// loop never hands the same item to the classifier twice.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records attempted item IDs for the lifetime of one run. It never
// forgets an id: a forgotten item would be retried and could stall the run.
type Deduper interface {
	// SeenAndRecord reports whether id was already attempted and records it
	// if it was not.
	SeenAndRecord(ctx context.Context, id string) bool

	Size() int
}

type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryDeduper creates an empty deduper.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{seen: make(map[string]struct{})}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
