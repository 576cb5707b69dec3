package service

import (
	"context"
	"fmt"

	"github.com/okian/hooklens/internal/adapters/repository"
	"github.com/okian/hooklens/internal/domain/dedupe"
	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/types"
)

type selectOutcome int

const (
	selectBatch selectOutcome = iota
	selectExhausted
	selectStalled
)

// candidateSelector pages through unlabeled items. Items already attempted
// in this run are never returned twice: an item whose write failed stays
// unlabeled in the store and would otherwise come back on every page.
type candidateSelector struct {
	store     repository.ContentStore
	kind      types.Kind
	pageSize  int
	attempted dedupe.Deduper
	// retained counts attempted items still unlabeled in the store; the
	// query limit grows by it so they cannot crowd fresh items out of a page.
	retained int
}

func newCandidateSelector(store repository.ContentStore, kind types.Kind, pageSize int) *candidateSelector {
	return &candidateSelector{
		store:     store,
		kind:      kind,
		pageSize:  pageSize,
		attempted: dedupe.NewInMemoryDeduper(),
	}
}

// next returns the next batch of at most pageSize fresh items.
func (c *candidateSelector) next(ctx context.Context) ([]model.ContentItem, selectOutcome, error) {
	page, err := c.store.Unlabeled(ctx, c.kind, c.pageSize+c.retained)
	if err != nil {
		return nil, selectExhausted, fmt.Errorf("%w: %s: %w", ErrSelectCandidates, c.kind, err)
	}
	if len(page) == 0 {
		return nil, selectExhausted, nil
	}

	batch := make([]model.ContentItem, 0, min(len(page), c.pageSize))
	for _, item := range page {
		if len(batch) == c.pageSize {
			break
		}
		if c.attempted.SeenAndRecord(ctx, item.ID) {
			continue
		}
		batch = append(batch, item)
	}
	if len(batch) == 0 {
		if len(page) <= c.retained {
			// only items that failed to persist are left
			return nil, selectExhausted, nil
		}
		return nil, selectStalled, nil
	}
	return batch, selectBatch, nil
}

// retain notes n attempted items that were left unlabeled.
func (c *candidateSelector) retain(n int) {
	c.retained += n
}
