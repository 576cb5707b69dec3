// Package repository persists content items and taxonomy categories.
package repository

import (
	"context"

	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/types"
)

// ContentStore reads unlabeled items and writes labels.
type ContentStore interface {
	// Item returns one item by id, labeled or not. Returns ErrNotFound if
	// it does not exist.
	Item(ctx context.Context, id string) (model.ContentItem, error)

	// Unlabeled returns up to limit items whose label for kind is unset, in
	// a stable order. An empty result means the taxonomy is fully labeled.
	Unlabeled(ctx context.Context, kind types.Kind, limit int) ([]model.ContentItem, error)

	// SetLabel sets the item's label for kind, overwriting any prior value.
	// Returns ErrNotFound if the item does not exist.
	SetLabel(ctx context.Context, itemID string, kind types.Kind, categoryID string) error
}

// CategoryStore reads and maintains taxonomy categories.
type CategoryStore interface {
	// Categories returns every category of kind in a stable order.
	Categories(ctx context.Context, kind types.Kind) ([]model.CategoryRecord, error)

	// UpsertCategory inserts or replaces a category by id. An existing
	// reference vector is kept when rec.Embedding is nil. Returns
	// ErrKindConflict if the id is already used by another taxonomy.
	UpsertCategory(ctx context.Context, rec model.CategoryRecord) error

	// SetCategoryEmbedding stores an encoded reference vector.
	SetCategoryEmbedding(ctx context.Context, categoryID string, blob []byte) error
}

// Store is the full persistence surface used by the classifier.
type Store interface {
	ContentStore
	CategoryStore
	Close() error
}
