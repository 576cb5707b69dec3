package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/types"
)

// MemoryStore is an in-process Store used as a test double for the
// classifier. Items are returned in insertion order. FailLabel and
// FailCategories inject store failures; nothing outside tests builds one.
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]*model.ContentItem
	itemOrder  []string
	categories []model.CategoryRecord
	failLabel  map[string]error
	failList   error
	selects    int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:     make(map[string]*model.ContentItem),
		failLabel: make(map[string]error),
	}
}

// PutItem adds or replaces an item.
func (m *MemoryStore) PutItem(item model.ContentItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := item
	cp.Labels = make(map[string]string, len(item.Labels))
	for k, v := range item.Labels {
		cp.Labels[k] = v
	}
	if _, ok := m.items[item.ID]; !ok {
		m.itemOrder = append(m.itemOrder, item.ID)
	}
	m.items[item.ID] = &cp
}

// Item implements ContentStore. It returns a copy of the item with id.
func (m *MemoryStore) Item(ctx context.Context, id string) (model.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return model.ContentItem{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return model.ContentItem{}, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	return copyItem(it), nil
}

// FailLabel makes every SetLabel for itemID return err. A nil err clears it.
func (m *MemoryStore) FailLabel(itemID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failLabel, itemID)
		return
	}
	m.failLabel[itemID] = err
}

// FailCategories makes Categories return err. A nil err clears it.
func (m *MemoryStore) FailCategories(err error) {
	m.mu.Lock()
	m.failList = err
	m.mu.Unlock()
}

// Selects returns how many times Unlabeled was called.
func (m *MemoryStore) Selects() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selects
}

// Unlabeled implements ContentStore.
func (m *MemoryStore) Unlabeled(ctx context.Context, kind types.Kind, limit int) ([]model.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.selects++

	field := kind.LabelField()
	var out []model.ContentItem
	for _, id := range m.itemOrder {
		it := m.items[id]
		if it.Labels[field] != "" {
			continue
		}
		out = append(out, copyItem(it))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// SetLabel implements ContentStore.
func (m *MemoryStore) SetLabel(ctx context.Context, itemID string, kind types.Kind, categoryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLabel[itemID]; err != nil {
		return err
	}
	it, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	it.Labels[kind.LabelField()] = categoryID
	return nil
}

// Categories implements CategoryStore.
func (m *MemoryStore) Categories(ctx context.Context, kind types.Kind) ([]model.CategoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failList != nil {
		return nil, m.failList
	}

	var out []model.CategoryRecord
	for _, c := range m.categories {
		if c.Kind == kind {
			out = append(out, copyCategory(c))
		}
	}
	return out, nil
}

// UpsertCategory implements CategoryStore.
func (m *MemoryStore) UpsertCategory(ctx context.Context, rec model.CategoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !rec.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, int(rec.Kind))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.categories {
		if c.ID != rec.ID {
			continue
		}
		if c.Kind != rec.Kind {
			return fmt.Errorf("%w: %s is not a %s category", ErrKindConflict, rec.ID, rec.Kind)
		}
		if rec.Embedding == nil {
			rec.Embedding = c.Embedding
		}
		m.categories[i] = copyCategory(rec)
		return nil
	}
	m.categories = append(m.categories, copyCategory(rec))
	return nil
}

// SetCategoryEmbedding implements CategoryStore.
func (m *MemoryStore) SetCategoryEmbedding(ctx context.Context, categoryID string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.categories {
		if m.categories[i].ID == categoryID {
			m.categories[i].Embedding = append([]byte(nil), blob...)
			return nil
		}
	}
	return fmt.Errorf("%w: category %s", ErrNotFound, categoryID)
}

// Labeled returns the ids of items labeled for kind, sorted.
func (m *MemoryStore) Labeled(kind types.Kind) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, it := range m.items {
		if it.Labels[kind.LabelField()] != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func copyItem(it *model.ContentItem) model.ContentItem {
	cp := *it
	cp.Labels = make(map[string]string, len(it.Labels))
	for k, v := range it.Labels {
		cp.Labels[k] = v
	}
	return cp
}

func copyCategory(c model.CategoryRecord) model.CategoryRecord {
	c.Embedding = append([]byte(nil), c.Embedding...)
	c.Keywords = append([]string(nil), c.Keywords...)
	c.Patterns = append([]string(nil), c.Patterns...)
	return c
}
