package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"crawshaw.io/sqlite"

	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/pkg/logger"
)

const defaultBusyTimeout = 5 * time.Second

var schema = []string{
	`CREATE TABLE IF NOT EXISTS content_items (
		id           TEXT PRIMARY KEY,
		body         TEXT NOT NULL DEFAULT '',
		hook         TEXT,
		topic_id     TEXT,
		hook_type_id TEXT,
		structure_id TEXT,
		audience_id  TEXT,
		created_at   INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS categories (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		embedding   BLOB,
		keywords    TEXT NOT NULL DEFAULT '[]',
		patterns    TEXT NOT NULL DEFAULT '[]',
		position    INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS categories_kind ON categories (kind, position);`,
}

// SQLiteStore keeps items and categories in a single SQLite database. One
// connection is shared and access is serialized.
type SQLiteStore struct {
	mu          sync.Mutex
	conn        *sqlite.Conn
	busyTimeout time.Duration
	log         logger.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. ":memory:" gives a private in-memory database.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: defaultBusyTimeout, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_CREATE|sqlite.SQLITE_OPEN_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	conn.SetBusyTimeout(s.busyTimeout)
	s.conn = conn

	for _, q := range schema {
		if err := s.exec(q); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return s, nil
}

// Close releases the connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// lock serializes access and arms ctx as the statement interrupt. The
// returned func must be called to release both.
func (s *SQLiteStore) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.conn.SetInterrupt(ctx.Done())
	return func() {
		s.conn.SetInterrupt(nil)
		s.mu.Unlock()
	}, nil
}

func (s *SQLiteStore) exec(query string) error {
	stmt, err := s.conn.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Reset()
	_, err = stmt.Step()
	return err
}

func labelColumn(kind types.Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}
	return kind.LabelField(), nil
}

// Unlabeled implements ContentStore.
func (s *SQLiteStore) Unlabeled(ctx context.Context, kind types.Kind, limit int) ([]model.ContentItem, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	col, err := labelColumn(kind)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	stmt, err := s.conn.Prepare(fmt.Sprintf(
		`SELECT id, body, hook, topic_id, hook_type_id, structure_id, audience_id
		 FROM content_items
		 WHERE %s IS NULL OR %s = ''
		 ORDER BY created_at, id
		 LIMIT ?;`, col, col))
	if err != nil {
		return nil, fmt.Errorf("prepare unlabeled query: %w", err)
	}
	defer stmt.Reset()
	stmt.BindInt64(1, int64(limit))

	var items []model.ContentItem
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, fmt.Errorf("query unlabeled %s items: %w", kind, err)
		}
		if !hasRow {
			break
		}
		items = append(items, scanItem(stmt))
	}
	return items, nil
}

// scanItem reads the column layout id, body, hook, then one label per kind.
func scanItem(stmt *sqlite.Stmt) model.ContentItem {
	item := model.ContentItem{
		ID:     stmt.ColumnText(0),
		Body:   stmt.ColumnText(1),
		Hook:   stmt.ColumnText(2),
		Labels: map[string]string{},
	}
	for i, k := range types.Kinds() {
		col := 3 + i
		if stmt.ColumnType(col) == sqlite.SQLITE_NULL {
			continue
		}
		if v := stmt.ColumnText(col); v != "" {
			item.Labels[k.LabelField()] = v
		}
	}
	return item
}

// SetLabel implements ContentStore.
func (s *SQLiteStore) SetLabel(ctx context.Context, itemID string, kind types.Kind, categoryID string) error {
	col, err := labelColumn(kind)
	if err != nil {
		return err
	}
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	stmt, err := s.conn.Prepare(fmt.Sprintf(`UPDATE content_items SET %s = ? WHERE id = ?;`, col))
	if err != nil {
		return fmt.Errorf("prepare label update: %w", err)
	}
	defer stmt.Reset()
	stmt.BindText(1, categoryID)
	stmt.BindText(2, itemID)

	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("update %s label of %s: %w", kind, itemID, err)
	}
	if s.conn.Changes() == 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	return nil
}

// PutItem inserts or replaces a content item, labels included.
func (s *SQLiteStore) PutItem(ctx context.Context, item model.ContentItem, createdAt time.Time) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	stmt, err := s.conn.Prepare(`INSERT OR REPLACE INTO content_items
		(id, body, hook, topic_id, hook_type_id, structure_id, audience_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("prepare item insert: %w", err)
	}
	defer stmt.Reset()

	stmt.BindText(1, item.ID)
	stmt.BindText(2, item.Body)
	bindOptionalText(stmt, 3, item.Hook)
	for i, k := range types.Kinds() {
		bindOptionalText(stmt, 4+i, item.Labels[k.LabelField()])
	}
	stmt.BindInt64(8, createdAt.Unix())

	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("insert item %s: %w", item.ID, err)
	}
	return nil
}

// Item implements ContentStore.
func (s *SQLiteStore) Item(ctx context.Context, id string) (model.ContentItem, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return model.ContentItem{}, err
	}
	defer unlock()

	stmt, err := s.conn.Prepare(`SELECT id, body, hook, topic_id, hook_type_id, structure_id, audience_id
		FROM content_items WHERE id = ?;`)
	if err != nil {
		return model.ContentItem{}, fmt.Errorf("prepare item query: %w", err)
	}
	defer stmt.Reset()
	stmt.BindText(1, id)

	hasRow, err := stmt.Step()
	if err != nil {
		return model.ContentItem{}, fmt.Errorf("query item %s: %w", id, err)
	}
	if !hasRow {
		return model.ContentItem{}, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	return scanItem(stmt), nil
}

func bindOptionalText(stmt *sqlite.Stmt, param int, v string) {
	if v == "" {
		stmt.BindNull(param)
		return
	}
	stmt.BindText(param, v)
}

// Categories implements CategoryStore. Rows come back in position order,
// then insertion order.
func (s *SQLiteStore) Categories(ctx context.Context, kind types.Kind) ([]model.CategoryRecord, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	stmt, err := s.conn.Prepare(`SELECT id, name, description, embedding, keywords, patterns
		FROM categories WHERE kind = ? ORDER BY position, rowid;`)
	if err != nil {
		return nil, fmt.Errorf("prepare categories query: %w", err)
	}
	defer stmt.Reset()
	stmt.BindText(1, kind.String())

	var out []model.CategoryRecord
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, fmt.Errorf("query %s categories: %w", kind, err)
		}
		if !hasRow {
			break
		}

		rec := model.CategoryRecord{
			ID:          stmt.ColumnText(0),
			Kind:        kind,
			Name:        stmt.ColumnText(1),
			Description: stmt.ColumnText(2),
		}
		if stmt.ColumnType(3) != sqlite.SQLITE_NULL {
			if n := stmt.ColumnLen(3); n > 0 {
				rec.Embedding = make([]byte, n)
				stmt.ColumnBytes(3, rec.Embedding)
			}
		}
		if rec.Keywords, err = decodeList(stmt.ColumnText(4)); err != nil {
			s.log.Warn(ctx, "ignoring malformed category keywords",
				logger.String("category", rec.Name), logger.Error(err))
		}
		if rec.Patterns, err = decodeList(stmt.ColumnText(5)); err != nil {
			s.log.Warn(ctx, "ignoring malformed category patterns",
				logger.String("category", rec.Name), logger.Error(err))
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpsertCategory implements CategoryStore. New categories are appended after
// the existing ones of their kind; a replaced category keeps its position.
func (s *SQLiteStore) UpsertCategory(ctx context.Context, rec model.CategoryRecord) error {
	if !rec.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, int(rec.Kind))
	}
	keywords, err := json.Marshal(nonNil(rec.Keywords))
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	patterns, err := json.Marshal(nonNil(rec.Patterns))
	if err != nil {
		return fmt.Errorf("encode patterns: %w", err)
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	stmt, err := s.conn.Prepare(`INSERT INTO categories (id, kind, name, description, embedding, keywords, patterns, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM categories WHERE kind = ?))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			embedding = COALESCE(excluded.embedding, categories.embedding),
			keywords = excluded.keywords,
			patterns = excluded.patterns
		WHERE categories.kind = excluded.kind;`)
	if err != nil {
		return fmt.Errorf("prepare category upsert: %w", err)
	}
	defer stmt.Reset()

	stmt.BindText(1, rec.ID)
	stmt.BindText(2, rec.Kind.String())
	stmt.BindText(3, rec.Name)
	stmt.BindText(4, rec.Description)
	if rec.Embedding == nil {
		stmt.BindNull(5)
	} else {
		stmt.BindBytes(5, rec.Embedding)
	}
	stmt.BindText(6, string(keywords))
	stmt.BindText(7, string(patterns))
	stmt.BindText(8, rec.Kind.String())

	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("upsert category %s: %w", rec.ID, err)
	}
	// the conflict clause skips rows of another kind
	if s.conn.Changes() == 0 {
		return fmt.Errorf("%w: %s is not a %s category", ErrKindConflict, rec.ID, rec.Kind)
	}
	return nil
}

// SetCategoryEmbedding implements CategoryStore.
func (s *SQLiteStore) SetCategoryEmbedding(ctx context.Context, categoryID string, blob []byte) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	stmt, err := s.conn.Prepare(`UPDATE categories SET embedding = ? WHERE id = ?;`)
	if err != nil {
		return fmt.Errorf("prepare embedding update: %w", err)
	}
	defer stmt.Reset()
	stmt.BindBytes(1, blob)
	stmt.BindText(2, categoryID)

	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("update embedding of %s: %w", categoryID, err)
	}
	if s.conn.Changes() == 0 {
		return fmt.Errorf("%w: category %s", ErrNotFound, categoryID)
	}
	return nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
