// Package taxonomy loads one taxonomy's categories into a read-only cache of
// decoded reference vectors and compiled fallback rules.
package taxonomy

import (
	"context"
	"fmt"

	"github.com/okian/hooklens/internal/domain/matcher"
	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/rules"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/internal/domain/vector"
	"github.com/okian/hooklens/pkg/logger"
)

// CategorySource lists the stored categories of a taxonomy in a stable order.
type CategorySource interface {
	Categories(ctx context.Context, kind types.Kind) ([]model.CategoryRecord, error)
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	log logger.Logger
}

// WithLogger sets the logger used for category warnings.
func WithLogger(l logger.Logger) Option {
	return func(o *loadOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// Category is a loaded category.
type Category struct {
	ID     string
	Name   string
	Vector []float32 // nil when the category has no usable reference vector

	// usable rule terms after invalid patterns were dropped
	Keywords int
	Patterns int
}

// Cache is an immutable snapshot of a taxonomy taken at the start of a run.
type Cache struct {
	kind       types.Kind
	categories []Category
	refs       []matcher.Reference
	scorer     *rules.Scorer
	dimensions int
}

// Load reads every category of kind from src. Reference vectors are decoded
// and must all share one dimension. A category whose vector cannot be decoded
// is kept for rule scoring but left out of embedding matching. Patterns that
// do not compile are logged and skipped.
func Load(ctx context.Context, src CategorySource, kind types.Kind, opts ...Option) (*Cache, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}
	o := loadOptions{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	records, err := src.Categories(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadCategories, kind, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCategories, kind)
	}

	c := &Cache{kind: kind}
	ruleSet := make([]rules.Rule, 0, len(records))
	var keywords, patterns int
	for _, rec := range records {
		vec, err := vector.Decode(rec.Embedding)
		if err != nil {
			o.log.Warn(ctx, "ignoring undecodable category vector",
				logger.String("taxonomy", kind.String()),
				logger.String("category", rec.Name),
				logger.Error(err))
			vec = nil
		}
		if vec != nil {
			if c.dimensions == 0 {
				c.dimensions = len(vec)
			} else if len(vec) != c.dimensions {
				return nil, fmt.Errorf("%w: %s category %s has %d, expected %d",
					ErrDimensionMismatch, kind, rec.Name, len(vec), c.dimensions)
			}
			c.refs = append(c.refs, matcher.Reference{ID: rec.ID, Name: rec.Name, Vector: vec})
		}
		rule, errs := rules.NewRule(rec.ID, rec.Name, rec.Keywords, rec.Patterns)
		for _, e := range errs {
			o.log.Warn(ctx, "skipping invalid category pattern",
				logger.String("taxonomy", kind.String()),
				logger.Error(e))
		}
		ruleSet = append(ruleSet, rule)
		c.categories = append(c.categories, Category{
			ID:       rec.ID,
			Name:     rec.Name,
			Vector:   vec,
			Keywords: rule.KeywordCount(),
			Patterns: rule.PatternCount(),
		})
		keywords += rule.KeywordCount()
		patterns += rule.PatternCount()
	}

	c.scorer, err = rules.NewScorer(ruleSet, kind.DefaultCategory())
	if err != nil {
		return nil, err
	}

	o.log.Debug(ctx, "taxonomy loaded",
		logger.String("taxonomy", kind.String()),
		logger.Int("categories", len(c.categories)),
		logger.Int("with_vectors", len(c.refs)),
		logger.Int("dimensions", c.dimensions),
		logger.Int("keywords", keywords),
		logger.Int("patterns", patterns))
	return c, nil
}

// Kind returns the taxonomy the cache was loaded for.
func (c *Cache) Kind() types.Kind { return c.kind }

// Categories returns the loaded categories in source order.
func (c *Cache) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// HasEmbeddings reports whether any category carries a reference vector.
func (c *Cache) HasEmbeddings() bool { return len(c.refs) > 0 }

// Dimensions is the shared reference vector dimension, 0 without embeddings.
func (c *Cache) Dimensions() int { return c.dimensions }

// References returns the categories usable for embedding matching.
func (c *Cache) References() []matcher.Reference { return c.refs }

// Scorer returns the rule scorer for the taxonomy.
func (c *Cache) Scorer() *rules.Scorer { return c.scorer }

// Match classifies a single item vector, falling back to the rule scorer on
// text when the vector is absent or matches nothing.
func (c *Cache) Match(vec []float32, text string) model.Result {
	if vec != nil && c.HasEmbeddings() {
		if m, ok := matcher.Best(vec, c.refs); ok {
			return model.Result{
				Kind:       c.kind,
				CategoryID: m.ID,
				Category:   m.Name,
				Confidence: m.Confidence(),
				Method:     model.MethodEmbedding,
			}
		}
	}
	r := c.scorer.Score(text)
	return model.Result{
		Kind:       c.kind,
		CategoryID: r.ID,
		Category:   r.Name,
		Confidence: r.Confidence,
		Method:     model.MethodRule,
	}
}
