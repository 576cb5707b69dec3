package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/taxonomy"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/internal/domain/vector"
	"github.com/okian/hooklens/pkg/logger"
)

// SeedEmbeddings generates reference vectors for the categories of kind
// from their description, or their name when the description is empty.
// Only categories without a vector are embedded unless force is set.
// Categories whose embedding came back empty are reported in Skipped and
// left unchanged.
func (s *Service) SeedEmbeddings(ctx context.Context, kind types.Kind, force bool) (SeedSummary, error) {
	sum := SeedSummary{Taxonomy: kind}
	if s.embedder == nil {
		return sum, ErrNoEmbedder
	}

	records, err := s.store.Categories(ctx, kind)
	if err != nil {
		return sum, fmt.Errorf("%w: %s: %w", taxonomy.ErrLoadCategories, kind, err)
	}

	var (
		targets []model.CategoryRecord
		texts   []string
		dims    int
	)
	for _, rec := range records {
		vec, _ := vector.Decode(rec.Embedding)
		if vec != nil && !force {
			if dims == 0 {
				dims = len(vec)
			}
			continue
		}
		targets = append(targets, rec)
		texts = append(texts, seedText(rec))
	}
	sum.Eligible = len(targets)
	if len(targets) == 0 {
		s.logger.Info(ctx, "all categories already have reference vectors", logger.String("taxonomy", kind.String()))
		return sum, nil
	}

	vecs := s.embedder.Embed(ctx, texts)
	for i, rec := range targets {
		var v []float32
		if i < len(vecs) {
			v = vecs[i]
		}
		if v == nil {
			sum.Skipped = append(sum.Skipped, rec.Name)
			s.logger.Warn(ctx, "no embedding returned for category", logger.String("category", rec.Name))
			continue
		}
		if dims == 0 {
			dims = len(v)
		}
		if len(v) != dims {
			sum.Skipped = append(sum.Skipped, rec.Name)
			s.logger.Warn(ctx, "embedding dimension differs from existing category vectors",
				logger.String("category", rec.Name),
				logger.Int("dimensions", len(v)),
				logger.Int("expected", dims))
			continue
		}

		blob, err := vector.Encode(v)
		if err != nil {
			sum.Skipped = append(sum.Skipped, rec.Name)
			s.logger.Warn(ctx, "cannot encode category vector", logger.String("category", rec.Name), logger.Error(err))
			continue
		}
		if err := s.store.SetCategoryEmbedding(ctx, rec.ID, blob); err != nil {
			sum.Skipped = append(sum.Skipped, rec.Name)
			s.logger.Error(ctx, "failed to store category vector", logger.String("category", rec.Name), logger.Error(err))
			continue
		}
		sum.Seeded++
	}

	s.metrics.RecordSeeded(kind.String(), sum.Seeded)
	s.logger.Info(ctx, "category vectors seeded",
		logger.String("taxonomy", kind.String()),
		logger.Int("eligible", sum.Eligible),
		logger.Int("seeded", sum.Seeded),
		logger.Int("skipped", len(sum.Skipped)))
	return sum, nil
}

func seedText(rec model.CategoryRecord) string {
	if d := strings.TrimSpace(rec.Description); d != "" {
		return d
	}
	return rec.Name
}
