package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/internal/domain/vector"
	"github.com/okian/hooklens/pkg/logger"
)

// categoryNamespace derives stable ids for categories defined without one,
// so importing the same file twice updates rather than duplicates.
var categoryNamespace = uuid.MustParse("5b0cf3a6-8d1e-4c57-9f0e-3d7a1c2b9e41")

// CategoryDef is one category in a definition file.
type CategoryDef struct {
	ID          string   `koanf:"id"`
	Name        string   `koanf:"name"`
	Description string   `koanf:"description"`
	Keywords    []string `koanf:"keywords"`
	Patterns    []string `koanf:"patterns"`
	// Embedding is an optional reference vector in text form, "[0.1,0.2]".
	Embedding string `koanf:"embedding"`
}

// ImportCategories upserts the categories defined in a YAML file. The file
// maps taxonomy names to category lists:
//
//	topic:
//	  - name: growth
//	    description: Growing an audience
//	    keywords: [followers, reach]
//	hook_type:
//	  - name: question
//	    patterns: ['\?$']
//
// The file is validated in full before anything is written.
func (s *Service) ImportCategories(ctx context.Context, path string) (ImportSummary, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return ImportSummary{}, fmt.Errorf("%w: %s: %w", ErrLoadCategoryFile, path, err)
	}

	recs, err := parseCategoryDefs(k)
	if err != nil {
		return ImportSummary{}, err
	}

	sum := ImportSummary{Upserted: map[types.Kind]int{}}
	for _, rec := range recs {
		if err := s.store.UpsertCategory(ctx, rec); err != nil {
			return sum, fmt.Errorf("upsert category %s/%s: %w", rec.Kind, rec.Name, err)
		}
		sum.Upserted[rec.Kind]++
	}
	s.logger.Info(ctx, "categories imported",
		logger.String("file", path),
		logger.Int("categories", sum.Total()))
	return sum, nil
}

func parseCategoryDefs(k *koanf.Koanf) ([]model.CategoryRecord, error) {
	raw := k.Raw()
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	byKind := map[types.Kind][]CategoryDef{}
	for _, key := range keys {
		kind, ok := types.ParseKind(key)
		if !ok {
			return nil, fmt.Errorf("%w: unknown taxonomy %q", ErrInvalidCategoryDef, key)
		}
		var defs []CategoryDef
		if err := k.Unmarshal(key, &defs); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCategoryDef, key, err)
		}
		byKind[kind] = append(byKind[kind], defs...)
	}

	// ids are global: a category belongs to exactly one taxonomy
	var out []model.CategoryRecord
	seen := map[string]types.Kind{}
	for _, kind := range types.Kinds() {
		for i, def := range byKind[kind] {
			rec, err := def.record(kind)
			if err != nil {
				return nil, fmt.Errorf("%w: %s[%d]: %w", ErrInvalidCategoryDef, kind, i, err)
			}
			if prev, ok := seen[rec.ID]; ok {
				if prev == kind {
					return nil, fmt.Errorf("%w: %s: duplicate category %q", ErrInvalidCategoryDef, kind, rec.Name)
				}
				return nil, fmt.Errorf("%w: %s: category id %q already used by %s", ErrInvalidCategoryDef, kind, rec.ID, prev)
			}
			seen[rec.ID] = kind
			out = append(out, rec)
		}
	}
	return out, nil
}

func (d CategoryDef) record(kind types.Kind) (model.CategoryRecord, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return model.CategoryRecord{}, errors.New("name is required")
	}
	id := strings.TrimSpace(d.ID)
	if id == "" {
		id = uuid.NewSHA1(categoryNamespace, []byte(kind.String()+"/"+name)).String()
	}

	rec := model.CategoryRecord{
		ID:          id,
		Kind:        kind,
		Name:        name,
		Description: strings.TrimSpace(d.Description),
		Keywords:    d.Keywords,
		Patterns:    d.Patterns,
	}
	if strings.TrimSpace(d.Embedding) != "" {
		vec, err := vector.DecodeText(d.Embedding)
		if err != nil {
			return model.CategoryRecord{}, fmt.Errorf("category %s: %w", name, err)
		}
		if rec.Embedding, err = vector.Encode(vec); err != nil {
			return model.CategoryRecord{}, fmt.Errorf("category %s: %w", name, err)
		}
	}
	return rec, nil
}
