package service

import (
	"context"
	"fmt"

	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/taxonomy"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/pkg/logger"
	"github.com/okian/hooklens/pkg/metrics"
)

// ClassifyItem classifies one item by id for kind and overwrites its label,
// whether or not it was already labeled. It goes through the same embed,
// match and persist steps as Run but does not count as a run.
func (s *Service) ClassifyItem(ctx context.Context, kind types.Kind, itemID string) (model.Result, error) {
	log := s.logger.With(logger.String("taxonomy", kind.String()), logger.String("item_id", itemID))

	cache, err := taxonomy.Load(ctx, s.store, kind, taxonomy.WithLogger(log))
	if err != nil {
		s.metrics.RecordError("taxonomy", "load")
		return model.Result{}, err
	}

	s.enter(StateSelect)
	item, err := s.store.Item(ctx, itemID)
	if err != nil {
		s.enter(StateDone)
		return model.Result{}, fmt.Errorf("%w: %s: %w", ErrLoadItem, itemID, err)
	}
	text := item.Text(kind)
	s.metrics.RecordSelected(kind.String(), 1)

	var (
		res  model.Result
		prev = item.Labels[kind.LabelField()]
	)
	if cache.HasEmbeddings() && s.embedder != nil {
		s.enter(StateEmbed)
		vecs := s.embedTexts(ctx, []string{text})
		s.checkDimensions(ctx, log, cache, vecs)

		s.enter(StateMatch)
		res = cache.Match(vecs[0], text)
		if res.Method == model.MethodRule {
			reason := metrics.FallbackNoMatch
			if vecs[0] == nil {
				reason = metrics.FallbackNoVector
			}
			s.metrics.RecordFallback(kind.String(), reason)
		}
	} else {
		s.enter(StateRuleScore)
		res = cache.Match(nil, text)
		s.metrics.RecordFallback(kind.String(), metrics.FallbackNoEmbeddings)
	}
	res.ItemID = item.ID

	s.enter(StatePersist)
	sink := &updateSink{store: s.store, logger: log, metrics: s.metrics}
	ok := sink.persist(ctx, res)
	s.enter(StateDone)
	if !ok {
		return res, fmt.Errorf("%w: %s", ErrPersistLabel, itemID)
	}

	log.Info(ctx, "item classified",
		logger.String("category", res.Category),
		logger.String("previous", prev),
		logger.String("method", string(res.Method)),
		logger.Float64("confidence", res.Confidence))
	return res, nil
}
