package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/taxonomy"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/pkg/logger"
	"github.com/okian/hooklens/pkg/metrics"
)

// batch carries one page of items through the loop states.
type batch struct {
	items   []model.ContentItem
	texts   []string
	vectors [][]float32
	results []model.Result
}

// Run classifies every unlabeled item of kind. The taxonomy is loaded once;
// failure to load it is the only error that prevents a run from starting.
// Cancellation is checked between batches, so a cancelled run has persisted
// every result it computed.
func (s *Service) Run(ctx context.Context, kind types.Kind) (Summary, error) {
	runID := s.newRunID()
	log := s.logger.With(logger.String("run_id", runID), logger.String("taxonomy", kind.String()))
	sum := newSummary(runID, kind, s.now())

	cache, err := taxonomy.Load(ctx, s.store, kind, taxonomy.WithLogger(log))
	if err != nil {
		s.metrics.RecordError("taxonomy", "load")
		log.Error(ctx, "failed to load taxonomy", logger.Error(err))
		sum.Reason = StopFailed
		return s.finish(ctx, log, sum), err
	}
	withVec := len(cache.References())
	s.metrics.SetCategoriesLoaded(kind.String(), withVec, len(cache.Categories())-withVec)

	useEmbeddings := cache.HasEmbeddings() && s.embedder != nil
	log.Info(ctx, "classification run started",
		logger.Int("categories", len(cache.Categories())),
		logger.Bool("embeddings", useEmbeddings),
		logger.Int("batch_size", s.batchSize))

	sel := newCandidateSelector(s.store, kind, s.batchSize)
	sink := &updateSink{store: s.store, logger: log, metrics: s.metrics}
	warnedDims := false

	var (
		b     batch
		state = StateSelect
	)
	for state != StateDone {
		s.enter(state)
		switch state {
		case StateSelect:
			if err := ctx.Err(); err != nil {
				sum.Reason = StopCancelled
				log.Warn(ctx, "classification run cancelled", logger.Error(err))
				return s.finish(ctx, log, sum), err
			}
			items, outcome, err := sel.next(ctx)
			if err != nil {
				s.metrics.RecordError("repository", "select")
				log.Error(ctx, "failed to select candidates", logger.Error(err))
				sum.Reason = StopFailed
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					sum.Reason = StopCancelled
				}
				return s.finish(ctx, log, sum), err
			}
			switch outcome {
			case selectExhausted:
				sum.Reason = StopExhausted
				state = StateDone
				continue
			case selectStalled:
				s.metrics.RecordStalledRun(kind.String())
				log.Warn(ctx, "store keeps returning attempted items, stopping run",
					logger.Int("attempted", sel.attempted.Size()),
					logger.Int("unpersisted", sel.retained))
				sum.Reason = StopStalled
				state = StateDone
				continue
			}

			b = batch{items: items, texts: make([]string, len(items))}
			for i, it := range items {
				b.texts[i] = it.Text(kind)
			}
			sum.Found += len(items)
			sum.Batches++
			s.metrics.RecordSelected(kind.String(), len(items))
			s.metrics.RecordBatch(kind.String())
			if useEmbeddings {
				state = StateEmbed
			} else {
				state = StateRuleScore
			}

		case StateEmbed:
			b.vectors = s.embedTexts(ctx, b.texts)
			if !warnedDims {
				warnedDims = s.checkDimensions(ctx, log, cache, b.vectors)
			}
			state = StateMatch

		case StateMatch:
			b.results = make([]model.Result, len(b.items))
			for i, it := range b.items {
				res := cache.Match(b.vectors[i], b.texts[i])
				if res.Method == model.MethodRule {
					reason := metrics.FallbackNoMatch
					if b.vectors[i] == nil {
						reason = metrics.FallbackNoVector
					}
					s.metrics.RecordFallback(kind.String(), reason)
				}
				res.ItemID = it.ID
				b.results[i] = res
			}
			state = StatePersist

		case StateRuleScore:
			b.results = make([]model.Result, len(b.items))
			for i, it := range b.items {
				res := cache.Match(nil, b.texts[i])
				res.ItemID = it.ID
				b.results[i] = res
				s.metrics.RecordFallback(kind.String(), metrics.FallbackNoEmbeddings)
			}
			state = StatePersist

		case StatePersist:
			failed := 0
			for _, res := range b.results {
				if sink.persist(ctx, res) {
					sum.Classified++
					sum.ByMethod[res.Method]++
					continue
				}
				failed++
			}
			sum.Failed += failed
			sel.retain(failed)
			log.Debug(ctx, "batch persisted",
				logger.Int("batch", sum.Batches),
				logger.Int("items", len(b.results)),
				logger.Int("failed", failed))
			state = StateSelect
		}
	}
	return s.finish(ctx, log, sum), nil
}

// embedTexts embeds the non-empty texts; empty ones keep a nil slot so they
// go straight to the rule scorer.
func (s *Service) embedTexts(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	idx := make([]int, 0, len(texts))
	send := make([]string, 0, len(texts))
	for i, t := range texts {
		if t == "" {
			continue
		}
		idx = append(idx, i)
		send = append(send, t)
	}
	if len(send) == 0 {
		return out
	}
	vecs := s.embedder.Embed(ctx, send)
	for j, i := range idx {
		if j < len(vecs) {
			out[i] = vecs[j]
		}
	}
	return out
}

// checkDimensions warns when item vectors cannot be compared with the
// category vectors. It reports whether a warning was logged.
func (s *Service) checkDimensions(ctx context.Context, log logger.Logger, cache *taxonomy.Cache, vecs [][]float32) bool {
	for _, v := range vecs {
		if v == nil || len(v) == cache.Dimensions() {
			continue
		}
		log.Warn(ctx, "item vectors do not match category dimensions, items fall back to rules",
			logger.Int("item_dimensions", len(v)),
			logger.Int("category_dimensions", cache.Dimensions()))
		return true
	}
	return false
}

func (s *Service) enter(state State) {
	if s.observe != nil {
		s.observe(state)
	}
}

func (s *Service) finish(ctx context.Context, log logger.Logger, sum Summary) Summary {
	s.enter(StateDone)
	end := s.now()
	sum.Duration = end.Sub(sum.StartedAt)
	s.metrics.RecordRun(sum.Name, float64(sum.Duration.Milliseconds()), end.Unix())
	s.recordRun(sum)

	log.Info(ctx, "classification run finished",
		logger.String("reason", string(sum.Reason)),
		logger.Int("found", sum.Found),
		logger.Int("classified", sum.Classified),
		logger.Int("by_embedding", sum.ByMethod[model.MethodEmbedding]),
		logger.Int("by_rule", sum.ByMethod[model.MethodRule]),
		logger.Int("failed", sum.Failed),
		logger.Int("batches", sum.Batches),
		logger.Duration("duration", sum.Duration))
	return sum
}

// String renders a one-line summary for CLI output.
func (s Summary) String() string {
	return fmt.Sprintf("%s: found=%d classified=%d (embedding=%d rule=%d) failed=%d batches=%d reason=%s",
		s.Name, s.Found, s.Classified, s.ByMethod[model.MethodEmbedding], s.ByMethod[model.MethodRule],
		s.Failed, s.Batches, s.Reason)
}
