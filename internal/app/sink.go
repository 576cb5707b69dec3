package service

import (
	"context"

	"github.com/okian/hooklens/internal/adapters/repository"
	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/pkg/logger"
	"github.com/okian/hooklens/pkg/metrics"
)

// updateSink writes results one item at a time. A failed write is logged
// and counted but never stops the pass.
type updateSink struct {
	store   repository.ContentStore
	logger  logger.Logger
	metrics *metrics.Manager
}

func (u *updateSink) persist(ctx context.Context, res model.Result) bool {
	if err := u.store.SetLabel(ctx, res.ItemID, res.Kind, res.CategoryID); err != nil {
		u.metrics.RecordPersistFailure(res.Kind.String())
		u.metrics.RecordError("repository", "set_label")
		u.logger.Error(ctx, "failed to persist label",
			logger.String("item_id", res.ItemID),
			logger.String("category", res.Category),
			logger.Error(err))
		return false
	}
	u.metrics.RecordClassified(res.Kind.String(), string(res.Method))
	u.logger.Debug(ctx, "item classified",
		logger.String("item_id", res.ItemID),
		logger.String("category", res.Category),
		logger.Float64("confidence", res.Confidence),
		logger.String("method", string(res.Method)))
	return true
}
