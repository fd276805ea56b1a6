package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// Sink adapts a Store to the pipeline's persistence stage.
type Sink struct {
	store Store
}

// NewSink wraps the store for pipeline use.
func NewSink(s Store) *Sink {
	return &Sink{store: s}
}

// Persist saves the draft, treating an already-persisted message as success.
func (s *Sink) Persist(ctx context.Context, draft *model.OrderDraft) error {
	id, created, err := s.store.SaveOrder(ctx, draft)
	if err != nil {
		return err
	}
	if !created {
		zap.L().Info("store: order already persisted",
			zap.String("order_id", id),
			zap.String("message_id", draft.MessageID),
		)
		return nil
	}
	zap.L().Info("store: order persisted",
		zap.String("order_id", id),
		zap.String("message_id", draft.MessageID),
	)
	return nil
}
