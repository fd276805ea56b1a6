// Package store persists extracted transport orders, keyed by the id of the
// source message so reprocessing a message can never duplicate an order.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// ErrNotFound is returned when no order exists for a lookup key.
var ErrNotFound = eris.New("store: order not found")

// OrderFilter specifies criteria for listing orders.
type OrderFilter struct {
	Sender string `json:"sender,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for transport orders.
//
// SaveOrder is idempotent on the draft's message id: saving a draft whose
// message was already persisted returns the existing order id with
// created=false and leaves the stored row untouched.
type Store interface {
	SaveOrder(ctx context.Context, draft *model.OrderDraft) (id string, created bool, err error)
	GetOrderByMessageID(ctx context.Context, messageID string) (*model.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	CountOrders(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}
