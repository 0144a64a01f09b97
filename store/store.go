package store

import (
	"context"
	"errors"

	"github.com/rami2212/digitex-backend/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStore is the single source of truth for order and payment status.
// UpdatePayment runs mutate with the order held exclusively, so a
// check-then-set against the current state is atomic relative to other
// writers of the same order.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, orderID uint) (*models.Order, error)
	GetByRef(ctx context.Context, orderRef string) (*models.Order, error)
	FindByIntentRef(ctx context.Context, intentRef string) (*models.Order, error)
	UpdatePayment(ctx context.Context, orderID uint, mutate func(*models.Order) error) (*models.Order, error)
}
