package notify

import (
	"context"
	"log"
	"time"

	"github.com/rami2212/digitex-backend/models"
)

// Notifier receives the downstream fulfillment notification. The
// reconciliation engine invokes it at most once per order reaching paid.
type Notifier interface {
	PaymentProcessed(ctx context.Context, order *models.Order) error
}

// PaymentProcessedEvent is the message published when an order is paid.
type PaymentProcessedEvent struct {
	OrderID     uint      `json:"order_id"`
	OrderRef    string    `json:"order_ref"`
	UserID      string    `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	PaidAt      time.Time `json:"paid_at"`
}

// Multi fans a notification out to several sinks. A failing sink is logged
// and does not stop the others.
type Multi []Notifier

func (m Multi) PaymentProcessed(ctx context.Context, order *models.Order) error {
	var firstErr error
	for _, n := range m {
		if err := n.PaymentProcessed(ctx, order); err != nil {
			log.Printf("payment-processed notification failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
