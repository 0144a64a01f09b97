package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rami2212/digitex-backend/gateway"
	"github.com/rami2212/digitex-backend/models"
	"github.com/rami2212/digitex-backend/notify"
	"github.com/rami2212/digitex-backend/store"
)

// EvidenceSource identifies the channel that reported a payment outcome.
type EvidenceSource string

const (
	SourceClient  EvidenceSource = "client-confirm"
	SourceWebhook EvidenceSource = "webhook"
	SourcePoll    EvidenceSource = "poll"
)

// Evidence carries what a channel claims about a payment, tied to the intent
// it observed. Evidence about a superseded intent is rejected.
type Evidence struct {
	Source    EvidenceSource
	IntentRef string
}

var (
	// ErrOrderNotFound mirrors the store sentinel for callers of this package.
	ErrOrderNotFound = store.ErrOrderNotFound

	// ErrIntentMismatch rejects evidence referencing an intent that is no
	// longer the order's active one (replaced by a retry).
	ErrIntentMismatch = errors.New("evidence references a stale payment intent")

	// ErrNotCardOrder rejects a card flow started on a COD order.
	ErrNotCardOrder = errors.New("order is not a card payment order")

	// ErrPaymentNotRetryable rejects starting a card payment when the order
	// is already paid, mid-flight, cancelled or refunded.
	ErrPaymentNotRetryable = errors.New("payment cannot be started in the order's current state")

	// ErrGatewayUnavailable propagates a transient gateway failure; the
	// order is left untouched so retrying is safe.
	ErrGatewayUnavailable = gateway.ErrUnavailable
)

// Engine is the single authority applying payment-status transitions to
// orders. It serializes all transitions per order id, enforces the
// monotonicity of paid, rejects stale-intent evidence and fires the
// downstream fulfillment notification at most once per order.
type Engine struct {
	store    store.OrderStore
	gateway  gateway.Gateway
	notifier notify.Notifier
	locks    *orderLocks
}

func NewEngine(st store.OrderStore, gw gateway.Gateway, n notify.Notifier) *Engine {
	return &Engine{store: st, gateway: gw, notifier: n, locks: newOrderLocks()}
}

// ApplyPaymentOutcome merges one piece of evidence into the order's payment
// state.
//
//   - Already paid: no-op, the existing order is returned. This absorbs
//     duplicate webhooks and the client-confirm/webhook race.
//   - Stale intent: rejected with ErrIntentMismatch, nothing is mutated.
//   - failed -> paid: applied (paid wins) but logged as an anomaly for
//     out-of-band review, since it implies the gateway contradicted itself.
//   - Transition into paid sets paid_at once, advances a pending order to
//     confirmed and fires the fulfillment notification exactly once.
func (e *Engine) ApplyPaymentOutcome(ctx context.Context, orderID uint, proposed models.PaymentStatus, ev Evidence) (*models.Order, error) {
	switch proposed {
	case models.PaymentStatusProcessing, models.PaymentStatusPaid, models.PaymentStatusFailed:
	default:
		return nil, fmt.Errorf("unsupported proposed payment status %q", proposed)
	}

	e.locks.lock(orderID)
	defer e.locks.unlock(orderID)

	becamePaid := false
	order, err := e.store.UpdatePayment(ctx, orderID, func(o *models.Order) error {
		// Terminal success is monotonic: nothing downgrades paid, and a
		// refund is a separate administrative transition, never evidence.
		if o.PaymentStatus == models.PaymentStatusPaid || o.PaymentStatus == models.PaymentStatusRefunded {
			return nil
		}

		if ev.IntentRef == "" || o.IntentRef() != ev.IntentRef {
			return ErrIntentMismatch
		}

		switch proposed {
		case models.PaymentStatusPaid:
			if o.PaymentStatus == models.PaymentStatusFailed {
				log.Printf("ANOMALY: order %s moved failed -> paid on %s evidence for intent %s; flag for reconciliation review",
					o.OrderRef, ev.Source, ev.IntentRef)
			}
			if o.Status == models.OrderStatusCancelled {
				log.Printf("ANOMALY: order %s reported paid by %s after cancellation; flag for manual refund",
					o.OrderRef, ev.Source)
			}
			o.PaymentStatus = models.PaymentStatusPaid
			if o.PaidAt == nil {
				now := time.Now()
				o.PaidAt = &now
			}
			if o.Status == models.OrderStatusPending {
				o.Status = models.OrderStatusConfirmed
			}
			becamePaid = true

		case models.PaymentStatusProcessing, models.PaymentStatusFailed:
			// A failed attempt is only revived by a fresh intent via
			// StartCardPayment, never by late evidence about the old one.
			if o.PaymentStatus == models.PaymentStatusFailed {
				return nil
			}
			o.PaymentStatus = proposed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if becamePaid {
		// At most once per order: only the call that performed the
		// not-paid -> paid transition reaches here, and the per-order lock
		// prevents two callers from both observing not-paid.
		if e.notifier != nil {
			if nerr := e.notifier.PaymentProcessed(ctx, order); nerr != nil {
				log.Printf("fulfillment notification for order %s failed: %v", order.OrderRef, nerr)
			}
		}
	}
	return order, nil
}

// StartCardPayment opens a fresh payment intent for the order and returns the
// client secret the card form needs. Allowed from pending (first attempt) and
// failed (retry). The previous intent, if any, becomes stale: it is
// best-effort cancelled at the gateway and any later evidence about it will
// be rejected with ErrIntentMismatch.
//
// If the gateway cannot be reached the order is left exactly as it was, so
// the caller may retry.
func (e *Engine) StartCardPayment(ctx context.Context, orderID uint) (string, *models.Order, error) {
	e.locks.lock(orderID)
	defer e.locks.unlock(orderID)

	order, err := e.store.Get(ctx, orderID)
	if err != nil {
		return "", nil, err
	}
	if order.PaymentMethod != models.PaymentMethodCard {
		return "", nil, ErrNotCardOrder
	}
	if order.Status == models.OrderStatusCancelled {
		return "", nil, ErrPaymentNotRetryable
	}
	switch order.PaymentStatus {
	case models.PaymentStatusPending, models.PaymentStatusFailed:
	default:
		return "", nil, ErrPaymentNotRetryable
	}

	if prior := order.IntentRef(); prior != "" {
		if cerr := e.gateway.CancelIntent(ctx, prior); cerr != nil {
			log.Printf("could not cancel stale intent %s for order %s: %v", prior, order.OrderRef, cerr)
		}
	}

	// Fresh key per attempt: a retry after a decline must never be deduped
	// into the cancelled intent it replaces.
	intent, err := e.gateway.CreateIntent(ctx, order.OrderRef, order.TotalCents, order.Currency, uuid.NewString())
	if err != nil {
		return "", nil, err
	}

	order, err = e.store.UpdatePayment(ctx, orderID, func(o *models.Order) error {
		o.PaymentIntentRef = &intent.Ref
		o.PaymentStatus = models.PaymentStatusProcessing
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return intent.ClientSecret, order, nil
}

// ConfirmByIntent resolves the order holding the given intent, asks the
// gateway for the intent's current state and applies it as client-confirm
// evidence. Used when the client returns from a redirect flow.
func (e *Engine) ConfirmByIntent(ctx context.Context, intentRef string) (*models.Order, error) {
	order, err := e.store.FindByIntentRef(ctx, intentRef)
	if err != nil {
		return nil, err
	}

	status, err := e.gateway.GetIntentStatus(ctx, intentRef)
	if err != nil {
		return nil, err
	}

	return e.ApplyPaymentOutcome(ctx, order.ID, MapIntentStatus(status), Evidence{
		Source:    SourceClient,
		IntentRef: intentRef,
	})
}

// MapIntentStatus translates a gateway intent state into the payment status
// it proposes for the order.
func MapIntentStatus(s gateway.IntentStatus) models.PaymentStatus {
	switch s {
	case gateway.IntentSucceeded:
		return models.PaymentStatusPaid
	case gateway.IntentFailed, gateway.IntentCanceled:
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusProcessing
	}
}
