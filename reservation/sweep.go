package reservation

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rami2212/digitex-backend/gateway"
	"github.com/rami2212/digitex-backend/models"
)

// SweepLoop cancels unpaid orders whose reservation window has lapsed and
// returns their stock, once per interval until ctx is cancelled. It runs off
// the interactive request path on purpose: expiry is enforced here, not by
// order reads.
func SweepLoop(ctx context.Context, db *gorm.DB, gw gateway.Gateway, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := ReleaseExpired(ctx, db, gw, time.Now()); err != nil {
				log.Printf("reservation sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("reservation sweep released %d expired order(s)", n)
			}
		}
	}
}

// ReleaseExpired cancels every unpaid order created before now-Window and
// restocks its items. Each order is handled in its own transaction with the
// row locked, so a payment landing mid-sweep wins: the transition is
// re-checked under the lock. Released orders also get their open gateway
// intent cancelled, so a late success cannot arrive for stock already gone.
func ReleaseExpired(ctx context.Context, db *gorm.DB, gw gateway.Gateway, now time.Time) (int, error) {
	cutoff := now.Add(-Window)

	var expired []models.Order
	if err := db.
		Where("created_at < ?", cutoff).
		Where("payment_status IN ?", []models.PaymentStatus{
			models.PaymentStatusPending,
			models.PaymentStatusProcessing,
			models.PaymentStatusFailed,
		}).
		Where("status NOT IN ?", []models.OrderStatus{
			models.OrderStatusCancelled,
			models.OrderStatusShipped,
			models.OrderStatusDelivered,
		}).
		Find(&expired).Error; err != nil {
		return 0, err
	}

	released := 0
	for i := range expired {
		order, err := releaseOne(db, expired[i].ID)
		if err != nil {
			log.Printf("failed to release expired order %d: %v", expired[i].ID, err)
			continue
		}
		if order == nil {
			continue
		}
		released++
		cancelStaleIntent(ctx, gw, order)
	}
	return released, nil
}

// releaseOne returns the released order, or nil if the re-check under the
// lock found it paid or already terminal.
func releaseOne(db *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	skipped := false
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			First(&order, "id = ?", orderID).Error; err != nil {
			return err
		}

		// Re-check under the lock: the order may have been paid or
		// cancelled since the sweep selected it.
		if order.PaymentStatus == models.PaymentStatusPaid ||
			order.PaymentStatus == models.PaymentStatusRefunded ||
			order.TerminalFulfillment() {
			skipped = true
			return nil
		}

		for _, item := range order.Items {
			if err := tx.Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
				return err
			}
		}

		order.Status = models.OrderStatusCancelled
		return tx.Save(&order).Error
	})
	if err != nil || skipped {
		return nil, err
	}
	return &order, nil
}

// cancelStaleIntent best-effort cancels the released order's open gateway
// intent. Failure is tolerable: engine anomaly handling absorbs a success
// that slips through anyway.
func cancelStaleIntent(ctx context.Context, gw gateway.Gateway, order *models.Order) {
	if gw == nil {
		return
	}
	ref := order.IntentRef()
	if ref == "" {
		return
	}
	if err := gw.CancelIntent(ctx, ref); err != nil {
		log.Printf("could not cancel intent %s for expired order %s: %v", ref, order.OrderRef, err)
	}
}
