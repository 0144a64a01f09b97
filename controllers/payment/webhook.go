package paymentControllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rami2212/digitex-backend/models"
	"github.com/rami2212/digitex-backend/reconcile"
	"github.com/rami2212/digitex-backend/store"
)

// mapWebhookStatus translates the gateway's transaction codes.
// "A" approved, "D" declined, "C" cancelled, anything else still in flight.
func mapWebhookStatus(tranStatus string) models.PaymentStatus {
	switch tranStatus {
	case "A":
		return models.PaymentStatusPaid
	case "D", "C":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusProcessing
	}
}

// WebhookHandler consumes the gateway's form-encoded webhook. Deliveries are
// at-least-once and may arrive before or after the client's own
// confirmation; the engine makes duplicates and ordering harmless, so this
// handler answers 200 to anything it recognized, applied or not, to stop the
// gateway from redelivering.
func WebhookHandler(st store.OrderStore, engine *reconcile.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse form"})
			return
		}

		orderRef := c.PostForm("tran_cartid")
		intentRef := c.PostForm("tran_ref")
		tranStatus := c.PostForm("tran_status")

		if orderRef == "" || intentRef == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing tran_cartid or tran_ref"})
			return
		}

		order, err := st.GetByRef(c.Request.Context(), orderRef)
		if err != nil {
			if errors.Is(err, store.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown order"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		proposed := mapWebhookStatus(tranStatus)
		_, err = engine.ApplyPaymentOutcome(c.Request.Context(), order.ID, proposed, reconcile.Evidence{
			Source:    reconcile.SourceWebhook,
			IntentRef: intentRef,
		})
		if err != nil {
			if errors.Is(err, reconcile.ErrIntentMismatch) {
				// Late report about a superseded intent: acknowledged and
				// dropped, the order is untouched.
				log.Printf("webhook for order %s ignored: stale intent %s", orderRef, intentRef)
				c.JSON(http.StatusOK, gin.H{"message": "stale intent ignored"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	}
}
