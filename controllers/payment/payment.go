package paymentControllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rami2212/digitex-backend/models"
	"github.com/rami2212/digitex-backend/reconcile"
	"github.com/rami2212/digitex-backend/session"
	"github.com/rami2212/digitex-backend/store"
)

type ConfirmPaymentRequest struct {
	IntentRef string `json:"intent_ref" binding:"required"`
}

// POST /payment/orders/:orderID/start
//
// Opens (or reopens, after a decline) the card flow and hands the client
// secret back for the card form. Gateway trouble leaves the order untouched,
// so the client may simply retry.
func StartCardPaymentHandler(engine *reconcile.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := strconv.ParseUint(c.Param("orderID"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid orderID"})
			return
		}

		clientSecret, order, err := engine.StartCardPayment(c.Request.Context(), uint(orderID))
		if err != nil {
			switch {
			case errors.Is(err, reconcile.ErrOrderNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			case errors.Is(err, reconcile.ErrGatewayUnavailable):
				c.JSON(http.StatusBadGateway, gin.H{"error": "payment service is temporarily unavailable, please retry"})
			case errors.Is(err, reconcile.ErrNotCardOrder), errors.Is(err, reconcile.ErrPaymentNotRetryable):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"client_secret":  clientSecret,
			"intent_ref":     order.IntentRef(),
			"payment_status": order.PaymentStatus,
		})
	}
}

// POST /payment/confirm
//
// Called when the client returns from the gateway redirect with an intent
// reference. The engine asks the gateway for the intent's outcome and merges
// it; a stale reference (superseded by a retry) is rejected.
func ConfirmPaymentHandler(engine *reconcile.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConfirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		order, err := engine.ConfirmByIntent(c.Request.Context(), req.IntentRef)
		if err != nil {
			switch {
			case errors.Is(err, reconcile.ErrOrderNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "no order holds this intent"})
			case errors.Is(err, reconcile.ErrIntentMismatch):
				c.JSON(http.StatusConflict, gin.H{"error": "intent is stale, re-fetch the order"})
			case errors.Is(err, reconcile.ErrGatewayUnavailable):
				// Transient: the caller keeps polling; the webhook will
				// reconcile the same intent eventually.
				c.JSON(http.StatusAccepted, gin.H{"message": "confirmation pending, keep polling"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"payment_status": order.PaymentStatus,
			"order_status":   order.Status,
		})
	}
}

// GET /payment/orders/:orderID/status
func PaymentStatusHandler(st store.OrderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := strconv.ParseUint(c.Param("orderID"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid orderID"})
			return
		}

		order, err := st.Get(c.Request.Context(), uint(orderID))
		if err != nil {
			if errors.Is(err, store.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"payment_status": order.PaymentStatus,
			"order_status":   order.Status,
		})
	}
}

// GET /payment/orders/:orderID/wait?intent_ref=...&attempts=N
//
// Long-poll endpoint backing the pending-payment view: one best-effort
// confirmation when an intent_ref was recovered from the redirect, then
// bounded fixed-interval polling of the store. Navigating away cancels the
// request context, which stops the session before its next tick.
func WaitForPaymentHandler(st store.OrderStore, engine *reconcile.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := strconv.ParseUint(c.Param("orderID"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid orderID"})
			return
		}

		maxAttempts := session.DefaultMaxAttempts
		if raw := c.Query("attempts"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= session.DefaultMaxAttempts {
				maxAttempts = n
			}
		}

		poll := &session.PollSession{
			OrderID:            uint(orderID),
			RecoveredIntentRef: c.Query("intent_ref"),
			MaxAttempts:        maxAttempts,
			Reader:             storeReader{st},
			Confirmer:          engineConfirmer{engine},
		}

		result, err := poll.Run(c.Request.Context())
		if err != nil {
			// Client went away; nothing to render.
			c.Status(http.StatusRequestTimeout)
			return
		}
		if result.Exhausted {
			c.JSON(http.StatusOK, gin.H{
				"payment_status": models.PaymentStatusProcessing,
				"message":        "still processing, refresh to check",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"payment_status": result.Status})
	}
}

// storeReader adapts the order store to the poll session's read-only view.
type storeReader struct {
	st store.OrderStore
}

func (r storeReader) PaymentStatus(ctx context.Context, orderID uint) (models.PaymentStatus, error) {
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	order, err := r.st.Get(readCtx, orderID)
	if err != nil {
		return "", err
	}
	return order.PaymentStatus, nil
}

// engineConfirmer adapts the engine to the poll session's one-shot confirm.
type engineConfirmer struct {
	engine *reconcile.Engine
}

func (e engineConfirmer) ConfirmIntent(ctx context.Context, intentRef string) error {
	_, err := e.engine.ConfirmByIntent(ctx, intentRef)
	return err
}
