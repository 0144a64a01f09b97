package session

import (
	"context"
	"log"
	"time"

	"github.com/rami2212/digitex-backend/models"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 24 // ~2 minutes at the default interval
)

// StatusReader exposes the authoritative payment status of an order.
type StatusReader interface {
	PaymentStatus(ctx context.Context, orderID uint) (models.PaymentStatus, error)
}

// Confirmer applies recovered redirect evidence against the order store.
type Confirmer interface {
	ConfirmIntent(ctx context.Context, intentRef string) error
}

// PollSession bridges one checkout view to the order store. It is never a
// source of truth: it only reads status and, at most once, hands recovered
// redirect evidence to the confirmer. Sessions are ephemeral and hold no
// state beyond their own attempt counter.
type PollSession struct {
	OrderID uint

	// RecoveredIntentRef is set when the view was entered from a gateway
	// redirect callback. It is consumed exactly once, before polling.
	RecoveredIntentRef string

	Interval    time.Duration
	MaxAttempts int

	Reader    StatusReader
	Confirmer Confirmer
}

// Result is what the hosting view renders when the session ends.
type Result struct {
	Status   models.PaymentStatus
	Attempts int

	// Exhausted means the attempt budget ran out without a terminal status.
	// Not an error: the store may still converge via webhook, so the view
	// offers a manual refresh.
	Exhausted bool
}

// Run executes the session: one best-effort confirmation, then at most
// MaxAttempts sequential status reads at a fixed interval. It stops early on
// a terminal status or when ctx is cancelled. Requests are single-flight; a
// new read is never issued before the prior one resolves, and nothing runs
// after cancellation.
func (s *PollSession) Run(ctx context.Context) (Result, error) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if s.RecoveredIntentRef != "" && s.Confirmer != nil {
		// Best effort: a failed confirmation does not block convergence,
		// the webhook path will reconcile the same intent later.
		if err := s.Confirmer.ConfirmIntent(ctx, s.RecoveredIntentRef); err != nil {
			log.Printf("confirm for intent %s failed, falling back to polling: %v", s.RecoveredIntentRef, err)
		}
	}

	var result Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		status, err := s.Reader.PaymentStatus(ctx, s.OrderID)
		result.Attempts = attempt
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-read: the in-flight result is discarded.
				return result, ctx.Err()
			}
			// Transient read failure counts against the budget and the
			// loop keeps its cadence.
			log.Printf("status poll %d/%d for order %d failed: %v", attempt, maxAttempts, s.OrderID, err)
		} else {
			result.Status = status
			if status.Terminal() {
				return result, nil
			}
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(interval):
		}
	}

	result.Exhausted = true
	return result, nil
}
