package gateway

import (
	"context"
	"errors"
)

// IntentStatus is the gateway-side state of one payment attempt.
type IntentStatus string

const (
	IntentRequiresAction IntentStatus = "requires_action"
	IntentProcessing     IntentStatus = "processing"
	IntentSucceeded      IntentStatus = "succeeded"
	IntentCanceled       IntentStatus = "canceled"
	IntentFailed         IntentStatus = "failed"
)

// ErrUnavailable is returned when the gateway cannot be reached or answers
// with a server error. It is a transient failure: no payment state may be
// inferred from it.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Intent is the handle for one attempt to collect an order's amount.
type Intent struct {
	Ref          string `json:"ref"`
	ClientSecret string `json:"client_secret"` // single-use, presented to the card form
}

// Gateway issues and cancels payment intents and reports their state.
//
// The idempotency key scopes deduplication to one attempt: retries of the
// same create call carry the same key, while a deliberate new attempt (after
// a decline) carries a fresh one, so it can never collide with a cancelled
// intent still inside the gateway's dedup window.
type Gateway interface {
	CreateIntent(ctx context.Context, orderRef string, amountCents int64, currency, idempotencyKey string) (*Intent, error)
	GetIntentStatus(ctx context.Context, intentRef string) (IntentStatus, error)
	CancelIntent(ctx context.Context, intentRef string) error
}
