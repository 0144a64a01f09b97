package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rami2212/digitex-backend/gateway"
	"github.com/rami2212/digitex-backend/models"
	"github.com/rami2212/digitex-backend/store"
)

// fakeGateway dedupes creates on the idempotency key the way a real gateway
// does inside its dedup window: the same key returns the same intent, even a
// cancelled one.
type fakeGateway struct {
	mu        sync.Mutex
	nextRef   int
	statuses  map[string]gateway.IntentStatus
	byKey     map[string]*gateway.Intent
	createErr error
	statusErr error
	cancelled []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		statuses: make(map[string]gateway.IntentStatus),
		byKey:    make(map[string]*gateway.Intent),
	}
}

func (g *fakeGateway) CreateIntent(_ context.Context, orderRef string, _ int64, _, idempotencyKey string) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	if prior, ok := g.byKey[idempotencyKey]; ok {
		return prior, nil
	}
	g.nextRef++
	ref := fmt.Sprintf("pi_%s_%d", orderRef, g.nextRef)
	g.statuses[ref] = gateway.IntentProcessing
	intent := &gateway.Intent{Ref: ref, ClientSecret: ref + "_secret"}
	g.byKey[idempotencyKey] = intent
	return intent, nil
}

func (g *fakeGateway) GetIntentStatus(_ context.Context, intentRef string) (gateway.IntentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.statuses[intentRef], nil
}

func (g *fakeGateway) CancelIntent(_ context.Context, intentRef string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, intentRef)
	g.statuses[intentRef] = gateway.IntentCanceled
	return nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) PaymentProcessed(_ context.Context, _ *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func newTestEngine(t *testing.T) (*Engine, *store.MemoryOrderStore, *fakeGateway, *countingNotifier) {
	t.Helper()
	st := store.NewMemoryOrderStore()
	gw := newFakeGateway()
	n := &countingNotifier{}
	return NewEngine(st, gw, n), st, gw, n
}

func seedCardOrder(t *testing.T, st *store.MemoryOrderStore) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderRef:      "ord-1001",
		UserID:        "user-1",
		TotalCents:    50000,
		Currency:      "USD",
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodCard,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, st.Create(context.Background(), order))
	return order
}

func TestEngine_StartCardPayment_OpensIntent(t *testing.T) {
	engine, st, _, _ := newTestEngine(t)
	order := seedCardOrder(t, st)

	secret, updated, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Equal(t, models.PaymentStatusProcessing, updated.PaymentStatus)
	assert.Equal(t, models.OrderStatusPending, updated.Status)
	assert.NotEmpty(t, updated.IntentRef())
}

func TestEngine_StartCardPayment_GatewayDownLeavesOrderUntouched(t *testing.T) {
	engine, st, gw, _ := newTestEngine(t)
	order := seedCardOrder(t, st)
	gw.createErr = fmt.Errorf("%w: connection refused", gateway.ErrUnavailable)

	_, _, err := engine.StartCardPayment(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	current, err := st.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, current.PaymentStatus)
	assert.Empty(t, current.IntentRef())

	// Retry succeeds once the gateway is back.
	gw.createErr = nil
	_, updated, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, updated.PaymentStatus)
}

func TestEngine_StartCardPayment_RetryAfterDeclineGetsFreshIntent(t *testing.T) {
	engine, st, gw, _ := newTestEngine(t)
	order := seedCardOrder(t, st)

	_, withA, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	intentA := withA.IntentRef()

	_, err = engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusFailed,
		Evidence{Source: SourceWebhook, IntentRef: intentA})
	require.NoError(t, err)

	// The retry must not be deduped into the cancelled first intent, even if
	// the gateway's dedup window is still open.
	_, withB, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.NotEqual(t, intentA, withB.IntentRef(), "retry reused the cancelled intent")
	assert.Contains(t, gw.cancelled, intentA)
	assert.Equal(t, models.PaymentStatusProcessing, withB.PaymentStatus)
}

func TestEngine_StartCardPayment_RejectsCODAndNonRetryableStates(t *testing.T) {
	engine, st, _, _ := newTestEngine(t)

	cod := &models.Order{
		OrderRef:      "ord-cod",
		UserID:        "user-1",
		Status:        models.OrderStatusConfirmed,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodCOD,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, st.Create(context.Background(), cod))
	_, _, err := engine.StartCardPayment(context.Background(), cod.ID)
	assert.ErrorIs(t, err, ErrNotCardOrder)

	order := seedCardOrder(t, st)
	_, _, err = engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)

	// Already processing: no second concurrent attempt.
	_, _, err = engine.StartCardPayment(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrPaymentNotRetryable)
}

func TestEngine_ApplyPaymentOutcome_PaidConfirmsAndStampsOnce(t *testing.T) {
	engine, st, _, _ := newTestEngine(t)
	order := seedCardOrder(t, st)
	_, started, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)

	paid, err := engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusPaid,
		Evidence{Source: SourceWebhook, IntentRef: started.IntentRef()})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, paid.Status)
	require.NotNil(t, paid.PaidAt)

	firstPaidAt := *paid.PaidAt
	again, err := engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusPaid,
		Evidence{Source: SourceClient, IntentRef: started.IntentRef()})
	require.NoError(t, err)
	assert.Equal(t, firstPaidAt, *again.PaidAt)
}

func TestEngine_ApplyPaymentOutcome_PaidIsMonotonic(t *testing.T) {
	engine, st, _, _ := newTestEngine(t)
	order := seedCardOrder(t, st)
	_, started, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	intentRef := started.IntentRef()

	_, err = engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusPaid,
		Evidence{Source: SourceClient, IntentRef: intentRef})
	require.NoError(t, err)

	// No later evidence, of any status, moves the order off paid.
	for _, proposed := range []models.PaymentStatus{
		models.PaymentStatusProcessing,
		models.PaymentStatusFailed,
		models.PaymentStatusPaid,
	} {
		result, err := engine.ApplyPaymentOutcome(context.Background(), order.ID, proposed,
			Evidence{Source: SourceWebhook, IntentRef: intentRef})
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPaid, result.PaymentStatus, "proposed %s", proposed)
	}
}

func TestEngine_ApplyPaymentOutcome_IdempotentResult(t *testing.T) {
	engine, st, _, n := newTestEngine(t)
	order := seedCardOrder(t, st)
	_, started, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	ev := Evidence{Source: SourceWebhook, IntentRef: started.IntentRef()}

	first, err := engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusPaid, ev)
	require.NoError(t, err)
	second, err := engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusPaid, ev)
	require.NoError(t, err)

	assert.Equal(t, first.PaymentStatus, second.PaymentStatus)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, *first.PaidAt, *second.PaidAt)
	assert.Equal(t, 1, n.count())
}

func TestEngine_ApplyPaymentOutcome_NotifiesExactlyOnce(t *testing.T) {
	engine, st, _, n := newTestEngine(t)
	order := seedCardOrder(t, st)
	_, started, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	intentRef := started.IntentRef()

	// Client confirmation and webhook both report the same success.
	_, err = engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusPaid,
		Evidence{Source: SourceClient, IntentRef: intentRef})
	require.NoError(t, err)
	_, err = engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusPaid,
		Evidence{Source: SourceWebhook, IntentRef: intentRef})
	require.NoError(t, err)

	assert.Equal(t, 1, n.count())
}

func TestEngine_ApplyPaymentOutcome_RejectsStaleIntent(t *testing.T) {
	engine, st, gw, n := newTestEngine(t)
	order := seedCardOrder(t, st)

	// Attempt A declines.
	_, withA, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	intentA := withA.IntentRef()
	_, err = engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusFailed,
		Evidence{Source: SourceWebhook, IntentRef: intentA})
	require.NoError(t, err)

	// Retry opens intent B; A becomes stale and is cancelled upstream.
	_, withB, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	intentB := withB.IntentRef()
	require.NotEqual(t, intentA, intentB)
	assert.Contains(t, gw.cancelled, intentA)

	// A's delayed success webhook shows up: rejected, nothing mutated.
	_, err = engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusPaid,
		Evidence{Source: SourceWebhook, IntentRef: intentA})
	require.ErrorIs(t, err, ErrIntentMismatch)

	current, err := st.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, current.PaymentStatus)
	assert.Nil(t, current.PaidAt)
	assert.Equal(t, 0, n.count())

	// Only B's outcome moves the order to paid.
	_, err = engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusPaid,
		Evidence{Source: SourceWebhook, IntentRef: intentB})
	require.NoError(t, err)
	current, err = st.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, current.PaymentStatus)
	assert.Equal(t, 1, n.count())
}

func TestEngine_ApplyPaymentOutcome_FailedThenPaidApplied(t *testing.T) {
	engine, st, _, n := newTestEngine(t)
	order := seedCardOrder(t, st)
	_, started, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	intentRef := started.IntentRef()

	_, err = engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusFailed,
		Evidence{Source: SourceClient, IntentRef: intentRef})
	require.NoError(t, err)

	// Conflicting terminal evidence: paid wins, flagged for review.
	result, err := engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusPaid,
		Evidence{Source: SourceWebhook, IntentRef: intentRef})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, result.PaymentStatus)
	assert.Equal(t, 1, n.count())
}

func TestEngine_ApplyPaymentOutcome_LateEvidenceDoesNotReviveFailed(t *testing.T) {
	engine, st, _, _ := newTestEngine(t)
	order := seedCardOrder(t, st)
	_, started, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	intentRef := started.IntentRef()

	_, err = engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusFailed,
		Evidence{Source: SourceWebhook, IntentRef: intentRef})
	require.NoError(t, err)

	// A lagging "processing" report about the same attempt changes nothing;
	// only a fresh intent via StartCardPayment revives the flow.
	result, err := engine.ApplyPaymentOutcome(context.Background(), order.ID, models.PaymentStatusProcessing,
		Evidence{Source: SourceWebhook, IntentRef: intentRef})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, result.PaymentStatus)
}

func TestEngine_ApplyPaymentOutcome_OrderNotFound(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	_, err := engine.ApplyPaymentOutcome(context.Background(), 9999, models.PaymentStatusPaid,
		Evidence{Source: SourceWebhook, IntentRef: "pi_x"})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestEngine_ConfirmByIntent_AppliesGatewayOutcome(t *testing.T) {
	engine, st, gw, _ := newTestEngine(t)
	order := seedCardOrder(t, st)
	_, started, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	intentRef := started.IntentRef()

	gw.mu.Lock()
	gw.statuses[intentRef] = gateway.IntentSucceeded
	gw.mu.Unlock()

	result, err := engine.ConfirmByIntent(context.Background(), intentRef)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, result.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, result.Status)
}

func TestEngine_ConcurrentEvidence_ConvergesToPaidWithOneNotification(t *testing.T) {
	engine, st, _, n := newTestEngine(t)
	order := seedCardOrder(t, st)
	_, started, err := engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	intentRef := started.IntentRef()

	// A client confirmation races duplicate webhooks reporting a mix of
	// outcomes for the same intent.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		proposed := models.PaymentStatusPaid
		source := SourceWebhook
		if i%2 == 1 {
			proposed = models.PaymentStatusProcessing
			source = SourceClient
		}
		wg.Add(1)
		go func(p models.PaymentStatus, s EvidenceSource) {
			defer wg.Done()
			_, _ = engine.ApplyPaymentOutcome(context.Background(), order.ID, p, Evidence{Source: s, IntentRef: intentRef})
		}(proposed, source)
	}
	wg.Wait()

	final, err := st.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, final.PaymentStatus)
	assert.Equal(t, 1, n.count())
}

func TestMapIntentStatus(t *testing.T) {
	assert.Equal(t, models.PaymentStatusPaid, MapIntentStatus(gateway.IntentSucceeded))
	assert.Equal(t, models.PaymentStatusFailed, MapIntentStatus(gateway.IntentFailed))
	assert.Equal(t, models.PaymentStatusFailed, MapIntentStatus(gateway.IntentCanceled))
	assert.Equal(t, models.PaymentStatusProcessing, MapIntentStatus(gateway.IntentProcessing))
	assert.Equal(t, models.PaymentStatusProcessing, MapIntentStatus(gateway.IntentRequiresAction))
}
