package paymentControllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rami2212/digitex-backend/gateway"
	"github.com/rami2212/digitex-backend/models"
	"github.com/rami2212/digitex-backend/reconcile"
	"github.com/rami2212/digitex-backend/store"
)

type stubGateway struct {
	mu      sync.Mutex
	nextRef int
}

func (g *stubGateway) CreateIntent(_ context.Context, orderRef string, _ int64, _, _ string) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextRef++
	ref := fmt.Sprintf("pi_%s_%d", orderRef, g.nextRef)
	return &gateway.Intent{Ref: ref, ClientSecret: ref + "_secret"}, nil
}

func (g *stubGateway) GetIntentStatus(_ context.Context, _ string) (gateway.IntentStatus, error) {
	return gateway.IntentProcessing, nil
}

func (g *stubGateway) CancelIntent(_ context.Context, _ string) error { return nil }

type spyNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *spyNotifier) PaymentProcessed(_ context.Context, _ *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func (n *spyNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type webhookFixture struct {
	router *gin.Engine
	store  *store.MemoryOrderStore
	engine *reconcile.Engine
	spy    *spyNotifier
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryOrderStore()
	spy := &spyNotifier{}
	engine := reconcile.NewEngine(st, &stubGateway{}, spy)

	router := gin.New()
	router.POST("/payment/webhook", WebhookHandler(st, engine))
	return &webhookFixture{router: router, store: st, engine: engine, spy: spy}
}

// seedProcessingOrder creates a card order with an open intent, the state a
// webhook normally finds.
func (f *webhookFixture) seedProcessingOrder(t *testing.T) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderRef:      "ord-7001",
		UserID:        "user-1",
		TotalCents:    275000,
		Currency:      "USD",
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodCard,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, f.store.Create(context.Background(), order))
	_, updated, err := f.engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)
	return updated
}

func (f *webhookFixture) post(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func webhookForm(order *models.Order, tranStatus string) url.Values {
	return url.Values{
		"tran_cartid": {order.OrderRef},
		"tran_ref":    {order.IntentRef()},
		"tran_status": {tranStatus},
	}
}

func TestWebhookHandler_ApprovedMarksPaid(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.seedProcessingOrder(t)

	w := f.post(t, webhookForm(order, "A"))
	assert.Equal(t, http.StatusOK, w.Code)

	got, err := f.store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
	assert.NotNil(t, got.PaidAt)
	assert.Equal(t, 1, f.spy.count())
}

func TestWebhookHandler_DuplicateDeliveryIsHarmless(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.seedProcessingOrder(t)

	for i := 0; i < 3; i++ {
		w := f.post(t, webhookForm(order, "A"))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	got, err := f.store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, 1, f.spy.count())
}

func TestWebhookHandler_DeclinedMarksFailed(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.seedProcessingOrder(t)

	w := f.post(t, webhookForm(order, "D"))
	assert.Equal(t, http.StatusOK, w.Code)

	got, err := f.store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.Equal(t, 0, f.spy.count())
}

func TestWebhookHandler_StaleIntentAcknowledgedAndIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.seedProcessingOrder(t)
	staleRef := order.IntentRef()

	// A decline followed by a retry supersedes the first intent.
	w := f.post(t, webhookForm(order, "D"))
	require.Equal(t, http.StatusOK, w.Code)
	_, _, err := f.engine.StartCardPayment(context.Background(), order.ID)
	require.NoError(t, err)

	// The stale intent's late success must not touch the order, but the
	// gateway still gets a 200 so it stops redelivering.
	form := url.Values{
		"tran_cartid": {order.OrderRef},
		"tran_ref":    {staleRef},
		"tran_status": {"A"},
	}
	w = f.post(t, form)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stale intent ignored")

	got, err := f.store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, got.PaymentStatus)
	assert.Nil(t, got.PaidAt)
	assert.Equal(t, 0, f.spy.count())
}

func TestWebhookHandler_UnknownOrder(t *testing.T) {
	f := newWebhookFixture(t)

	form := url.Values{
		"tran_cartid": {"ord-missing"},
		"tran_ref":    {"pi_x"},
		"tran_status": {"A"},
	}
	w := f.post(t, form)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookHandler_MissingFields(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(t, url.Values{"tran_status": {"A"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapWebhookStatus(t *testing.T) {
	assert.Equal(t, models.PaymentStatusPaid, mapWebhookStatus("A"))
	assert.Equal(t, models.PaymentStatusFailed, mapWebhookStatus("D"))
	assert.Equal(t, models.PaymentStatusFailed, mapWebhookStatus("C"))
	assert.Equal(t, models.PaymentStatusProcessing, mapWebhookStatus("H"))
	assert.Equal(t, models.PaymentStatusProcessing, mapWebhookStatus(""))
}
