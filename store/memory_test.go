package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rami2212/digitex-backend/models"
)

func seedOrder(t *testing.T, s *MemoryOrderStore) *models.Order {
	t.Helper()
	intentRef := "pi_mem_1"
	order := &models.Order{
		OrderRef:         "ord-mem-1",
		UserID:           "user-1",
		TotalCents:       125000,
		Status:           models.OrderStatusPending,
		PaymentStatus:    models.PaymentStatusProcessing,
		PaymentMethod:    models.PaymentMethodCard,
		PaymentIntentRef: &intentRef,
		Items: []models.OrderItem{
			{ProductID: 7, ProductName: "AeroBook 14", UnitPriceCents: 125000, Quantity: 1},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.Create(context.Background(), order))
	return order
}

func TestMemoryOrderStore_CreateAssignsID(t *testing.T) {
	s := NewMemoryOrderStore()
	order := seedOrder(t, s)
	assert.NotZero(t, order.ID)

	got, err := s.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderRef, got.OrderRef)
	assert.Len(t, got.Items, 1)
}

func TestMemoryOrderStore_GetNotFound(t *testing.T) {
	s := NewMemoryOrderStore()
	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryOrderStore_GetByRef(t *testing.T) {
	s := NewMemoryOrderStore()
	order := seedOrder(t, s)

	got, err := s.GetByRef(context.Background(), order.OrderRef)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = s.GetByRef(context.Background(), "ord-missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryOrderStore_FindByIntentRef(t *testing.T) {
	s := NewMemoryOrderStore()
	order := seedOrder(t, s)

	got, err := s.FindByIntentRef(context.Background(), "pi_mem_1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = s.FindByIntentRef(context.Background(), "pi_other")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryOrderStore_UpdatePaymentCommitsMutation(t *testing.T) {
	s := NewMemoryOrderStore()
	order := seedOrder(t, s)

	updated, err := s.UpdatePayment(context.Background(), order.ID, func(o *models.Order) error {
		o.PaymentStatus = models.PaymentStatusPaid
		now := time.Now()
		o.PaidAt = &now
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

	got, err := s.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.NotNil(t, got.PaidAt)
}

func TestMemoryOrderStore_UpdatePaymentRollsBackOnError(t *testing.T) {
	s := NewMemoryOrderStore()
	order := seedOrder(t, s)
	boom := errors.New("mutation rejected")

	_, err := s.UpdatePayment(context.Background(), order.ID, func(o *models.Order) error {
		o.PaymentStatus = models.PaymentStatusPaid
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, got.PaymentStatus)
}

func TestMemoryOrderStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryOrderStore()
	order := seedOrder(t, s)

	got, err := s.Get(context.Background(), order.ID)
	require.NoError(t, err)
	got.PaymentStatus = models.PaymentStatusFailed
	*got.PaymentIntentRef = "pi_tampered"

	fresh, err := s.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, fresh.PaymentStatus)
	assert.Equal(t, "pi_mem_1", fresh.IntentRef())
}
