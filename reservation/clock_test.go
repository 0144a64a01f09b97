package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rami2212/digitex-backend/models"
)

func orderCreatedAt(t time.Time) *models.Order {
	return &models.Order{
		OrderRef:      "ord-2001",
		TotalCents:    50000,
		Status:        models.OrderStatusConfirmed,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodCOD,
		CreatedAt:     t,
	}
}

func TestExpiresAt(t *testing.T) {
	created := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	order := orderCreatedAt(created)
	assert.Equal(t, created.Add(24*time.Hour), ExpiresAt(order))
}

func TestRemaining_FullWindowAtCreation(t *testing.T) {
	created := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	order := orderCreatedAt(created)

	// A fresh COD order shows the full 24h hold.
	assert.Equal(t, 24*time.Hour, Remaining(order, created))
	assert.True(t, IsReserved(order, created))
}

func TestRemaining_ZeroAtExpiryAndClampedAfter(t *testing.T) {
	created := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	order := orderCreatedAt(created)

	assert.Equal(t, time.Duration(0), Remaining(order, created.Add(24*time.Hour)))
	assert.Equal(t, time.Duration(0), Remaining(order, created.Add(30*time.Hour)))
}

func TestIsReserved_FalseAfterExpiry(t *testing.T) {
	created := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	order := orderCreatedAt(created)

	assert.True(t, IsReserved(order, created.Add(24*time.Hour-time.Second)))
	assert.False(t, IsReserved(order, created.Add(24*time.Hour)))
	assert.False(t, IsReserved(order, created.Add(24*time.Hour+time.Second)))
}

func TestIsReserved_OrderOlderThanWindow(t *testing.T) {
	now := time.Now()
	order := orderCreatedAt(now.Add(-25 * time.Hour))
	assert.False(t, IsReserved(order, now))
	assert.Equal(t, time.Duration(0), Remaining(order, now))
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "23h 5m", FormatRemaining(23*time.Hour+5*time.Minute))
	assert.Equal(t, "24h 0m", FormatRemaining(24*time.Hour))
	assert.Equal(t, "0h 0m", FormatRemaining(0))
	// Sub-minute leftovers round for display.
	assert.Equal(t, "1h 0m", FormatRemaining(59*time.Minute+40*time.Second))
}
