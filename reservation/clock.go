package reservation

import (
	"fmt"
	"time"

	"github.com/rami2212/digitex-backend/models"
)

// Window is how long stock stays held for an unpaid order.
const Window = 24 * time.Hour

// ExpiresAt returns the end of the order's stock hold.
func ExpiresAt(order *models.Order) time.Time {
	return order.CreatedAt.Add(Window)
}

// IsReserved reports whether the stock hold is still valid at now. Expiry
// only governs unpaid orders; a paid order is never released by the clock,
// so validity must not be read off this function for paid orders.
func IsReserved(order *models.Order, now time.Time) bool {
	return now.Before(ExpiresAt(order))
}

// Remaining returns how much of the hold is left, clamped at zero.
func Remaining(order *models.Order, now time.Time) time.Duration {
	left := ExpiresAt(order).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// FormatRemaining renders the hold for display as whole hours and minutes,
// e.g. "23h 5m".
func FormatRemaining(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	return fmt.Sprintf("%dh %dm", h, m)
}
