package models

import "time"

type OrderStatus string
type PaymentStatus string
type PaymentMethod string

const (
	// Order statuses (fulfillment lifecycle)
	OrderStatusPending    OrderStatus = "pending"    // Order placed, awaiting payment/confirmation
	OrderStatusConfirmed  OrderStatus = "confirmed"  // Payment settled or COD accepted
	OrderStatusProcessing OrderStatus = "processing" // Being packed
	OrderStatusShipped    OrderStatus = "shipped"    // Out for delivery
	OrderStatusDelivered  OrderStatus = "delivered"  // Customer received the item
	OrderStatusCancelled  OrderStatus = "cancelled"  // Cancelled before shipping
	OrderStatusFailed     OrderStatus = "failed"     // Could not be fulfilled

	// Payment statuses
	PaymentStatusPending    PaymentStatus = "pending"    // Payment not started yet
	PaymentStatusProcessing PaymentStatus = "processing" // Card flow in progress at the gateway
	PaymentStatusPaid       PaymentStatus = "paid"       // Payment completed successfully
	PaymentStatusFailed     PaymentStatus = "failed"     // Payment attempt failed, retryable
	PaymentStatusRefunded   PaymentStatus = "refunded"   // Money returned to customer

	// Payment methods
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodCard PaymentMethod = "card"
)

type Order struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	OrderRef         string        `gorm:"uniqueIndex;not null" json:"order_ref"`
	UserID           string        `gorm:"not null;index" json:"user_id"`
	User             User          `gorm:"foreignKey:UserID" json:"user"`
	Items            []OrderItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalCents       int64         `json:"total_cents"`
	Currency         string        `gorm:"type:VARCHAR(3);default:'USD'" json:"currency"`
	Status           OrderStatus   `gorm:"type:VARCHAR(20);default:'pending'" json:"status"`
	PaymentStatus    PaymentStatus `gorm:"type:VARCHAR(20);default:'pending'" json:"payment_status"`
	PaymentMethod    PaymentMethod `gorm:"type:VARCHAR(10);not null" json:"payment_method"`
	PaymentIntentRef *string       `gorm:"index" json:"payment_intent_ref,omitempty"` // active gateway intent, replaced on retry
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	DeliveredAt      *time.Time    `json:"delivered_at,omitempty"`
	ShippingAddress  Address       `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// OrderItem is a snapshot of a cart line at checkout; immutable once created.
type OrderItem struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	OrderID        uint   `gorm:"index" json:"order_id"`
	ProductID      uint   `json:"product_id"`
	ProductName    string `json:"product_name"`
	ProductImage   string `json:"product_image"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// TerminalFulfillment reports whether the fulfillment state accepts no further
// transitions. Shipped still allows shipped -> delivered.
func (o *Order) TerminalFulfillment() bool {
	switch o.Status {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IntentRef returns the active payment intent reference, or "" if none.
func (o *Order) IntentRef() string {
	if o.PaymentIntentRef == nil {
		return ""
	}
	return *o.PaymentIntentRef
}

// Terminal reports whether the payment status is one polling can stop on.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}
