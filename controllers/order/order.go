package orderControllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rami2212/digitex-backend/gateway"
	"github.com/rami2212/digitex-backend/models"
	"github.com/rami2212/digitex-backend/reservation"
)

// -------- Request Structs --------

type CheckoutRequest struct {
	PaymentMethod   string         `json:"payment_method" binding:"required"` // "cod" or "card"
	ShippingAddress models.Address `json:"shipping_address" binding:"required"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// -------- Helpers --------

func mapPaymentMethod(method string) (models.PaymentMethod, error) {
	switch models.PaymentMethod(method) {
	case models.PaymentMethodCOD:
		return models.PaymentMethodCOD, nil
	case models.PaymentMethodCard:
		return models.PaymentMethodCard, nil
	default:
		return "", errors.New("unsupported payment method")
	}
}

func mapOrderStatus(status string) (models.OrderStatus, error) {
	switch models.OrderStatus(status) {
	case models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusProcessing,
		models.OrderStatusShipped, models.OrderStatusDelivered, models.OrderStatusCancelled,
		models.OrderStatusFailed:
		return models.OrderStatus(status), nil
	default:
		return "", errors.New("invalid order status")
	}
}

// initialStatuses picks the state a new order starts in. Payment for COD is
// collected at delivery, so the order confirms immediately; a card order
// stays pending until the reconciliation engine hears from the gateway.
func initialStatuses(method models.PaymentMethod) (models.OrderStatus, models.PaymentStatus) {
	if method == models.PaymentMethodCOD {
		return models.OrderStatusConfirmed, models.PaymentStatusPending
	}
	return models.OrderStatusPending, models.PaymentStatusPending
}

func validateShippingAddress(a models.Address) error {
	if a.Country == "" || a.City == "" || a.Street == "" || a.PostalCode == "" {
		return errors.New("shipping address requires country, city, street and postal_code")
	}
	return nil
}

// Generate unique order reference
func generateOrderRef() string {
	return time.Now().Format("20060102150405") + "-" + uuid.NewString()
}

// orderView is the read-only projection served to clients: the order plus
// its reservation window, so the UI never computes expiry on its own.
func orderView(order *models.Order, now time.Time) gin.H {
	remaining := reservation.Remaining(order, now)
	return gin.H{
		"order":                 order,
		"reservation_expires":   reservation.ExpiresAt(order),
		"reservation_remaining": reservation.FormatRemaining(remaining),
		"is_reserved":           reservation.IsReserved(order, now),
	}
}

// -------- Core Logic --------

// Checkout creates an order from the user's cart. Stock is reserved
// (decremented) in the same transaction; the reservation clock governs when
// an unpaid order gives it back. COD orders confirm immediately, card orders
// stay pending until the reconciliation engine hears from the gateway.
func Checkout(db *gorm.DB, userID string, req CheckoutRequest) (*models.Order, error) {
	method, err := mapPaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if err := validateShippingAddress(req.ShippingAddress); err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := db.Preload("Items").Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, errors.New("cart is empty")
	}

	var order models.Order
	err = db.Transaction(func(tx *gorm.DB) error {
		var total int64
		var orderItems []models.OrderItem

		for _, item := range cart.Items {
			var product models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&product, "id = ?", item.ProductID).Error; err != nil {
				return err
			}

			if product.Stock < item.Quantity {
				return errors.New("insufficient stock for product: " + product.Name)
			}

			// Reserve stock
			product.Stock -= item.Quantity
			if err := tx.Save(&product).Error; err != nil {
				return err
			}

			total += product.PriceCents * int64(item.Quantity)
			orderItems = append(orderItems, models.OrderItem{
				ProductID:      product.ID,
				ProductName:    product.Name,
				ProductImage:   product.Image,
				UnitPriceCents: product.PriceCents,
				Quantity:       item.Quantity,
			})
		}

		status, paymentStatus := initialStatuses(method)

		order = models.Order{
			OrderRef:        generateOrderRef(),
			UserID:          userID,
			Items:           orderItems,
			TotalCents:      total,
			Currency:        "USD",
			Status:          status,
			PaymentStatus:   paymentStatus,
			PaymentMethod:   method,
			ShippingAddress: req.ShippingAddress,
			CreatedAt:       time.Now(),
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		// Clear cart items
		return tx.Where("cart_id = ?", cart.CartID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels a non-terminal, unpaid order and returns its stock.
// Any in-flight gateway intent is best-effort cancelled; late webhook
// evidence for it is handled by the engine's cancelled-order anomaly path.
func CancelOrder(ctx context.Context, db *gorm.DB, gw gateway.Gateway, orderID string, userID string) (*models.Order, error) {
	var order models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Items")
		if userID != "" {
			q = q.Where("user_id = ?", userID)
		}
		if err := q.First(&order, "id = ? OR order_ref = ?", orderID, orderID).Error; err != nil {
			return err
		}

		if order.PaymentStatus == models.PaymentStatusPaid {
			return errors.New("paid orders cannot be cancelled, request a refund instead")
		}
		if order.TerminalFulfillment() {
			return errors.New("order is already " + string(order.Status))
		}

		for _, item := range order.Items {
			if err := tx.Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
				return err
			}
		}

		order.Status = models.OrderStatusCancelled
		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, err
	}

	if ref := order.IntentRef(); ref != "" && gw != nil {
		if cerr := gw.CancelIntent(ctx, ref); cerr != nil {
			log.Printf("could not cancel intent %s for cancelled order %s: %v", ref, order.OrderRef, cerr)
		}
	}
	return &order, nil
}

// -------- Handlers --------

// POST /orders/checkout
func CheckoutHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDVal, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		order, err := Checkout(db, userIDVal.(string), req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, orderView(order, time.Now()))
	}
}

// GET /orders/:orderID
func GetOrderByIDHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("orderID")
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "orderID is required"})
			return
		}

		var order models.Order
		if err := db.
			Preload("Items").
			Where("id = ? OR order_ref = ?", id, id).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, orderView(&order, time.Now()))
	}
}

// GET /orders (admin)
func GetAllOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var orders []models.Order
		if err := db.
			Preload("User").
			Preload("Items").
			Order("created_at DESC").
			Find(&orders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

// GET /orders/user/:userID
func GetUserOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userID is required"})
			return
		}
		var orders []models.Order
		if err := db.
			Where("user_id = ?", userID).
			Preload("Items").
			Order("created_at DESC").
			Find(&orders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

// POST /orders/:orderID/cancel
func CancelOrderHandler(db *gorm.DB, gw gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDVal, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		order, err := CancelOrder(c.Request.Context(), db, gw, c.Param("orderID"), userIDVal.(string))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, orderView(order, time.Now()))
	}
}

// PUT /orders/:orderID/status (admin)
func UpdateOrderStatusHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("orderID")
		var req UpdateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		newStatus, err := mapOrderStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			var order models.Order
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&order, "id = ?", orderID).Error; err != nil {
				return err
			}

			// shipped -> delivered is the only transition out of a
			// terminal fulfillment state.
			if order.TerminalFulfillment() &&
				!(order.Status == models.OrderStatusShipped && newStatus == models.OrderStatusDelivered) {
				return errors.New("order is already " + string(order.Status))
			}

			order.Status = newStatus
			if newStatus == models.OrderStatusDelivered && order.DeliveredAt == nil {
				now := time.Now()
				order.DeliveredAt = &now
				// COD settles on delivery.
				if order.PaymentMethod == models.PaymentMethodCOD &&
					order.PaymentStatus == models.PaymentStatusPending {
					order.PaymentStatus = models.PaymentStatusPaid
					order.PaidAt = &now
				}
			}
			return tx.Save(&order).Error
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order status updated successfully"})
	}
}

// PUT /admin/orders/:orderID/payment-status
//
// The reconciliation engine owns every transition driven by gateway
// evidence; the only administrative move allowed here is paid -> refunded.
func UpdatePaymentStatusHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("orderID")
		var req UpdatePaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if models.PaymentStatus(req.PaymentStatus) != models.PaymentStatusRefunded {
			c.JSON(http.StatusBadRequest, gin.H{"error": "only refunds may be applied here"})
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			var order models.Order
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&order, "id = ?", orderID).Error; err != nil {
				return err
			}
			if order.PaymentStatus != models.PaymentStatusPaid {
				return errors.New("only paid orders can be refunded")
			}
			order.PaymentStatus = models.PaymentStatusRefunded
			return tx.Save(&order).Error
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Payment status updated successfully"})
	}
}
