package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	orderControllers "github.com/rami2212/digitex-backend/controllers/order"
	"github.com/rami2212/digitex-backend/gateway"
	"github.com/rami2212/digitex-backend/middleware"
	"github.com/rami2212/digitex-backend/notify"
)

func SetupOrderRoutes(r *gin.Engine, db *gorm.DB, gw gateway.Gateway, hub *notify.Hub) {
	orders := r.Group("/orders")
	{
		// Checkout from the user's cart
		orders.POST("/checkout", middleware.ValidateToken, orderControllers.CheckoutHandler(db))

		// Cancel an unpaid order (returns stock)
		orders.POST("/:orderID/cancel", middleware.ValidateToken, orderControllers.CancelOrderHandler(db, gw))

		// Fetch a single order with its reservation window
		orders.GET("/:orderID", orderControllers.GetOrderByIDHandler(db))

		// Fetch orders for a specific user
		orders.GET("/user/:userID", middleware.ValidateToken, orderControllers.GetUserOrdersHandler(db))

		// Fetch all orders (admin)
		orders.GET("", middleware.ValidateAPIKey, orderControllers.GetAllOrdersHandler(db))

		// websocket endpoint for real-time order updates
		orders.GET("/ws", orderControllers.OrderWebSocketHandler(hub))

		// Update order status (admin; shipped, delivered, ...)
		orders.PUT("/:orderID/status", middleware.ValidateAPIKey, orderControllers.UpdateOrderStatusHandler(db))

		// Apply a refund (admin)
		orders.PUT("/:orderID/payment-status", middleware.ValidateAPIKey, orderControllers.UpdatePaymentStatusHandler(db))
	}
}
