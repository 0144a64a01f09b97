package routes

import (
	"github.com/gin-gonic/gin"

	paymentControllers "github.com/rami2212/digitex-backend/controllers/payment"
	"github.com/rami2212/digitex-backend/middleware"
	"github.com/rami2212/digitex-backend/reconcile"
	"github.com/rami2212/digitex-backend/store"
)

func SetupPaymentRoutes(r *gin.Engine, st store.OrderStore, engine *reconcile.Engine) {
	payment := r.Group("/payment")
	{
		// Card flow (JWT-protected)
		payment.POST("/orders/:orderID/start", middleware.ValidateToken, paymentControllers.StartCardPaymentHandler(engine))
		payment.POST("/confirm", middleware.ValidateToken, paymentControllers.ConfirmPaymentHandler(engine))
		payment.GET("/orders/:orderID/status", middleware.ValidateToken, paymentControllers.PaymentStatusHandler(st))
		payment.GET("/orders/:orderID/wait", middleware.ValidateToken, paymentControllers.WaitForPaymentHandler(st, engine))

		// Webhook endpoint: middleware handles sandbox/prod verification
		payment.POST("/webhook",
			middleware.WebhookAuth(),
			paymentControllers.WebhookHandler(st, engine),
		)
	}
}
