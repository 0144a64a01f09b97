package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rami2212/digitex-backend/gateway"
	"github.com/rami2212/digitex-backend/notify"
	"github.com/rami2212/digitex-backend/reconcile"
	"github.com/rami2212/digitex-backend/store"
)

// SetupRoutes is the single entry-point wiring up all route groups.
func SetupRoutes(r *gin.Engine, db *gorm.DB, st store.OrderStore, engine *reconcile.Engine, gw gateway.Gateway, hub *notify.Hub) {
	// Public auth routes (no middleware)
	SetupAuthRoutes(r, db)

	// User routes (JWT-protected)
	SetupUserRoutes(r, db)

	// Admin routes (API-key-protected)
	SetupAdminRoutes(r, db)

	// Order routes
	SetupOrderRoutes(r, db, gw, hub)

	// Payment routes (card flow + gateway webhook)
	SetupPaymentRoutes(r, st, engine)
}
