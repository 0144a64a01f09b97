package adminController

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rami2212/digitex-backend/models"
)

// GET /admin/admins
//
// Store staff roster, split by approval so the dashboard can surface pending
// requests next to the active team. Per-status order counts give a rough
// picture of open work without a second round trip.
func GetAllAdmins(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var admins []models.Admin
		if err := db.Order("approved DESC, name ASC").Find(&admins).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch admins"})
			return
		}

		active := make([]models.Admin, 0, len(admins))
		pending := make([]models.Admin, 0)
		for _, a := range admins {
			if a.Approved {
				active = append(active, a)
			} else {
				pending = append(pending, a)
			}
		}

		var openOrders []struct {
			Status models.OrderStatus `json:"status"`
			Count  int64              `json:"count"`
		}
		if err := db.Model(&models.Order{}).
			Select("status, COUNT(*) AS count").
			Where("status IN ?", []models.OrderStatus{
				models.OrderStatusConfirmed,
				models.OrderStatusProcessing,
				models.OrderStatusShipped,
			}).
			Group("status").
			Scan(&openOrders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order counts"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"admins":           active,
			"pending_approval": pending,
			"open_orders":      openOrders,
			"as_of":            time.Now(),
		})
	}
}
