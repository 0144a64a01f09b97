package userControllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rami2212/digitex-backend/models"
	"github.com/rami2212/digitex-backend/reservation"
)

type UpdateUserInput struct {
	Name    *string         `json:"name"`
	Phone   *string         `json:"phone"`
	Address *models.Address `json:"address"`
}

// adminUserRow is the storefront-side customer listing: contact data plus how
// much the customer has actually paid for, never unpaid totals.
type adminUserRow struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	OrderCount    int64     `json:"order_count"`
	LifetimeCents int64     `json:"lifetime_cents"`
	CreatedAt     time.Time `json:"created_at"`
}

// GET /user
//
// Profile plus the orders a customer actually acts on: anything not yet
// delivered or cancelled, each with its reservation window so the UI can
// show "reserved for Nh Nm" without computing expiry itself.
func GetUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		var user models.User
		if err := db.Preload("Cart.Items").First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		var open []models.Order
		if err := db.
			Where("user_id = ?", user.ID).
			Where("status NOT IN ?", []models.OrderStatus{
				models.OrderStatusDelivered,
				models.OrderStatusCancelled,
			}).
			Preload("Items").
			Order("created_at DESC").
			Find(&open).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}

		now := time.Now()
		openViews := make([]gin.H, 0, len(open))
		for i := range open {
			o := &open[i]
			view := gin.H{
				"order_ref":      o.OrderRef,
				"status":         o.Status,
				"payment_status": o.PaymentStatus,
				"total_cents":    o.TotalCents,
				"created_at":     o.CreatedAt,
			}
			if o.PaymentStatus != models.PaymentStatusPaid {
				view["reservation_remaining"] = reservation.FormatRemaining(reservation.Remaining(o, now))
				view["is_reserved"] = reservation.IsReserved(o, now)
			}
			openViews = append(openViews, view)
		}

		c.JSON(http.StatusOK, gin.H{
			"user":        user,
			"open_orders": openViews,
		})
	}
}

// GET /admin/users?page=N&page_size=M
func GetAllUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		if page < 1 {
			page = 1
		}
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
		if pageSize < 1 || pageSize > 200 {
			pageSize = 50
		}

		var rows []adminUserRow
		err := db.Model(&models.User{}).
			Select(`users.id, users.email, users.name, users.phone, users.created_at,
				COUNT(orders.id) AS order_count,
				COALESCE(SUM(orders.total_cents) FILTER (WHERE orders.payment_status = ?), 0) AS lifetime_cents`,
				models.PaymentStatusPaid).
			Joins("LEFT JOIN orders ON orders.user_id = users.id").
			Group("users.id").
			Order("users.created_at DESC").
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Scan(&rows).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"users":     rows,
			"page":      page,
			"page_size": pageSize,
		})
	}
}

// PUT /user
func UpdateUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		var user models.User

		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		var input UpdateUserInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		updates := make(map[string]interface{})
		if input.Name != nil {
			updates["name"] = *input.Name
		}
		if input.Phone != nil {
			updates["phone"] = *input.Phone
		}
		if input.Address != nil {
			updates["street"] = input.Address.Street
			updates["city"] = input.Address.City
			updates["state"] = input.Address.State
			updates["postal_code"] = input.Address.PostalCode
			updates["country"] = input.Address.Country
		}

		if len(updates) > 0 {
			if err := db.Model(&user).Updates(updates).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
				return
			}
		}

		c.JSON(http.StatusOK, user)
	}
}
