package productcontroller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rami2212/digitex-backend/models"
)

// GetProducts lists laptops with optional brand/category/price filters and
// pagination.
func GetProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		if page < 1 {
			page = 1
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if limit < 1 || limit > 100 {
			limit = 20
		}

		q := db.Model(&models.Product{}).Preload("Categories")

		if brand := c.Query("brand"); brand != "" {
			q = q.Where("brand = ?", brand)
		}
		if categoryID := c.Query("category_id"); categoryID != "" {
			q = q.Joins("JOIN product_categories pc ON pc.product_id = products.id").
				Where("pc.category_id = ?", categoryID)
		}
		if minPrice := c.Query("min_price_cents"); minPrice != "" {
			q = q.Where("price_cents >= ?", minPrice)
		}
		if maxPrice := c.Query("max_price_cents"); maxPrice != "" {
			q = q.Where("price_cents <= ?", maxPrice)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count products"})
			return
		}

		var products []models.Product
		if err := q.Order("created_at DESC").
			Offset((page - 1) * limit).
			Limit(limit).
			Find(&products).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"products": products,
			"total":    total,
			"page":     page,
			"limit":    limit,
		})
	}
}

// GetProductByID returns one laptop with its categories.
func GetProductByID(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var product models.Product
		if err := db.Preload("Categories").First(&product, "id = ?", c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusOK, product)
	}
}
