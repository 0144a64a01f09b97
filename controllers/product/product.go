package productcontroller

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rami2212/digitex-backend/models"
)

func uploadDir() string {
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		return dir
	}
	return "/var/www/digitex/uploads"
}

// parseLaptopForm reads the shared create/update form fields.
func parseLaptopForm(c *gin.Context, p *models.Product) error {
	if v := c.PostForm("name"); v != "" {
		p.Name = v
	}
	if v := c.PostForm("brand"); v != "" {
		p.Brand = v
	}
	if v := c.PostForm("model"); v != "" {
		p.Model = v
	}
	if v := c.PostForm("description"); v != "" {
		p.Description = v
	}
	if v := c.PostForm("cpu"); v != "" {
		p.CPU = v
	}
	if v := c.PostForm("gpu"); v != "" {
		p.GPU = v
	}
	if v := c.PostForm("ram_gb"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ram_gb")
		}
		p.RAMGB = n
	}
	if v := c.PostForm("storage_gb"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid storage_gb")
		}
		p.StorageGB = n
	}
	if v := c.PostForm("screen_inches"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid screen_inches")
		}
		p.ScreenInches = f
	}
	if v := c.PostForm("price_cents"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid price_cents")
		}
		p.PriceCents = n
	}
	if v := c.PostForm("regular_price_cents"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid regular_price_cents")
		}
		p.RegularPriceCents = n
	}
	if v := c.PostForm("stock"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid stock")
		}
		p.Stock = n
	}
	return nil
}

func loadCategories(db *gorm.DB, csv string) ([]models.Category, error) {
	var categories []models.Category
	if csv == "" {
		return categories, nil
	}
	var ids []uint
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id64, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid category_ids format")
		}
		ids = append(ids, uint(id64))
	}
	if len(ids) == 0 {
		return categories, nil
	}
	if err := db.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func saveImage(c *gin.Context) (string, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return "", err
	}
	filename := strings.ReplaceAll(file.Filename, " ", "_")

	saveDir := filepath.Join(uploadDir(), "products")
	if err := os.MkdirAll(saveDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create upload folder: %v", err)
	}
	if err := c.SaveUploadedFile(file, filepath.Join(saveDir, filename)); err != nil {
		return "", fmt.Errorf("failed to save image: %v", err)
	}
	return fmt.Sprintf("/uploads/products/%s", filename), nil
}

// CreateProduct creates a new laptop with categories + image upload.
func CreateProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var product models.Product
		if err := parseLaptopForm(c, &product); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if product.Name == "" || product.Brand == "" || product.PriceCents <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name, brand and price_cents are required"})
			return
		}

		categories, err := loadCategories(db, c.PostForm("category_ids"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		product.Categories = categories

		imageURL, err := saveImage(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image is required: " + err.Error()})
			return
		}
		product.Image = imageURL

		if err := db.Create(&product).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

// UpdateProduct updates fields present in the form; image is optional.
func UpdateProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var product models.Product
		if err := db.Preload("Categories").First(&product, "id = ?", c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}

		if err := parseLaptopForm(c, &product); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if csv := c.PostForm("category_ids"); csv != "" {
			categories, err := loadCategories(db, csv)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := db.Model(&product).Association("Categories").Replace(categories); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update categories"})
				return
			}
		}

		if _, err := c.FormFile("image"); err == nil {
			imageURL, err := saveImage(c)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			product.Image = imageURL
		}

		if err := db.Save(&product).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// DeleteProduct soft-deletes a laptop.
func DeleteProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Delete(&models.Product{}, "id = ?", c.Param("id")).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
	}
}
