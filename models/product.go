package models

import (
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID                uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string         `gorm:"not null" json:"name"`
	Brand             string         `gorm:"not null;index" json:"brand"` // e.g. "Lenovo", "ASUS"
	Model             string         `json:"model"`
	Description       string         `json:"description"`
	CPU               string         `json:"cpu"`
	RAMGB             int            `json:"ram_gb"`
	StorageGB         int            `json:"storage_gb"`
	GPU               string         `json:"gpu"`
	ScreenInches      float64        `json:"screen_inches"`
	PriceCents        int64          `gorm:"not null" json:"price_cents"`
	RegularPriceCents int64          `json:"regular_price_cents"`
	Image             string         `json:"image"`
	Stock             int            `json:"stock"`
	Categories        []Category     `gorm:"many2many:product_categories;" json:"categories"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}
