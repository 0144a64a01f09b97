package models

import "time"

type Cart struct {
	CartID    uint       `gorm:"primaryKey" json:"cart_id"`
	UserID    string     `gorm:"uniqueIndex" json:"user_id"` // one cart per user
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CartID          uint      `gorm:"index" json:"cart_id"`
	ProductID       uint      `json:"product_id"`
	ProductName     string    `json:"product_name"`
	ProductImage    string    `json:"product_image"`
	ProductStock    int       `json:"product_stock"`
	UnitPriceCents  int64     `json:"unit_price_cents"`
	Quantity        int       `json:"quantity"`
	AddedAt         time.Time `json:"added_at"`
}
