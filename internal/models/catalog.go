package models

import (
	"time"
)

type Category struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name" validate:"required,max=200"`
	Slug         string    `json:"slug" db:"slug" validate:"required,max=200"`
	Description  string    `json:"description" db:"description"`
	ImageURL     string    `json:"image_url" db:"image_url"`
	ParentID     *int64    `json:"parent_id" db:"parent_id"`
	DisplayOrder int       `json:"display_order" db:"display_order"`
	// Percentage applied on top of a product's cost price when selling on
	// account, e.g. 25 means cost * 1.25.
	ProfitMargin float64   `json:"profit_margin" db:"profit_margin" validate:"gte=0"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type Product struct {
	ID                int64     `json:"id" db:"id"`
	CategoryID        *int64    `json:"category_id" db:"category_id"`
	Name              string    `json:"name" db:"name" validate:"required,max=200"`
	Slug              string    `json:"slug" db:"slug" validate:"required,max=200"`
	Description       string    `json:"description" db:"description"`
	ShortDescription  string    `json:"short_description" db:"short_description"`
	SKU               string    `json:"sku" db:"sku" validate:"required,max=100"`
	Brand             string    `json:"brand" db:"brand" validate:"max=100"`
	CostPrice         *int64    `json:"cost_price" db:"cost_price"`
	Price             int64     `json:"price" db:"price" validate:"gte=0"`
	SalePrice         *int64    `json:"sale_price" db:"sale_price"`
	StockQuantity     int       `json:"stock_quantity" db:"stock_quantity" validate:"gte=0"`
	LowStockThreshold int       `json:"low_stock_threshold" db:"low_stock_threshold"`
	ImageURL          string    `json:"image_url" db:"image_url"`
	IsFeatured        bool      `json:"is_featured" db:"is_featured"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	ViewCount         int       `json:"view_count" db:"view_count"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
