package models

import (
	"time"
)

type Order struct {
	ID                 int64     `json:"id" db:"id"`
	OrderNumber        string    `json:"order_number" db:"order_number"`
	CustomerName       string    `json:"customer_name" db:"customer_name" validate:"required,max=200"`
	CustomerEmail      string    `json:"customer_email" db:"customer_email" validate:"required,email"`
	CustomerPhone      string    `json:"customer_phone" db:"customer_phone" validate:"max=32"`
	ShippingAddress    string    `json:"shipping_address" db:"shipping_address" validate:"required"`
	ShippingCity       string    `json:"shipping_city" db:"shipping_city" validate:"required,max=100"`
	ShippingPostalCode string    `json:"shipping_postal_code" db:"shipping_postal_code" validate:"max=16"`
	Subtotal           int64     `json:"subtotal" db:"subtotal"`
	Tax                int64     `json:"tax" db:"tax"`
	ShippingCost       int64     `json:"shipping_cost" db:"shipping_cost"`
	Total              int64     `json:"total" db:"total"`
	Status             string    `json:"status" db:"status"`
	PaymentMethod      string    `json:"payment_method" db:"payment_method"`
	PaymentStatus      string    `json:"payment_status" db:"payment_status"`
	Notes              string    `json:"notes" db:"notes"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

type OrderItem struct {
	ID          int64     `json:"id" db:"id"`
	OrderID     int64     `json:"order_id" db:"order_id"`
	ProductID   *int64    `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	ProductSKU  string    `json:"product_sku" db:"product_sku"`
	Quantity    int       `json:"quantity" db:"quantity"`
	UnitPrice   int64     `json:"unit_price" db:"unit_price"`
	TotalPrice  int64     `json:"total_price" db:"total_price"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
