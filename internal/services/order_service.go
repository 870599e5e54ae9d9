package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/viper"

	"github.com/otomarket/backend/internal/audit"
	"github.com/otomarket/backend/internal/models"
)

// OrderService handles storefront checkout and admin order management.
// Orders are the cash-facing side of the shop; credit sales to technical
// services go through SaleService instead.
type OrderService struct {
	db        *sql.DB
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewOrderService(db *sql.DB, auditLogger *audit.Logger) *OrderService {
	return &OrderService{
		db:        db,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

var orderStatuses = []string{"pending", "confirmed", "preparing", "shipped", "delivered", "cancelled"}

type orderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type orderRequest struct {
	CustomerName       string             `json:"customer_name" validate:"required,max=200"`
	CustomerEmail      string             `json:"customer_email" validate:"required,email"`
	CustomerPhone      string             `json:"customer_phone" validate:"max=32"`
	ShippingAddress    string             `json:"shipping_address" validate:"required"`
	ShippingCity       string             `json:"shipping_city" validate:"required,max=100"`
	ShippingPostalCode string             `json:"shipping_postal_code" validate:"max=16"`
	PaymentMethod      string             `json:"payment_method" validate:"required,oneof=cash_on_delivery bank_transfer card"`
	Notes              string             `json:"notes"`
	Items              []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type orderResponse struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// CreateOrder places a storefront order
// @Summary Place an order
// @Description Creates an order with its line items and decrements stock
// @Tags orders
// @Accept json
// @Produce json
// @Param order body orderRequest true "Order data"
// @Success 201 {object} orderResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders [post]
func (os *OrderService) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := os.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := os.db.BeginTx(r.Context(), nil)
	if err != nil {
		SendErrorResponse(w, "Failed to place order", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		var (
			name      string
			sku       string
			price     int64
			salePrice *int64
			stock     int
		)
		err := tx.QueryRow(`
			SELECT name, sku, price, sale_price, stock_quantity
			FROM products
			WHERE id = $1 AND is_active = TRUE
			FOR UPDATE`, line.ProductID).Scan(&name, &sku, &price, &salePrice, &stock)
		if err == sql.ErrNoRows {
			SendErrorResponse(w, fmt.Sprintf("Product %d not found", line.ProductID), http.StatusBadRequest, nil)
			return
		}
		if err != nil {
			log.Printf("[ORDER] Product lock failed for %d: %v", line.ProductID, err)
			SendErrorResponse(w, "Failed to place order", http.StatusInternalServerError, nil)
			return
		}
		if stock < line.Quantity {
			SendErrorResponse(w, fmt.Sprintf("Insufficient stock for %s: %d available, %d requested",
				name, stock, line.Quantity), http.StatusConflict, nil)
			return
		}

		unitPrice := price
		if salePrice != nil && *salePrice > 0 {
			unitPrice = *salePrice
		}
		if _, err := tx.Exec(`UPDATE products SET stock_quantity = stock_quantity - $1 WHERE id = $2`,
			line.Quantity, line.ProductID); err != nil {
			SendErrorResponse(w, "Failed to place order", http.StatusInternalServerError, nil)
			return
		}

		productID := line.ProductID
		items = append(items, models.OrderItem{
			ProductID:   &productID,
			ProductName: name,
			ProductSKU:  sku,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  unitPrice * int64(line.Quantity),
		})
	}

	subtotal := lo.SumBy(items, func(i models.OrderItem) int64 { return i.TotalPrice })
	tax := subtotal * 20 / 100
	var shippingCost int64
	if threshold := viper.GetInt64("orders.free_shipping_threshold"); subtotal < threshold {
		shippingCost = viper.GetInt64("orders.shipping_cost")
	}
	total := subtotal + tax + shippingCost

	orderNumber := "ORD-" + strings.ToUpper(uuid.NewString()[:8])

	var order models.Order
	err = tx.QueryRow(`
		INSERT INTO orders
		(order_number, customer_name, customer_email, customer_phone, shipping_address,
		 shipping_city, shipping_postal_code, subtotal, tax, shipping_cost, total,
		 status, payment_method, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'pending', $12, 'pending', $13)
		RETURNING id, order_number, customer_name, customer_email, customer_phone,
		          shipping_address, shipping_city, shipping_postal_code, subtotal, tax,
		          shipping_cost, total, status, payment_method, payment_status, notes,
		          created_at, updated_at`,
		orderNumber, req.CustomerName, req.CustomerEmail, req.CustomerPhone,
		req.ShippingAddress, req.ShippingCity, req.ShippingPostalCode,
		subtotal, tax, shippingCost, total, req.PaymentMethod, req.Notes).
		Scan(&order.ID, &order.OrderNumber, &order.CustomerName, &order.CustomerEmail,
			&order.CustomerPhone, &order.ShippingAddress, &order.ShippingCity,
			&order.ShippingPostalCode, &order.Subtotal, &order.Tax, &order.ShippingCost,
			&order.Total, &order.Status, &order.PaymentMethod, &order.PaymentStatus,
			&order.Notes, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		log.Printf("[ORDER] Insert failed: %v", err)
		SendErrorResponse(w, "Failed to place order", http.StatusInternalServerError, nil)
		return
	}

	for i := range items {
		items[i].OrderID = order.ID
		err := tx.QueryRow(`
			INSERT INTO order_items (order_id, product_id, product_name, product_sku, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			order.ID, items[i].ProductID, items[i].ProductName, items[i].ProductSKU,
			items[i].Quantity, items[i].UnitPrice, items[i].TotalPrice).
			Scan(&items[i].ID, &items[i].CreatedAt)
		if err != nil {
			log.Printf("[ORDER] Item insert failed: %v", err)
			SendErrorResponse(w, "Failed to place order", http.StatusInternalServerError, nil)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to place order", http.StatusInternalServerError, nil)
		return
	}

	os.audit.LogOperation("ORDER_CREATE", fmt.Sprintf("order %s total %d for %s", orderNumber, total, req.CustomerEmail))
	SendJSON(w, http.StatusCreated, orderResponse{Order: order, Items: items})
}

// ListOrders lists orders, newest first
// @Summary List orders
// @Tags orders
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {array} models.Order
// @Router /admin/orders [get]
func (os *OrderService) ListOrders(w http.ResponseWriter, r *http.Request) {
	query := `SELECT id, order_number, customer_name, customer_email, customer_phone,
		shipping_address, shipping_city, shipping_postal_code, subtotal, tax,
		shipping_cost, total, status, payment_method, payment_status, notes,
		created_at, updated_at FROM orders`
	args := []any{}
	if status := r.URL.Query().Get("status"); status != "" {
		if !lo.Contains(orderStatuses, status) {
			SendErrorResponse(w, "Unknown order status", http.StatusBadRequest, nil)
			return
		}
		args = append(args, status)
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := os.db.Query(query, args...)
	if err != nil {
		log.Printf("[ORDER] List failed: %v", err)
		SendErrorResponse(w, "Failed to fetch orders", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerEmail,
			&o.CustomerPhone, &o.ShippingAddress, &o.ShippingCity, &o.ShippingPostalCode,
			&o.Subtotal, &o.Tax, &o.ShippingCost, &o.Total, &o.Status, &o.PaymentMethod,
			&o.PaymentStatus, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch orders", http.StatusInternalServerError, nil)
			return
		}
		orders = append(orders, o)
	}
	SendJSON(w, http.StatusOK, orders)
}

// GetOrder fetches one order with its items
// @Summary Get an order
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} orderResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/orders/{id} [get]
func (os *OrderService) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid order id", http.StatusBadRequest, nil)
		return
	}

	var o models.Order
	err = os.db.QueryRow(`
		SELECT id, order_number, customer_name, customer_email, customer_phone,
		       shipping_address, shipping_city, shipping_postal_code, subtotal, tax,
		       shipping_cost, total, status, payment_method, payment_status, notes,
		       created_at, updated_at
		FROM orders WHERE id = $1`, orderID).
		Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
			&o.ShippingAddress, &o.ShippingCity, &o.ShippingPostalCode, &o.Subtotal,
			&o.Tax, &o.ShippingCost, &o.Total, &o.Status, &o.PaymentMethod,
			&o.PaymentStatus, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Order not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ORDER] Get %d failed: %v", orderID, err)
		SendErrorResponse(w, "Failed to fetch order", http.StatusInternalServerError, nil)
		return
	}

	rows, err := os.db.Query(`
		SELECT id, order_id, product_id, product_name, product_sku, quantity, unit_price, total_price, created_at
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch order", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.ProductSKU, &item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch order", http.StatusInternalServerError, nil)
			return
		}
		items = append(items, item)
	}
	SendJSON(w, http.StatusOK, orderResponse{Order: o, Items: items})
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed preparing shipped delivered cancelled"`
}

// UpdateOrderStatus moves an order through its lifecycle
// @Summary Update order status
// @Tags orders
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param status body orderStatusRequest true "New status"
// @Success 200 {object} models.Order
// @Failure 404 {object} ErrorResponse
// @Router /admin/orders/{id}/status [put]
func (os *OrderService) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid order id", http.StatusBadRequest, nil)
		return
	}

	var req orderStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := os.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var o models.Order
	err = os.db.QueryRow(`
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, order_number, customer_name, customer_email, customer_phone,
		          shipping_address, shipping_city, shipping_postal_code, subtotal, tax,
		          shipping_cost, total, status, payment_method, payment_status, notes,
		          created_at, updated_at`, req.Status, orderID).
		Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
			&o.ShippingAddress, &o.ShippingCity, &o.ShippingPostalCode, &o.Subtotal,
			&o.Tax, &o.ShippingCost, &o.Total, &o.Status, &o.PaymentMethod,
			&o.PaymentStatus, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Order not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ORDER] Status update %d failed: %v", orderID, err)
		SendErrorResponse(w, "Failed to update order", http.StatusInternalServerError, nil)
		return
	}

	os.audit.LogOperation("ORDER_STATUS", fmt.Sprintf("order %s -> %s", o.OrderNumber, o.Status))
	SendJSON(w, http.StatusOK, o)
}

// OrderTrackingQR renders a tracking QR code for an order
// @Summary Order tracking QR code
// @Description Returns a PNG QR code encoding the public tracking URL
// @Tags orders
// @Produce png
// @Param id path int true "Order ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /admin/orders/{id}/qr [get]
func (os *OrderService) OrderTrackingQR(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid order id", http.StatusBadRequest, nil)
		return
	}

	var orderNumber string
	err = os.db.QueryRow(`SELECT order_number FROM orders WHERE id = $1`, orderID).Scan(&orderNumber)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Order not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch order", http.StatusInternalServerError, nil)
		return
	}

	baseURL := viper.GetString("server.public_url")
	png, err := qrcode.Encode(fmt.Sprintf("%s/track/%s", baseURL, orderNumber), qrcode.Medium, 256)
	if err != nil {
		log.Printf("[ORDER] QR encode failed for %s: %v", orderNumber, err)
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
