package services

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/otomarket/backend/internal/models"
)

// DashboardService aggregates the numbers the back-office landing page shows.
type DashboardService struct {
	db *sql.DB
}

func NewDashboardService(db *sql.DB) *DashboardService {
	return &DashboardService{db: db}
}

// DashboardStats is the admin landing page payload
// @Description Aggregated store statistics
type DashboardStats struct {
	TotalProducts     int              `json:"total_products"`
	TotalOrders       int              `json:"total_orders"`
	PendingOrders     int              `json:"pending_orders"`
	TotalRevenue      int64            `json:"total_revenue"`
	TodayRevenue      int64            `json:"today_revenue"`
	OutstandingCredit int64            `json:"outstanding_credit"`
	ActiveAccounts    int              `json:"active_accounts"`
	LowStockProducts  []models.Product `json:"low_stock_products"`
	RecentOrders      []models.Order   `json:"recent_orders"`
}

// GetStats serves dashboard statistics
// @Summary Dashboard statistics
// @Description Product, order, revenue and credit totals plus low-stock and recent-order lists
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DashboardStats
// @Failure 500 {object} ErrorResponse
// @Router /admin/dashboard [get]
func (ds *DashboardService) GetStats(w http.ResponseWriter, r *http.Request) {
	var stats DashboardStats

	err := ds.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM products WHERE is_active = TRUE),
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM orders WHERE status = 'pending'),
			(SELECT COALESCE(SUM(total), 0) FROM orders WHERE status != 'cancelled'),
			(SELECT COALESCE(SUM(total), 0) FROM orders WHERE status != 'cancelled' AND created_at >= CURRENT_DATE),
			(SELECT COALESCE(SUM(current_balance), 0) FROM technical_services WHERE is_active = TRUE),
			(SELECT COUNT(*) FROM technical_services WHERE is_active = TRUE)`).
		Scan(&stats.TotalProducts, &stats.TotalOrders, &stats.PendingOrders,
			&stats.TotalRevenue, &stats.TodayRevenue, &stats.OutstandingCredit, &stats.ActiveAccounts)
	if err != nil {
		log.Printf("[DASHBOARD] Stats query failed: %v", err)
		SendErrorResponse(w, "Failed to fetch dashboard stats", http.StatusInternalServerError, nil)
		return
	}

	lowStock, err := ds.fetchLowStock()
	if err != nil {
		log.Printf("[DASHBOARD] Low stock query failed: %v", err)
		SendErrorResponse(w, "Failed to fetch dashboard stats", http.StatusInternalServerError, nil)
		return
	}
	stats.LowStockProducts = lowStock

	recent, err := ds.fetchRecentOrders()
	if err != nil {
		log.Printf("[DASHBOARD] Recent orders query failed: %v", err)
		SendErrorResponse(w, "Failed to fetch dashboard stats", http.StatusInternalServerError, nil)
		return
	}
	stats.RecentOrders = recent

	SendJSON(w, http.StatusOK, stats)
}

func (ds *DashboardService) fetchLowStock() ([]models.Product, error) {
	rows, err := ds.db.Query(`SELECT ` + productColumns + ` FROM products
		WHERE is_active = TRUE AND stock_quantity <= low_stock_threshold
		ORDER BY stock_quantity ASC
		LIMIT 10`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	return products, rows.Err()
}

func (ds *DashboardService) fetchRecentOrders() ([]models.Order, error) {
	rows, err := ds.db.Query(`
		SELECT id, order_number, customer_name, customer_email, customer_phone,
		       shipping_address, shipping_city, shipping_postal_code, subtotal, tax,
		       shipping_cost, total, status, payment_method, payment_status, notes,
		       created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT 5`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerEmail,
			&o.CustomerPhone, &o.ShippingAddress, &o.ShippingCity, &o.ShippingPostalCode,
			&o.Subtotal, &o.Tax, &o.ShippingCost, &o.Total, &o.Status, &o.PaymentMethod,
			&o.PaymentStatus, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
