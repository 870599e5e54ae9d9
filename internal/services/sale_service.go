package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/otomarket/backend/internal/audit"
	"github.com/otomarket/backend/internal/ledger"
	"github.com/otomarket/backend/internal/middleware"
	"github.com/otomarket/backend/internal/models"
)

// SaleService turns an operator's cart into credit-sale ledger rows. Unit
// prices are resolved server-side from cost price and category margin unless
// the operator pinned one.
type SaleService struct {
	db        *sql.DB
	ledger    *CreditLedgerService
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewSaleService(db *sql.DB, ledgerService *CreditLedgerService, auditLogger *audit.Logger) *SaleService {
	return &SaleService{
		db:        db,
		ledger:    ledgerService,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

type saleItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice *int64 `json:"unit_price" validate:"omitempty,gt=0"` // kurus; omit to resolve server-side
	Notes     string `json:"notes" validate:"max=500"`
}

type saleRequest struct {
	Items []saleItemRequest `json:"items" validate:"omitempty,max=100,dive"`

	// Single-line shape posted by the admin form; used when items is empty.
	ProductID int64  `json:"product_id" validate:"omitempty,gt=0"`
	Quantity  int    `json:"quantity" validate:"omitempty,gt=0"`
	UnitPrice *int64 `json:"unit_price" validate:"omitempty,gt=0"`

	Notes   string `json:"notes" validate:"max=500"`
	Confirm bool   `json:"confirm"`
}

// RecordSale handles credit sale creation
// @Summary Record a credit sale
// @Description Sell a cart of products on account; checks stock per line and the credit limit against the aggregate total
// @Tags technical-services
// @Accept json
// @Produce json
// @Param id path int true "Technical service ID"
// @Param sale body saleRequest true "Cart data"
// @Success 201 {object} SaleResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} ErrorResponse
// @Router /admin/technical-services/{id}/sales [post]
func (ss *SaleService) RecordSale(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid technical service id", http.StatusBadRequest, nil)
		return
	}

	var req saleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := ss.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	items := req.Items
	if len(items) == 0 && req.ProductID != 0 {
		items = []saleItemRequest{{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
			Notes:     req.Notes,
		}}
	}
	if len(items) == 0 {
		SendErrorResponse(w, "Cart is empty", http.StatusBadRequest, nil)
		return
	}

	lines, err := ss.resolveLines(items, req.Notes)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	operator := middleware.Operator(r.Context())
	result, err := ss.ledger.RecordSale(r.Context(), accountID, lines, req.Confirm, operator)
	if err != nil {
		log.Printf("[SALE] Record failed for account %d: %v", accountID, err)
		ss.audit.LogError(accountID, "", err)
		SendLedgerError(w, err)
		return
	}

	ss.audit.LogTransaction(accountID, models.ActionCreditSale, result.TotalAmount,
		result.PreviousBalance, result.NewBalance, "", operator)
	log.Printf("[SALE] Recorded %d line(s) totalling %d for account %d",
		len(result.Sales), result.TotalAmount, accountID)
	SendJSON(w, http.StatusCreated, result)
}

// ListSales retrieves an account's credit sales
// @Summary List credit sales
// @Description List credit sale lines for a technical service, newest first
// @Tags technical-services
// @Produce json
// @Param id path int true "Technical service ID"
// @Param limit query int false "Maximum rows (default 50, max 200)"
// @Success 200 {object} object{sales=[]models.CreditSale,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /admin/technical-services/{id}/sales [get]
func (ss *SaleService) ListSales(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid technical service id", http.StatusBadRequest, nil)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	rows, err := ss.db.Query(`
		SELECT id, technical_service_id, product_id, product_name, quantity,
		       unit_price, total_amount, sale_date, notes, created_by, created_at
		FROM credit_sales
		WHERE technical_service_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		log.Printf("[SALE] List failed for account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch sales", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	sales := []models.CreditSale{}
	for rows.Next() {
		var s models.CreditSale
		if err := rows.Scan(&s.ID, &s.TechnicalServiceID, &s.ProductID, &s.ProductName,
			&s.Quantity, &s.UnitPrice, &s.TotalAmount, &s.SaleDate, &s.Notes,
			&s.CreatedBy, &s.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch sales", http.StatusInternalServerError, nil)
			return
		}
		sales = append(sales, s)
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"sales": sales,
		"count": len(sales),
	})
}

// resolveLines loads each product with its category margin and settles the
// unit price. Stock is only pre-read here for the product name; the
// authoritative check happens under the row lock at commit time.
func (ss *SaleService) resolveLines(items []saleItemRequest, cartNotes string) ([]SaleLine, error) {
	lines := make([]SaleLine, 0, len(items))
	for _, item := range items {
		product, category, err := ss.fetchProductWithCategory(item.ProductID)
		if err != nil {
			return nil, err
		}

		unitPrice := ledger.ResolveUnitPrice(product, category)
		if item.UnitPrice != nil {
			unitPrice = *item.UnitPrice
		}

		notes := item.Notes
		if notes == "" {
			notes = cartNotes
		}
		if notes == "" {
			notes = fmt.Sprintf("Credit sale: %s", product.Name)
		}

		lines = append(lines, SaleLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			Notes:       notes,
		})
	}
	return lines, nil
}

func (ss *SaleService) fetchProductWithCategory(productID int64) (*models.Product, *models.Category, error) {
	var product models.Product
	var margin sql.NullFloat64
	err := ss.db.QueryRow(`
		SELECT p.id, p.name, p.price, p.sale_price, p.cost_price, p.stock_quantity, c.profit_margin
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1 AND p.is_active = TRUE`, productID).
		Scan(&product.ID, &product.Name, &product.Price, &product.SalePrice,
			&product.CostPrice, &product.StockQuantity, &margin)
	if err == sql.ErrNoRows {
		return nil, nil, &ledger.ValidationError{
			Reason:  ledger.ReasonProductNotFound,
			Message: fmt.Sprintf("product %d does not exist or is inactive", productID),
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("fetch product %d: %w", productID, err)
	}

	var category *models.Category
	if margin.Valid {
		category = &models.Category{ProfitMargin: margin.Float64}
	}
	return &product, category, nil
}
