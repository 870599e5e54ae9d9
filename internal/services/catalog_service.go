package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/otomarket/backend/internal/audit"
	"github.com/otomarket/backend/internal/models"
)

// CatalogService serves the public product catalog and the admin CRUD
// surface behind it.
type CatalogService struct {
	db        *sql.DB
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewCatalogService(db *sql.DB, auditLogger *audit.Logger) *CatalogService {
	return &CatalogService{
		db:        db,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

const categoryColumns = `id, name, slug, description, image_url, parent_id,
	display_order, profit_margin, is_active, created_at, updated_at`

const productColumns = `id, category_id, name, slug, description, short_description,
	sku, brand, cost_price, price, sale_price, stock_quantity, low_stock_threshold,
	image_url, is_featured, is_active, view_count, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.ParentID,
		&c.DisplayOrder, &c.ProfitMargin, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.ShortDescription,
		&p.SKU, &p.Brand, &p.CostPrice, &p.Price, &p.SalePrice, &p.StockQuantity,
		&p.LowStockThreshold, &p.ImageURL, &p.IsFeatured, &p.IsActive, &p.ViewCount,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListCategories lists active categories
// @Summary List categories
// @Tags catalog
// @Produce json
// @Success 200 {array} models.Category
// @Router /categories [get]
func (cs *CatalogService) ListCategories(w http.ResponseWriter, r *http.Request) {
	rows, err := cs.db.Query(`SELECT ` + categoryColumns + ` FROM categories
		WHERE is_active = TRUE ORDER BY display_order, name`)
	if err != nil {
		log.Printf("[CATALOG] Category list failed: %v", err)
		SendErrorResponse(w, "Failed to fetch categories", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			SendErrorResponse(w, "Failed to fetch categories", http.StatusInternalServerError, nil)
			return
		}
		categories = append(categories, *category)
	}
	SendJSON(w, http.StatusOK, categories)
}

// ListProducts lists active products with optional filters
// @Summary List products
// @Tags catalog
// @Produce json
// @Param category query string false "Category slug"
// @Param featured query bool false "Featured only"
// @Param search query string false "Name or brand search"
// @Success 200 {array} models.Product
// @Router /products [get]
func (cs *CatalogService) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active = TRUE`
	args := []any{}

	if categorySlug := r.URL.Query().Get("category"); categorySlug != "" {
		args = append(args, categorySlug)
		query += fmt.Sprintf(` AND category_id = (SELECT id FROM categories WHERE slug = $%d)`, len(args))
	}
	if r.URL.Query().Get("featured") == "true" {
		query += ` AND is_featured = TRUE`
	}
	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR brand ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := cs.db.Query(query, args...)
	if err != nil {
		log.Printf("[CATALOG] Product list failed: %v", err)
		SendErrorResponse(w, "Failed to fetch products", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			SendErrorResponse(w, "Failed to fetch products", http.StatusInternalServerError, nil)
			return
		}
		products = append(products, *product)
	}
	SendJSON(w, http.StatusOK, products)
}

// GetProduct fetches one product and bumps its view counter
// @Summary Get a product
// @Tags catalog
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} models.Product
// @Failure 404 {object} ErrorResponse
// @Router /products/{id} [get]
func (cs *CatalogService) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid product id", http.StatusBadRequest, nil)
		return
	}

	product, err := scanProduct(cs.db.QueryRow(
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND is_active = TRUE`, productID))
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Product not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CATALOG] Product %d fetch failed: %v", productID, err)
		SendErrorResponse(w, "Failed to fetch product", http.StatusInternalServerError, nil)
		return
	}

	// best-effort counter, not worth failing the read over
	if _, err := cs.db.Exec(`UPDATE products SET view_count = view_count + 1 WHERE id = $1`, productID); err != nil {
		log.Printf("[CATALOG] View count bump failed for %d: %v", productID, err)
	}
	SendJSON(w, http.StatusOK, product)
}

type categoryRequest struct {
	Name         string  `json:"name" validate:"required,max=200"`
	Slug         string  `json:"slug" validate:"required,max=200"`
	Description  string  `json:"description"`
	ImageURL     string  `json:"image_url"`
	ParentID     *int64  `json:"parent_id"`
	DisplayOrder int     `json:"display_order"`
	ProfitMargin float64 `json:"profit_margin" validate:"gte=0"`
	IsActive     *bool   `json:"is_active"`
}

// CreateCategory creates a category
// @Summary Create a category
// @Tags catalog-admin
// @Accept json
// @Produce json
// @Param category body categoryRequest true "Category data"
// @Success 201 {object} models.Category
// @Failure 400 {object} ErrorResponse
// @Router /admin/categories [post]
func (cs *CatalogService) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	category, err := scanCategory(cs.db.QueryRow(`
		INSERT INTO categories (name, slug, description, image_url, parent_id, display_order, profit_margin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+categoryColumns,
		req.Name, req.Slug, req.Description, req.ImageURL, req.ParentID,
		req.DisplayOrder, req.ProfitMargin, isActive))
	if err != nil {
		log.Printf("[CATALOG] Category create failed: %v", err)
		SendErrorResponse(w, "Failed to create category", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusCreated, category)
}

// UpdateCategory updates a category
// @Summary Update a category
// @Tags catalog-admin
// @Accept json
// @Produce json
// @Param id path int true "Category ID"
// @Param category body categoryRequest true "Category data"
// @Success 200 {object} models.Category
// @Failure 404 {object} ErrorResponse
// @Router /admin/categories/{id} [put]
func (cs *CatalogService) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid category id", http.StatusBadRequest, nil)
		return
	}

	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	category, err := scanCategory(cs.db.QueryRow(`
		UPDATE categories
		SET name = $1, slug = $2, description = $3, image_url = $4, parent_id = $5,
		    display_order = $6, profit_margin = $7, is_active = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING `+categoryColumns,
		req.Name, req.Slug, req.Description, req.ImageURL, req.ParentID,
		req.DisplayOrder, req.ProfitMargin, isActive, categoryID))
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Category not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CATALOG] Category %d update failed: %v", categoryID, err)
		SendErrorResponse(w, "Failed to update category", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, category)
}

type productRequest struct {
	CategoryID        *int64 `json:"category_id"`
	Name              string `json:"name" validate:"required,max=200"`
	Slug              string `json:"slug" validate:"required,max=200"`
	Description       string `json:"description"`
	ShortDescription  string `json:"short_description"`
	SKU               string `json:"sku" validate:"required,max=100"`
	Brand             string `json:"brand" validate:"max=100"`
	CostPrice         *int64 `json:"cost_price"`
	Price             int64  `json:"price" validate:"gte=0"`
	SalePrice         *int64 `json:"sale_price"`
	StockQuantity     int    `json:"stock_quantity" validate:"gte=0"`
	LowStockThreshold int    `json:"low_stock_threshold" validate:"gte=0"`
	ImageURL          string `json:"image_url"`
	IsFeatured        bool   `json:"is_featured"`
	IsActive          *bool  `json:"is_active"`
}

// CreateProduct creates a product
// @Summary Create a product
// @Tags catalog-admin
// @Accept json
// @Produce json
// @Param product body productRequest true "Product data"
// @Success 201 {object} models.Product
// @Failure 400 {object} ErrorResponse
// @Router /admin/products [post]
func (cs *CatalogService) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	threshold := req.LowStockThreshold
	if threshold == 0 {
		threshold = 5
	}

	product, err := scanProduct(cs.db.QueryRow(`
		INSERT INTO products
		(category_id, name, slug, description, short_description, sku, brand,
		 cost_price, price, sale_price, stock_quantity, low_stock_threshold,
		 image_url, is_featured, is_active, view_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 0)
		RETURNING `+productColumns,
		req.CategoryID, req.Name, req.Slug, req.Description, req.ShortDescription,
		req.SKU, req.Brand, req.CostPrice, req.Price, req.SalePrice,
		req.StockQuantity, threshold, req.ImageURL, req.IsFeatured, isActive))
	if err != nil {
		log.Printf("[CATALOG] Product create failed: %v", err)
		SendErrorResponse(w, "Failed to create product", http.StatusInternalServerError, nil)
		return
	}

	cs.audit.LogOperation("PRODUCT_CREATE", fmt.Sprintf("product %d (%s)", product.ID, product.Name))
	SendJSON(w, http.StatusCreated, product)
}

// UpdateProduct updates a product
// @Summary Update a product
// @Tags catalog-admin
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param product body productRequest true "Product data"
// @Success 200 {object} models.Product
// @Failure 404 {object} ErrorResponse
// @Router /admin/products/{id} [put]
func (cs *CatalogService) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid product id", http.StatusBadRequest, nil)
		return
	}

	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	product, err := scanProduct(cs.db.QueryRow(`
		UPDATE products
		SET category_id = $1, name = $2, slug = $3, description = $4, short_description = $5,
		    sku = $6, brand = $7, cost_price = $8, price = $9, sale_price = $10,
		    stock_quantity = $11, low_stock_threshold = $12, image_url = $13,
		    is_featured = $14, is_active = $15, updated_at = NOW()
		WHERE id = $16
		RETURNING `+productColumns,
		req.CategoryID, req.Name, req.Slug, req.Description, req.ShortDescription,
		req.SKU, req.Brand, req.CostPrice, req.Price, req.SalePrice,
		req.StockQuantity, req.LowStockThreshold, req.ImageURL, req.IsFeatured,
		isActive, productID))
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Product not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CATALOG] Product %d update failed: %v", productID, err)
		SendErrorResponse(w, "Failed to update product", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, product)
}

// DeleteProduct deactivates a product
// @Summary Deactivate a product
// @Tags catalog-admin
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} ErrorResponse
// @Router /admin/products/{id} [delete]
func (cs *CatalogService) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid product id", http.StatusBadRequest, nil)
		return
	}

	result, err := cs.db.Exec(`UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, productID)
	if err != nil {
		log.Printf("[CATALOG] Product %d delete failed: %v", productID, err)
		SendErrorResponse(w, "Failed to delete product", http.StatusInternalServerError, nil)
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		SendErrorResponse(w, "Product not found", http.StatusNotFound, nil)
		return
	}
	SendJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type stockRequest struct {
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Operation string `json:"operation" validate:"required,oneof=increase decrease"`
}

type stockResponse struct {
	ProductID     int64 `json:"product_id"`
	PreviousStock int   `json:"previous_stock"`
	NewStock      int   `json:"new_stock"`
}

// AdjustStock adjusts product stock
// @Summary Adjust product stock
// @Description Increases or decreases stock. Decrease below zero is rejected.
// @Tags catalog-admin
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param adjustment body stockRequest true "Stock adjustment"
// @Success 200 {object} stockResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/products/{id}/stock [put]
func (cs *CatalogService) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid product id", http.StatusBadRequest, nil)
		return
	}

	var req stockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := cs.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to adjust stock", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var previous int
	err = tx.QueryRow(`SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&previous)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Product not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CATALOG] Stock lock failed for %d: %v", productID, err)
		SendErrorResponse(w, "Failed to adjust stock", http.StatusInternalServerError, nil)
		return
	}

	next := previous + req.Quantity
	if req.Operation == "decrease" {
		next = previous - req.Quantity
		if next < 0 {
			SendErrorResponse(w, fmt.Sprintf("Insufficient stock: %d available, %d requested", previous, req.Quantity),
				http.StatusConflict, nil)
			return
		}
	}

	if _, err := tx.Exec(`UPDATE products SET stock_quantity = $1, updated_at = NOW() WHERE id = $2`,
		next, productID); err != nil {
		SendErrorResponse(w, "Failed to adjust stock", http.StatusInternalServerError, nil)
		return
	}
	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to adjust stock", http.StatusInternalServerError, nil)
		return
	}

	cs.audit.LogOperation("STOCK_ADJUST", fmt.Sprintf("product %d: %s %d (%d -> %d)",
		productID, req.Operation, req.Quantity, previous, next))
	SendJSON(w, http.StatusOK, stockResponse{ProductID: productID, PreviousStock: previous, NewStock: next})
}
