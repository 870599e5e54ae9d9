package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/otomarket/backend/internal/audit"
	"github.com/otomarket/backend/internal/middleware"
	"github.com/otomarket/backend/internal/models"
)

// AccountService manages technical-service accounts and serves the merged
// history feed. Accounts are never hard-deleted: delete deactivates the row
// and the audit trail stays append-only.
type AccountService struct {
	db        *sql.DB
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB, auditLogger *audit.Logger) *AccountService {
	return &AccountService{
		db:        db,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

type accountRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person" validate:"max=180"`
	Phone         string `json:"phone" validate:"max=32"`
	Email         string `json:"email" validate:"omitempty,email"`
	Address       string `json:"address" validate:"max=500"`
	TaxNumber     string `json:"tax_number" validate:"max=20"`
	CreditLimit   int64  `json:"credit_limit" validate:"gte=0"`
	IsActive      *bool  `json:"is_active"`
}

const accountColumns = `id, name, contact_person, phone, email, address, tax_number,
	credit_limit, current_balance, version, is_active, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.TechnicalService, error) {
	var a models.TechnicalService
	err := row.Scan(&a.ID, &a.Name, &a.ContactPerson, &a.Phone, &a.Email, &a.Address,
		&a.TaxNumber, &a.CreditLimit, &a.CurrentBalance, &a.Version, &a.IsActive,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAccounts lists all technical services
// @Summary List technical services
// @Tags technical-services
// @Produce json
// @Success 200 {array} models.TechnicalService
// @Failure 500 {object} ErrorResponse
// @Router /admin/technical-services [get]
func (as *AccountService) ListAccounts(w http.ResponseWriter, r *http.Request) {
	rows, err := as.db.Query(`SELECT ` + accountColumns + ` FROM technical_services ORDER BY name`)
	if err != nil {
		log.Printf("[ACCOUNT] List failed: %v", err)
		SendErrorResponse(w, "Failed to fetch technical services", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	accounts := []models.TechnicalService{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			SendErrorResponse(w, "Failed to fetch technical services", http.StatusInternalServerError, nil)
			return
		}
		accounts = append(accounts, *account)
	}
	SendJSON(w, http.StatusOK, accounts)
}

// GetAccount fetches one technical service
// @Summary Get a technical service
// @Tags technical-services
// @Produce json
// @Param id path int true "Technical service ID"
// @Success 200 {object} models.TechnicalService
// @Failure 404 {object} ErrorResponse
// @Router /admin/technical-services/{id} [get]
func (as *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid technical service id", http.StatusBadRequest, nil)
		return
	}

	account, err := scanAccount(as.db.QueryRow(
		`SELECT `+accountColumns+` FROM technical_services WHERE id = $1`, accountID))
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Technical service not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Get %d failed: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch technical service", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, account)
}

// CreateAccount creates a technical service
// @Summary Create a technical service
// @Tags technical-services
// @Accept json
// @Produce json
// @Param account body accountRequest true "Account data"
// @Success 201 {object} models.TechnicalService
// @Failure 400 {object} ErrorResponse
// @Router /admin/technical-services [post]
func (as *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	operator := middleware.Operator(r.Context())
	tx, err := as.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to create technical service", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	account, err := scanAccount(tx.QueryRow(`
		INSERT INTO technical_services
		(name, contact_person, phone, email, address, tax_number, credit_limit, current_balance, version, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, TRUE)
		RETURNING `+accountColumns,
		req.Name, req.ContactPerson, req.Phone, req.Email, req.Address, req.TaxNumber, req.CreditLimit))
	if err != nil {
		log.Printf("[ACCOUNT] Create failed: %v", err)
		SendErrorResponse(w, "Failed to create technical service", http.StatusInternalServerError, nil)
		return
	}

	if err := as.writeLifecycleHistory(tx, account, models.ActionCreated,
		fmt.Sprintf("Account created: %s", account.Name), operator); err != nil {
		log.Printf("[ACCOUNT] History write failed: %v", err)
		SendErrorResponse(w, "Failed to create technical service", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to create technical service", http.StatusInternalServerError, nil)
		return
	}

	as.audit.LogOperation("ACCOUNT_CREATE", fmt.Sprintf("technical service %d (%s) by %s", account.ID, account.Name, operator))
	SendJSON(w, http.StatusCreated, account)
}

// UpdateAccount updates a technical service
// @Summary Update a technical service
// @Tags technical-services
// @Accept json
// @Produce json
// @Param id path int true "Technical service ID"
// @Param account body accountRequest true "Account data"
// @Success 200 {object} models.TechnicalService
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/technical-services/{id} [put]
func (as *AccountService) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid technical service id", http.StatusBadRequest, nil)
		return
	}

	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	operator := middleware.Operator(r.Context())
	tx, err := as.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to update technical service", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	account, err := scanAccount(tx.QueryRow(`
		UPDATE technical_services
		SET name = $1, contact_person = $2, phone = $3, email = $4, address = $5,
		    tax_number = $6, credit_limit = $7, is_active = $8, updated_at = $9
		WHERE id = $10
		RETURNING `+accountColumns,
		req.Name, req.ContactPerson, req.Phone, req.Email, req.Address,
		req.TaxNumber, req.CreditLimit, isActive, time.Now(), accountID))
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Technical service not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Update %d failed: %v", accountID, err)
		SendErrorResponse(w, "Failed to update technical service", http.StatusInternalServerError, nil)
		return
	}

	if err := as.writeLifecycleHistory(tx, account, models.ActionUpdated,
		fmt.Sprintf("Account updated: %s", account.Name), operator); err != nil {
		SendErrorResponse(w, "Failed to update technical service", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to update technical service", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, account)
}

// DeleteAccount deactivates a technical service. The row and its history
// survive; the audit trail is append-only.
// @Summary Deactivate a technical service
// @Tags technical-services
// @Produce json
// @Param id path int true "Technical service ID"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} ErrorResponse
// @Router /admin/technical-services/{id} [delete]
func (as *AccountService) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid technical service id", http.StatusBadRequest, nil)
		return
	}

	operator := middleware.Operator(r.Context())
	tx, err := as.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to delete technical service", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	account, err := scanAccount(tx.QueryRow(`
		UPDATE technical_services
		SET is_active = FALSE, updated_at = $1
		WHERE id = $2
		RETURNING `+accountColumns, time.Now(), accountID))
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Technical service not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Delete %d failed: %v", accountID, err)
		SendErrorResponse(w, "Failed to delete technical service", http.StatusInternalServerError, nil)
		return
	}

	if err := as.writeLifecycleHistory(tx, account, models.ActionDeleted,
		fmt.Sprintf("Account deactivated: %s", account.Name), operator); err != nil {
		SendErrorResponse(w, "Failed to delete technical service", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to delete technical service", http.StatusInternalServerError, nil)
		return
	}

	as.audit.LogOperation("ACCOUNT_DEACTIVATE", fmt.Sprintf("technical service %d by %s", accountID, operator))
	SendJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetHistory serves the merged account feed
// @Summary Account history
// @Description Merged transaction and sale feed for a technical service, newest first
// @Tags technical-services
// @Produce json
// @Param id path int true "Technical service ID"
// @Param type query string false "Filter: all, transactions or sales"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {array} models.HistoryEntry
// @Failure 500 {object} ErrorResponse
// @Router /admin/technical-services/{id}/history [get]
func (as *AccountService) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid technical service id", http.StatusBadRequest, nil)
		return
	}

	filterType := r.URL.Query().Get("type")
	from, to, err := parseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		SendErrorResponse(w, "Invalid date filter", http.StatusBadRequest, nil)
		return
	}

	entries := []models.HistoryEntry{}

	if filterType == "" || filterType == "all" || filterType == "transactions" {
		historyRows, err := as.fetchHistoryRows(accountID)
		if err != nil {
			log.Printf("[ACCOUNT] History fetch failed for %d: %v", accountID, err)
			SendErrorResponse(w, "Failed to fetch history", http.StatusInternalServerError, nil)
			return
		}
		entries = append(entries, lo.Map(historyRows, func(h models.AccountHistory, _ int) models.HistoryEntry {
			prev, next := h.PreviousBalance, h.NewBalance
			return models.HistoryEntry{
				EntryType:       "transaction",
				ID:              h.ID,
				ActionType:      h.ActionType,
				Description:     h.Description,
				Amount:          h.Amount,
				PreviousBalance: &prev,
				NewBalance:      &next,
				Reference:       h.Reference,
				CreatedBy:       h.CreatedBy,
				CreatedAt:       h.CreatedAt,
			}
		})...)
	}

	if filterType == "" || filterType == "all" || filterType == "sales" {
		saleRows, err := as.fetchSaleRows(accountID)
		if err != nil {
			log.Printf("[ACCOUNT] Sales fetch failed for %d: %v", accountID, err)
			SendErrorResponse(w, "Failed to fetch history", http.StatusInternalServerError, nil)
			return
		}
		entries = append(entries, lo.Map(saleRows, func(s models.CreditSale, _ int) models.HistoryEntry {
			return models.HistoryEntry{
				EntryType:   "sale",
				ID:          s.ID,
				Description: s.Notes,
				Amount:      s.TotalAmount,
				ProductName: s.ProductName,
				Quantity:    s.Quantity,
				UnitPrice:   s.UnitPrice,
				CreatedBy:   s.CreatedBy,
				CreatedAt:   s.CreatedAt,
			}
		})...)
	}

	entries = lo.Filter(entries, func(e models.HistoryEntry, _ int) bool {
		if from != nil && e.CreatedAt.Before(*from) {
			return false
		}
		if to != nil && !e.CreatedAt.Before(*to) {
			return false
		}
		return true
	})

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	SendJSON(w, http.StatusOK, entries)
}

// fetchHistoryRows reads the audit trail minus credit_sale rows; those are
// bookkeeping for sale lines the feed already surfaces from credit_sales,
// and including both would show every sale twice.
func (as *AccountService) fetchHistoryRows(accountID int64) ([]models.AccountHistory, error) {
	rows, err := as.db.Query(`
		SELECT id, technical_service_id, action_type, description, amount,
		       previous_balance, new_balance, reference, created_by, created_at
		FROM technical_service_history
		WHERE technical_service_id = $1 AND action_type <> 'credit_sale'
		ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.AccountHistory{}
	for rows.Next() {
		var h models.AccountHistory
		if err := rows.Scan(&h.ID, &h.TechnicalServiceID, &h.ActionType, &h.Description,
			&h.Amount, &h.PreviousBalance, &h.NewBalance, &h.Reference, &h.CreatedBy, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (as *AccountService) fetchSaleRows(accountID int64) ([]models.CreditSale, error) {
	rows, err := as.db.Query(`
		SELECT id, technical_service_id, product_id, product_name, quantity,
		       unit_price, total_amount, sale_date, notes, created_by, created_at
		FROM credit_sales
		WHERE technical_service_id = $1
		ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := []models.CreditSale{}
	for rows.Next() {
		var s models.CreditSale
		if err := rows.Scan(&s.ID, &s.TechnicalServiceID, &s.ProductID, &s.ProductName,
			&s.Quantity, &s.UnitPrice, &s.TotalAmount, &s.SaleDate, &s.Notes,
			&s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (as *AccountService) writeLifecycleHistory(tx *sql.Tx, account *models.TechnicalService, action, description, operator string) error {
	_, err := tx.Exec(`
		INSERT INTO technical_service_history
		(technical_service_id, action_type, description, amount, previous_balance, new_balance, reference, created_by, created_at)
		VALUES ($1, $2, $3, 0, $4, $4, '', $5, $6)`,
		account.ID, action, description, account.CurrentBalance, operator, time.Now())
	return err
}

func parseDateRange(fromStr, toStr string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromStr != "" {
		t, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return nil, nil, err
		}
		// inclusive end date
		t = t.AddDate(0, 0, 1)
		to = &t
	}
	return from, to, nil
}
