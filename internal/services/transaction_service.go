package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/otomarket/backend/internal/audit"
	"github.com/otomarket/backend/internal/ledger"
	"github.com/otomarket/backend/internal/middleware"
	"github.com/otomarket/backend/internal/models"
)

const maxBodyBytes = 1_048_576 // 1 MB

// TransactionService exposes the operator endpoints for recording payments
// and balance adjustments against a technical-service account.
type TransactionService struct {
	db        *sql.DB
	ledger    *CreditLedgerService
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewTransactionService(db *sql.DB, ledgerService *CreditLedgerService, auditLogger *audit.Logger) *TransactionService {
	return &TransactionService{
		db:        db,
		ledger:    ledgerService,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

type transactionRequest struct {
	TransactionType string `json:"transaction_type" validate:"required,oneof=payment adjustment"`
	// Meaning depends on the type: for a payment this is the amount to pay
	// off; for an adjustment it is the target balance. Kurus.
	Amount          int64  `json:"amount"`
	Description     string `json:"description" validate:"max=500"`
	ReferenceNumber string `json:"reference_number" validate:"max=64"`
	PaymentMethod   string `json:"payment_method" validate:"max=32"`
	Confirm         bool   `json:"confirm"`
}

// RecordTransaction handles payment and adjustment creation
// @Summary Record a credit transaction
// @Description Record a payment or balance adjustment for a technical service
// @Tags technical-services
// @Accept json
// @Produce json
// @Param id path int true "Technical service ID"
// @Param transaction body transactionRequest true "Transaction data"
// @Success 201 {object} models.CreditTransaction
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} ErrorResponse
// @Router /admin/technical-services/{id}/transactions [post]
func (ts *TransactionService) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid technical service id", http.StatusBadRequest, nil)
		return
	}

	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var delta ledger.Delta
	switch req.TransactionType {
	case "payment":
		delta = ledger.PaymentOf(req.Amount)
	case "adjustment":
		delta = ledger.AdjustmentTo(req.Amount)
	}

	meta := TransactionMeta{
		Description:     req.Description,
		ReferenceNumber: req.ReferenceNumber,
		PaymentMethod:   req.PaymentMethod,
		CreatedBy:       middleware.Operator(r.Context()),
	}
	if meta.ReferenceNumber == "" {
		meta.ReferenceNumber = generateReference(req.TransactionType)
	}

	result, err := ts.ledger.RecordTransaction(r.Context(), accountID, delta, meta, req.Confirm)
	if err != nil {
		log.Printf("[TRANSACTION] Record failed for account %d: %v", accountID, err)
		ts.audit.LogError(accountID, meta.ReferenceNumber, err)
		SendLedgerError(w, err)
		return
	}

	created := result.Transaction
	ts.audit.LogTransaction(accountID, created.TransactionType, created.Amount,
		result.PreviousBalance, result.NewBalance, created.ReferenceNumber, created.CreatedBy)
	log.Printf("[TRANSACTION] Recorded %s of %d for account %d (ref %s)",
		created.TransactionType, created.Amount, accountID, created.ReferenceNumber)
	SendJSON(w, http.StatusCreated, result)
}

// ListTransactions retrieves an account's ledger entries
// @Summary List credit transactions
// @Description List ledger transactions for a technical service, newest first
// @Tags technical-services
// @Produce json
// @Param id path int true "Technical service ID"
// @Param limit query int false "Maximum rows (default 50, max 200)"
// @Success 200 {object} object{transactions=[]models.CreditTransaction,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /admin/technical-services/{id}/transactions [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
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

	rows, err := ts.db.Query(`
		SELECT id, technical_service_id, transaction_type, amount, description,
		       reference_number, payment_method, created_by, created_at
		FROM credit_transactions
		WHERE technical_service_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		log.Printf("[TRANSACTION] List failed for account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.CreditTransaction{}
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(&t.ID, &t.TechnicalServiceID, &t.TransactionType, &t.Amount,
			&t.Description, &t.ReferenceNumber, &t.PaymentMethod, &t.CreatedBy, &t.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, t)
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// decodeBody enforces the shared body rules: size cap, unknown fields
// rejected, exactly one JSON object.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBodyBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func generateReference(transactionType string) string {
	prefix := "TXN"
	switch transactionType {
	case "payment":
		prefix = "PAY"
	case "adjustment":
		prefix = "ADJ"
	}
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.NewString()[:8]))
}
