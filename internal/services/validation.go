package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/otomarket/backend/internal/ledger"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Reason  string            `json:"reason,omitempty"`  // Machine-readable reason
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendJSON writes a JSON body with the given status.
func SendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// SendLedgerError maps domain errors onto HTTP responses. A credit-limit
// breach is a 409 asking for operator confirmation, not a failure.
func SendLedgerError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		SendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  verr.Message,
			Reason: verr.Reason,
		})
		return
	}

	var serr *ledger.StockError
	if errors.As(err, &serr) {
		SendJSON(w, http.StatusConflict, map[string]any{
			"error":        "insufficient stock",
			"reason":       "stock",
			"product_id":   serr.ProductID,
			"product_name": serr.ProductName,
			"requested":    serr.Requested,
			"available":    serr.Available,
		})
		return
	}

	var lerr *ledger.LimitExceededError
	if errors.As(err, &lerr) {
		SendJSON(w, http.StatusConflict, map[string]any{
			"error":                 "credit limit exceeded",
			"reason":                "limit-exceeded",
			"requires_confirmation": true,
			"current_balance":       lerr.CurrentBalance,
			"new_balance":           lerr.NewBalance,
			"credit_limit":          lerr.CreditLimit,
			"exceed_amount":         lerr.ExceedAmount(),
		})
		return
	}

	if errors.Is(err, ledger.ErrAccountNotFound) {
		SendJSON(w, http.StatusNotFound, ErrorResponse{Error: "technical service not found"})
		return
	}

	log.Printf("[LEDGER] storage error: %v", err)
	SendJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to process operation"})
}
