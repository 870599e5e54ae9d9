package services

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/otomarket/backend/internal/ledger"
)

func TestSendLedgerError(t *testing.T) {
	t.Run("validation error maps to 422", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendLedgerError(rec, &ledger.ValidationError{
			Reason:  ledger.ReasonOverpayment,
			Message: "payment exceeds outstanding balance",
		})

		assert.Equal(t, 422, rec.Code)
		var body ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, ledger.ReasonOverpayment, body.Reason)
	})

	t.Run("stock error maps to 409 with product info", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendLedgerError(rec, &ledger.StockError{
			ProductID:   10,
			ProductName: "Brake Pads",
			Requested:   5,
			Available:   2,
		})

		assert.Equal(t, 409, rec.Code)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "stock", body["reason"])
		assert.Equal(t, "Brake Pads", body["product_name"])
		assert.Equal(t, float64(2), body["available"])
	})

	t.Run("limit exceeded maps to 409 asking for confirmation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendLedgerError(rec, &ledger.LimitExceededError{
			CurrentBalance: 48000,
			NewBalance:     51800,
			CreditLimit:    50000,
		})

		assert.Equal(t, 409, rec.Code)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["requires_confirmation"])
		assert.Equal(t, float64(1800), body["exceed_amount"])
	})

	t.Run("missing account maps to 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendLedgerError(rec, ledger.ErrAccountNotFound)
		assert.Equal(t, 404, rec.Code)
	})

	t.Run("anything else maps to 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendLedgerError(rec, errors.New("connection reset"))
		assert.Equal(t, 500, rec.Code)
	})
}

func TestValidationHelper(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid request passes", func(t *testing.T) {
		req := transactionRequest{TransactionType: "payment", Amount: 100}
		assert.NoError(t, vh.ValidateStruct(&req))
	})

	t.Run("unknown transaction type fails", func(t *testing.T) {
		req := transactionRequest{TransactionType: "refund", Amount: 100}
		assert.Error(t, vh.ValidateStruct(&req))
	})
}
