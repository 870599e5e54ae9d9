package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/otomarket/backend/internal/audit"
)

func newTransactionRouter(t *testing.T) (*chi.Mux, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	auditLogger := audit.NewLogger(nil)
	service := NewTransactionService(db, NewCreditLedgerService(db), auditLogger)

	r := chi.NewRouter()
	r.Post("/admin/technical-services/{id}/transactions", service.RecordTransaction)
	r.Get("/admin/technical-services/{id}/transactions", service.ListTransactions)

	return r, mock, func() {
		auditLogger.Close()
		db.Close()
	}
}

func postJSON(router http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTransactionService_RecordTransaction(t *testing.T) {
	router, mock, cleanup := newTransactionRouter(t)
	defer cleanup()

	t.Run("payment returns 201 with balance movement", func(t *testing.T) {
		mock.ExpectBegin()
		expectAccountLock(mock, 1, 10000, 50000, 3)
		mock.ExpectQuery("INSERT INTO credit_transactions").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectExec("INSERT INTO technical_service_history").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE technical_services SET current_balance").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		rec := postJSON(router, "/admin/technical-services/1/transactions", map[string]any{
			"transaction_type": "payment",
			"amount":           4000,
			"payment_method":   "cash",
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
		var body TransactionResult
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, int64(10000), body.PreviousBalance)
		assert.Equal(t, int64(6000), body.NewBalance)
		assert.Equal(t, "payment", body.Transaction.TransactionType)
		assert.NotEmpty(t, body.Transaction.ReferenceNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("overpayment returns 422", func(t *testing.T) {
		mock.ExpectBegin()
		expectAccountLock(mock, 1, 1000, 50000, 3)
		mock.ExpectRollback()

		rec := postJSON(router, "/admin/technical-services/1/transactions", map[string]any{
			"transaction_type": "payment",
			"amount":           5000,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "overpayment", body.Reason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("limit breach returns 409 with confirmation flag", func(t *testing.T) {
		mock.ExpectBegin()
		expectAccountLock(mock, 1, 5000, 10000, 2)
		mock.ExpectRollback()

		rec := postJSON(router, "/admin/technical-services/1/transactions", map[string]any{
			"transaction_type": "adjustment",
			"amount":           20000,
		})

		assert.Equal(t, http.StatusConflict, rec.Code)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["requires_confirmation"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown transaction type returns 400", func(t *testing.T) {
		rec := postJSON(router, "/admin/technical-services/1/transactions", map[string]any{
			"transaction_type": "refund",
			"amount":           100,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		rec := postJSON(router, "/admin/technical-services/1/transactions", map[string]any{
			"transaction_type": "payment",
			"amount":           100,
			"surprise":         true,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-numeric account id returns 400", func(t *testing.T) {
		rec := postJSON(router, "/admin/technical-services/abc/transactions", map[string]any{
			"transaction_type": "payment",
			"amount":           100,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTransactionService_ListTransactions(t *testing.T) {
	router, mock, cleanup := newTransactionRouter(t)
	defer cleanup()

	t.Run("returns rows newest first", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, technical_service_id, transaction_type, amount").
			WithArgs(int64(1), 50).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "technical_service_id", "transaction_type", "amount", "description",
				"reference_number", "payment_method", "created_by", "created_at",
			}).
				AddRow(2, 1, "adjustment", 3000, "", "ADJ-11112222", "", "admin", time.Now()).
				AddRow(1, 1, "payment", -4000, "Weekly payment", "PAY-AB12CD34", "cash", "admin", time.Now().Add(-time.Hour)))

		req := httptest.NewRequest(http.MethodGet, "/admin/technical-services/1/transactions", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
