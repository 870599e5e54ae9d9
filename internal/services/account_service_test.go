package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/otomarket/backend/internal/audit"
	"github.com/otomarket/backend/internal/models"
)

func newAccountRouter(t *testing.T) (*chi.Mux, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	auditLogger := audit.NewLogger(nil)
	service := NewAccountService(db, auditLogger)

	r := chi.NewRouter()
	r.Get("/admin/technical-services/{id}/history", service.GetHistory)
	r.Delete("/admin/technical-services/{id}", service.DeleteAccount)

	return r, mock, func() {
		auditLogger.Close()
		db.Close()
	}
}

var historyColumns = []string{
	"id", "technical_service_id", "action_type", "description", "amount",
	"previous_balance", "new_balance", "reference", "created_by", "created_at",
}

var saleColumns = []string{
	"id", "technical_service_id", "product_id", "product_name", "quantity",
	"unit_price", "total_amount", "sale_date", "notes", "created_by", "created_at",
}

func TestAccountService_GetHistory(t *testing.T) {
	router, mock, cleanup := newAccountRouter(t)
	defer cleanup()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	t.Run("merged feed is newest first across both sources", func(t *testing.T) {
		mock.ExpectQuery("FROM technical_service_history").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(historyColumns).
				AddRow(3, 1, "payment", "Weekly payment", -4000, 10000, 6000, "PAY-AB12CD34", "admin", now.Add(-1*time.Hour)).
				AddRow(1, 1, "created", "Account created: Usta Oto Servis", 0, 0, 0, "", "admin", now.Add(-48*time.Hour)))

		mock.ExpectQuery("FROM credit_sales").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(saleColumns).
				AddRow(7, 1, 10, "Brake Pads", 2, 1500, 3000, now.Add(-2*time.Hour), "Credit sale: Brake Pads", "admin", now.Add(-2*time.Hour)))

		req := httptest.NewRequest(http.MethodGet, "/admin/technical-services/1/history", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var entries []models.HistoryEntry
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		assert.Len(t, entries, 3)
		assert.Equal(t, "transaction", entries[0].EntryType)
		assert.Equal(t, "payment", entries[0].ActionType)
		assert.Equal(t, "sale", entries[1].EntryType)
		assert.Equal(t, "Brake Pads", entries[1].ProductName)
		assert.Equal(t, "created", entries[2].ActionType)
		assert.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))
		assert.True(t, entries[1].CreatedAt.After(entries[2].CreatedAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sale lines surface once, not as transaction and sale", func(t *testing.T) {
		// RecordSale mirrors every sale line into the history table, so the
		// feed's transaction side has to leave those rows out or each sale
		// shows up twice.
		mock.ExpectQuery(`FROM technical_service_history WHERE technical_service_id = \$1 AND action_type <> 'credit_sale'`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(historyColumns).
				AddRow(3, 1, "payment", "Weekly payment", -4000, 10000, 6000, "PAY-AB12CD34", "admin", now.Add(-1*time.Hour)))

		mock.ExpectQuery("FROM credit_sales").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(saleColumns).
				AddRow(7, 1, 10, "Brake Pads", 2, 1500, 3000, now.Add(-2*time.Hour), "Credit sale: Brake Pads", "admin", now.Add(-2*time.Hour)))

		req := httptest.NewRequest(http.MethodGet, "/admin/technical-services/1/history", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var entries []models.HistoryEntry
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		assert.Len(t, entries, 2)
		sales := 0
		for _, e := range entries {
			if e.EntryType == "sale" {
				sales++
			}
			assert.NotEqual(t, "credit_sale", e.ActionType)
		}
		assert.Equal(t, 1, sales)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transactions filter does not relabel sales", func(t *testing.T) {
		mock.ExpectQuery(`FROM technical_service_history WHERE technical_service_id = \$1 AND action_type <> 'credit_sale'`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(historyColumns).
				AddRow(3, 1, "payment", "Weekly payment", -4000, 10000, 6000, "PAY-AB12CD34", "admin", now))

		req := httptest.NewRequest(http.MethodGet, "/admin/technical-services/1/history?type=transactions", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var entries []models.HistoryEntry
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		assert.Len(t, entries, 1)
		assert.Equal(t, "transaction", entries[0].EntryType)
		assert.Equal(t, "payment", entries[0].ActionType)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sales filter skips the transaction query", func(t *testing.T) {
		mock.ExpectQuery("FROM credit_sales").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(saleColumns).
				AddRow(7, 1, 10, "Brake Pads", 2, 1500, 3000, now, "", "admin", now))

		req := httptest.NewRequest(http.MethodGet, "/admin/technical-services/1/history?type=sales", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var entries []models.HistoryEntry
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		assert.Len(t, entries, 1)
		assert.Equal(t, "sale", entries[0].EntryType)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("date range excludes rows outside it", func(t *testing.T) {
		mock.ExpectQuery("FROM technical_service_history").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(historyColumns).
				AddRow(3, 1, "payment", "", -4000, 10000, 6000, "", "admin", time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC)).
				AddRow(2, 1, "adjustment", "", 2000, 8000, 10000, "", "admin", time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)))

		mock.ExpectQuery("FROM credit_sales").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(saleColumns))

		req := httptest.NewRequest(http.MethodGet,
			"/admin/technical-services/1/history?from=2026-08-15&to=2026-08-19", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var entries []models.HistoryEntry
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		assert.Len(t, entries, 1)
		assert.Equal(t, "payment", entries[0].ActionType)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed date returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/technical-services/1/history?from=last-week", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAccountService_DeleteAccount(t *testing.T) {
	router, mock, cleanup := newAccountRouter(t)
	defer cleanup()

	t.Run("delete deactivates and writes a history row", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE technical_services").
			WithArgs(sqlmock.AnyArg(), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "contact_person", "phone", "email", "address", "tax_number",
				"credit_limit", "current_balance", "version", "is_active", "created_at", "updated_at",
			}).AddRow(1, "Usta Oto Servis", "", "", "", "", "", 50000, 12000, 4, false, time.Now(), time.Now()))
		mock.ExpectExec("INSERT INTO technical_service_history").
			WithArgs(int64(1), "deleted", "Account deactivated: Usta Oto Servis",
				int64(12000), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		req := httptest.NewRequest(http.MethodDelete, "/admin/technical-services/1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account returns 404", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE technical_services").
			WithArgs(sqlmock.AnyArg(), int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		req := httptest.NewRequest(http.MethodDelete, "/admin/technical-services/42", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
