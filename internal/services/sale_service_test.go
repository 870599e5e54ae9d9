package services

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/otomarket/backend/internal/audit"
)

func newSaleRouter(t *testing.T) (*chi.Mux, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	auditLogger := audit.NewLogger(nil)
	service := NewSaleService(db, NewCreditLedgerService(db), auditLogger)

	r := chi.NewRouter()
	r.Post("/admin/technical-services/{id}/sales", service.RecordSale)

	return r, mock, func() {
		auditLogger.Close()
		db.Close()
	}
}

func expectProductFetch(mock sqlmock.Sqlmock, id int64, name string, price int64, salePrice, costPrice any, stock int, margin any) {
	mock.ExpectQuery("SELECT p.id, p.name, p.price, p.sale_price, p.cost_price, p.stock_quantity, c.profit_margin").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "price", "sale_price", "cost_price", "stock_quantity", "profit_margin",
		}).AddRow(id, name, price, salePrice, costPrice, stock, margin))
}

func TestSaleService_RecordSale(t *testing.T) {
	router, mock, cleanup := newSaleRouter(t)
	defer cleanup()

	t.Run("unit price resolved from cost and category margin", func(t *testing.T) {
		// cost 1000 with 25% margin resolves to 1250 a piece
		expectProductFetch(mock, 10, "Brake Pads", 2000, nil, int64(1000), 4, 25.0)

		mock.ExpectBegin()
		expectAccountLock(mock, 1, 0, 50000, 1)
		mock.ExpectQuery("SELECT name, stock_quantity FROM products").
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "stock_quantity"}).AddRow("Brake Pads", 4))
		mock.ExpectExec("UPDATE products SET stock_quantity = stock_quantity - \\$1").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("INSERT INTO credit_sales").
			WithArgs(int64(1), int64(10), "Brake Pads", 2, int64(1250), int64(2500),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectExec("INSERT INTO technical_service_history").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE technical_services SET current_balance").
			WithArgs(int64(2500), sqlmock.AnyArg(), int64(1), 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		rec := postJSON(router, "/admin/technical-services/1/sales", map[string]any{
			"product_id": 10,
			"quantity":   2,
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
		var body SaleResult
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, int64(2500), body.TotalAmount)
		assert.Equal(t, int64(2500), body.NewBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("operator pinned price wins over the resolved one", func(t *testing.T) {
		expectProductFetch(mock, 10, "Brake Pads", 2000, nil, int64(1000), 4, 25.0)

		mock.ExpectBegin()
		expectAccountLock(mock, 1, 0, 50000, 1)
		mock.ExpectQuery("SELECT name, stock_quantity FROM products").
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "stock_quantity"}).AddRow("Brake Pads", 4))
		mock.ExpectExec("UPDATE products SET stock_quantity = stock_quantity - \\$1").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("INSERT INTO credit_sales").
			WithArgs(int64(1), int64(10), "Brake Pads", 1, int64(999), int64(999),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectExec("INSERT INTO technical_service_history").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE technical_services SET current_balance").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		rec := postJSON(router, "/admin/technical-services/1/sales", map[string]any{
			"product_id": 10,
			"quantity":   1,
			"unit_price": 999,
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown product returns 422", func(t *testing.T) {
		mock.ExpectQuery("SELECT p.id, p.name, p.price, p.sale_price, p.cost_price, p.stock_quantity, c.profit_margin").
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "price", "sale_price", "cost_price", "stock_quantity", "profit_margin",
			}))

		rec := postJSON(router, "/admin/technical-services/1/sales", map[string]any{
			"product_id": 404,
			"quantity":   1,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "product-not-found", body.Reason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty cart returns 400", func(t *testing.T) {
		rec := postJSON(router, "/admin/technical-services/1/sales", map[string]any{
			"notes": "nothing here",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
