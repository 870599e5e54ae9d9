package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/otomarket/backend/internal/ledger"
	"github.com/otomarket/backend/internal/models"
)

const maxCommitAttempts = 3

// CreditLedgerService owns every balance-mutating write. Each operation runs
// inside one database transaction: the account row is locked with FOR UPDATE,
// the delta is validated against the locked balance, ledger and history rows
// are inserted, and the balance is written back with an optimistic version
// check. Either everything commits or nothing does.
type CreditLedgerService struct {
	db *sql.DB
}

func NewCreditLedgerService(db *sql.DB) *CreditLedgerService {
	return &CreditLedgerService{db: db}
}

// TransactionMeta is the operator-entered context for a ledger transaction.
type TransactionMeta struct {
	Description     string
	ReferenceNumber string
	PaymentMethod   string
	CreatedBy       string
}

// SaleLine is one resolved cart line ready to commit.
type SaleLine struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   int64
	Notes       string
}

// Total is the line's contribution to the balance delta.
func (l SaleLine) Total() int64 { return int64(l.Quantity) * l.UnitPrice }

// TransactionResult reports a committed ledger transaction together with
// the balance movement it caused.
type TransactionResult struct {
	Transaction     models.CreditTransaction `json:"transaction"`
	PreviousBalance int64                    `json:"previous_balance"`
	NewBalance      int64                    `json:"new_balance"`
}

// SaleResult reports a committed credit sale.
type SaleResult struct {
	Sales           []models.CreditSale `json:"sales"`
	TotalAmount     int64               `json:"total_amount"`
	PreviousBalance int64               `json:"previous_balance"`
	NewBalance      int64               `json:"new_balance"`
}

type lockedAccount struct {
	ID          int64
	Name        string
	Balance     int64
	CreditLimit int64
	Version     int
}

// RecordTransaction commits one payment or adjustment. When the delta would
// push the balance over the credit limit and confirmed is false, nothing is
// written and a LimitExceededError is returned for the operator to confirm.
func (s *CreditLedgerService) RecordTransaction(ctx context.Context, accountID int64, delta ledger.Delta, meta TransactionMeta, confirmed bool) (*TransactionResult, error) {
	var result *TransactionResult
	err := s.withRetry(func() error {
		var err error
		result, err = s.recordTransactionOnce(ctx, accountID, delta, meta, confirmed)
		return err
	})
	return result, err
}

func (s *CreditLedgerService) recordTransactionOnce(ctx context.Context, accountID int64, delta ledger.Delta, meta TransactionMeta, confirmed bool) (*TransactionResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}

	if err := delta.Validate(account.Balance); err != nil {
		return nil, err
	}

	signed := delta.Signed(account.Balance)
	newBalance, limitExceeded := ledger.ApplyDelta(account.Balance, account.CreditLimit, signed)
	if limitExceeded && signed > 0 && !confirmed {
		return nil, &ledger.LimitExceededError{
			CurrentBalance: account.Balance,
			NewBalance:     newBalance,
			CreditLimit:    account.CreditLimit,
		}
	}

	row := models.CreditTransaction{
		TechnicalServiceID: accountID,
		TransactionType:    delta.TransactionType(),
		Amount:             signed,
		Description:        meta.Description,
		ReferenceNumber:    meta.ReferenceNumber,
		PaymentMethod:      meta.PaymentMethod,
		CreatedBy:          meta.CreatedBy,
		CreatedAt:          time.Now(),
	}
	if row.ID, err = s.insertTransaction(tx, &row); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	history := models.AccountHistory{
		TechnicalServiceID: accountID,
		ActionType:         delta.TransactionType(),
		Description:        meta.Description,
		Amount:             signed,
		PreviousBalance:    account.Balance,
		NewBalance:         newBalance,
		Reference:          meta.ReferenceNumber,
		CreatedBy:          meta.CreatedBy,
	}
	if err := s.insertHistory(tx, &history); err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}

	if err := s.updateAccountBalance(tx, accountID, newBalance, account.Version); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &TransactionResult{
		Transaction:     row,
		PreviousBalance: account.Balance,
		NewBalance:      newBalance,
	}, nil
}

// RecordSale commits a whole cart: per-line stock checks and decrements,
// one sale row and one history row per line, and a single balance update by
// the aggregate total. The credit-limit check runs once against the
// aggregate. Any failure rolls the whole cart back.
func (s *CreditLedgerService) RecordSale(ctx context.Context, accountID int64, lines []SaleLine, confirmed bool, createdBy string) (*SaleResult, error) {
	if len(lines) == 0 {
		return nil, &ledger.ValidationError{Reason: ledger.ReasonInvalidAmount, Message: "cart is empty"}
	}
	var result *SaleResult
	err := s.withRetry(func() error {
		var err error
		result, err = s.recordSaleOnce(ctx, accountID, lines, confirmed, createdBy)
		return err
	})
	return result, err
}

func (s *CreditLedgerService) recordSaleOnce(ctx context.Context, accountID int64, lines []SaleLine, confirmed bool, createdBy string) (*SaleResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}

	total := lo.SumBy(lines, func(l SaleLine) int64 { return l.Total() })
	newBalance, limitExceeded := ledger.ApplyDelta(account.Balance, account.CreditLimit, total)
	if limitExceeded && !confirmed {
		return nil, &ledger.LimitExceededError{
			CurrentBalance: account.Balance,
			NewBalance:     newBalance,
			CreditLimit:    account.CreditLimit,
		}
	}

	now := time.Now()
	result := &SaleResult{
		TotalAmount:     total,
		PreviousBalance: account.Balance,
		NewBalance:      newBalance,
	}

	running := account.Balance
	for _, line := range lines {
		if err := s.decrementStock(tx, line); err != nil {
			return nil, err
		}

		sale := models.CreditSale{
			TechnicalServiceID: accountID,
			ProductID:          line.ProductID,
			ProductName:        line.ProductName,
			Quantity:           line.Quantity,
			UnitPrice:          line.UnitPrice,
			TotalAmount:        line.Total(),
			SaleDate:           now,
			Notes:              line.Notes,
			CreatedBy:          createdBy,
			CreatedAt:          now,
		}
		if sale.ID, err = s.insertSale(tx, &sale); err != nil {
			return nil, fmt.Errorf("insert sale: %w", err)
		}

		history := models.AccountHistory{
			TechnicalServiceID: accountID,
			ActionType:         models.ActionCreditSale,
			Description:        fmt.Sprintf("Credit sale: %dx %s", line.Quantity, line.ProductName),
			Amount:             line.Total(),
			PreviousBalance:    running,
			NewBalance:         running + line.Total(),
			CreatedBy:          createdBy,
		}
		if err := s.insertHistory(tx, &history); err != nil {
			return nil, fmt.Errorf("insert history: %w", err)
		}

		running += line.Total()
		result.Sales = append(result.Sales, sale)
	}

	if err := s.updateAccountBalance(tx, accountID, newBalance, account.Version); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sale: %w", err)
	}
	return result, nil
}

// withRetry reruns the operation on lost optimistic-lock races. The FOR
// UPDATE row lock makes conflicts rare; the version check catches writers
// that bypass the lock.
func (s *CreditLedgerService) withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		if err = op(); !errors.Is(err, ledger.ErrVersionConflict) {
			return err
		}
	}
	return err
}

func (s *CreditLedgerService) lockAccount(tx *sql.Tx, accountID int64) (*lockedAccount, error) {
	var account lockedAccount
	err := tx.QueryRow(`
		SELECT id, name, current_balance, credit_limit, version
		FROM technical_services
		WHERE id = $1 AND is_active = TRUE
		FOR UPDATE`, accountID).
		Scan(&account.ID, &account.Name, &account.Balance, &account.CreditLimit, &account.Version)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock account %d: %w", accountID, err)
	}
	return &account, nil
}

func (s *CreditLedgerService) updateAccountBalance(tx *sql.Tx, accountID int64, newBalance int64, version int) error {
	result, err := tx.Exec(`
		UPDATE technical_services
		SET current_balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now(), accountID, version)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account %d: %w", accountID, ledger.ErrVersionConflict)
	}
	return nil
}

// decrementStock locks the product row, verifies availability and takes the
// quantity. A short row aborts the whole cart with a StockError.
func (s *CreditLedgerService) decrementStock(tx *sql.Tx, line SaleLine) error {
	var name string
	var stock int
	err := tx.QueryRow(`
		SELECT name, stock_quantity FROM products
		WHERE id = $1
		FOR UPDATE`, line.ProductID).Scan(&name, &stock)
	if err == sql.ErrNoRows {
		return &ledger.StockError{ProductID: line.ProductID, Requested: line.Quantity}
	}
	if err != nil {
		return fmt.Errorf("lock product %d: %w", line.ProductID, err)
	}

	if stock < line.Quantity {
		return &ledger.StockError{
			ProductID:   line.ProductID,
			ProductName: name,
			Requested:   line.Quantity,
			Available:   stock,
		}
	}

	_, err = tx.Exec(`
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = $2
		WHERE id = $3`,
		line.Quantity, time.Now(), line.ProductID)
	if err != nil {
		return fmt.Errorf("decrement stock for product %d: %w", line.ProductID, err)
	}
	return nil
}

func (s *CreditLedgerService) insertTransaction(tx *sql.Tx, row *models.CreditTransaction) (int64, error) {
	var id int64
	err := tx.QueryRow(`
		INSERT INTO credit_transactions
		(technical_service_id, transaction_type, amount, description, reference_number, payment_method, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		row.TechnicalServiceID, row.TransactionType, row.Amount, row.Description,
		row.ReferenceNumber, row.PaymentMethod, row.CreatedBy, row.CreatedAt).Scan(&id)
	return id, err
}

func (s *CreditLedgerService) insertSale(tx *sql.Tx, row *models.CreditSale) (int64, error) {
	var id int64
	err := tx.QueryRow(`
		INSERT INTO credit_sales
		(technical_service_id, product_id, product_name, quantity, unit_price, total_amount, sale_date, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		row.TechnicalServiceID, row.ProductID, row.ProductName, row.Quantity,
		row.UnitPrice, row.TotalAmount, row.SaleDate, row.Notes, row.CreatedBy, row.CreatedAt).Scan(&id)
	return id, err
}

func (s *CreditLedgerService) insertHistory(tx *sql.Tx, row *models.AccountHistory) error {
	_, err := tx.Exec(`
		INSERT INTO technical_service_history
		(technical_service_id, action_type, description, amount, previous_balance, new_balance, reference, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.TechnicalServiceID, row.ActionType, row.Description, row.Amount,
		row.PreviousBalance, row.NewBalance, row.Reference, row.CreatedBy, time.Now())
	return err
}
