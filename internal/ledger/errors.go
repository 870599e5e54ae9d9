package ledger

import (
	"errors"
	"fmt"
)

// ValidationError reasons.
const (
	ReasonInvalidAmount   = "invalid-amount"
	ReasonOverpayment     = "overpayment"
	ReasonNoOp            = "no-op"
	ReasonProductNotFound = "product-not-found"
)

// ValidationError is a policy-violating input rejected before any write.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Reason, e.Message)
}

// StockError aborts a whole cart when one line asks for more than is in
// stock.
type StockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.ProductName, e.Requested, e.Available)
}

// LimitExceededError is not a hard failure: the operation proceeds once the
// operator confirms it explicitly.
type LimitExceededError struct {
	CurrentBalance int64
	NewBalance     int64
	CreditLimit    int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("credit limit exceeded: new balance %d over limit %d", e.NewBalance, e.CreditLimit)
}

// ExceedAmount is how far over the limit the operation would land.
func (e *LimitExceededError) ExceedAmount() int64 { return e.NewBalance - e.CreditLimit }

// ErrVersionConflict reports a lost optimistic-lock race on the account
// balance; the caller may retry the whole operation.
var ErrVersionConflict = errors.New("account version conflict")

// ErrAccountNotFound reports a missing or inactive account.
var ErrAccountNotFound = errors.New("account not found")
