package models

import (
	"time"
)

// All monetary amounts are stored in kurus (minor units) as int64.

// TechnicalService is a business customer buying on account.
type TechnicalService struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name" validate:"required,max=200"`
	ContactPerson  string    `json:"contact_person" db:"contact_person" validate:"max=180"`
	Phone          string    `json:"phone" db:"phone" validate:"max=32"`
	Email          string    `json:"email" db:"email" validate:"omitempty,email"`
	Address        string    `json:"address" db:"address" validate:"max=500"`
	TaxNumber      string    `json:"tax_number" db:"tax_number" validate:"max=20"`
	CreditLimit    int64     `json:"credit_limit" db:"credit_limit" validate:"gte=0"`
	CurrentBalance int64     `json:"current_balance" db:"current_balance"`
	Version        int       `json:"version" db:"version"` // for optimistic locking
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// CreditTransaction is an immutable ledger entry. Amount carries the signed
// delta: negative for payments, either sign for adjustments.
type CreditTransaction struct {
	ID                 int64     `json:"id" db:"id"`
	TechnicalServiceID int64     `json:"technical_service_id" db:"technical_service_id"`
	TransactionType    string    `json:"transaction_type" db:"transaction_type"` // payment or adjustment
	Amount             int64     `json:"amount" db:"amount"`
	Description        string    `json:"description" db:"description"`
	ReferenceNumber    string    `json:"reference_number" db:"reference_number"`
	PaymentMethod      string    `json:"payment_method" db:"payment_method"`
	CreatedBy          string    `json:"created_by" db:"created_by"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// CreditSale is one cart line sold on account. Product name and unit price
// are snapshots taken at sale time.
type CreditSale struct {
	ID                 int64     `json:"id" db:"id"`
	TechnicalServiceID int64     `json:"technical_service_id" db:"technical_service_id"`
	ProductID          int64     `json:"product_id" db:"product_id"`
	ProductName        string    `json:"product_name" db:"product_name"`
	Quantity           int       `json:"quantity" db:"quantity"`
	UnitPrice          int64     `json:"unit_price" db:"unit_price"`
	TotalAmount        int64     `json:"total_amount" db:"total_amount"`
	SaleDate           time.Time `json:"sale_date" db:"sale_date"`
	Notes              string    `json:"notes" db:"notes"`
	CreatedBy          string    `json:"created_by" db:"created_by"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// History action types.
const (
	ActionCreated    = "created"
	ActionUpdated    = "updated"
	ActionDeleted    = "deleted"
	ActionPayment    = "payment"
	ActionAdjustment = "adjustment"
	ActionCreditSale = "credit_sale"
)

// AccountHistory is the append-only audit trail of an account. Rows are
// written alongside every transaction, sale line and account mutation and
// are never updated or deleted.
type AccountHistory struct {
	ID                 int64     `json:"id" db:"id"`
	TechnicalServiceID int64     `json:"technical_service_id" db:"technical_service_id"`
	ActionType         string    `json:"action_type" db:"action_type"`
	Description        string    `json:"description" db:"description"`
	Amount             int64     `json:"amount" db:"amount"`
	PreviousBalance    int64     `json:"previous_balance" db:"previous_balance"`
	NewBalance         int64     `json:"new_balance" db:"new_balance"`
	Reference          string    `json:"reference" db:"reference"`
	CreatedBy          string    `json:"created_by" db:"created_by"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// HistoryEntry is one element of the merged account feed. EntryType is
// "transaction" for audit-trail rows and "sale" for credit-sale lines.
type HistoryEntry struct {
	EntryType       string    `json:"entry_type"`
	ID              int64     `json:"id"`
	ActionType      string    `json:"action_type,omitempty"`
	Description     string    `json:"description"`
	Amount          int64     `json:"amount"`
	PreviousBalance *int64    `json:"previous_balance,omitempty"`
	NewBalance      *int64    `json:"new_balance,omitempty"`
	Reference       string    `json:"reference,omitempty"`
	ProductName     string    `json:"product_name,omitempty"`
	Quantity        int       `json:"quantity,omitempty"`
	UnitPrice       int64     `json:"unit_price,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
