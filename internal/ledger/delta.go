package ledger

// Delta is a ledger mutation expressed in the operator's terms. The operator
// enters a payment as "amount to pay off" and an adjustment as "target
// balance"; each variant owns its conversion to a signed balance delta and
// the validation that goes with it, so the sign convention never leaks into
// handlers.
type Delta interface {
	// Signed returns the signed balance delta for the current balance.
	// Positive increases what the customer owes, negative decreases it.
	Signed(currentBalance int64) int64
	// Validate rejects the delta before any row is written.
	Validate(currentBalance int64) error
	// TransactionType is the ledger row type this delta records as.
	TransactionType() string
}

// PaymentOf is the customer paying the given amount off their balance.
type PaymentOf int64

func (p PaymentOf) Signed(int64) int64 { return -int64(p) }

func (p PaymentOf) Validate(currentBalance int64) error {
	if p <= 0 {
		return &ValidationError{Reason: ReasonInvalidAmount, Message: "payment amount must be positive"}
	}
	if int64(p) > currentBalance {
		return &ValidationError{Reason: ReasonOverpayment, Message: "payment exceeds outstanding balance"}
	}
	return nil
}

func (PaymentOf) TransactionType() string { return "payment" }

// AdjustmentTo sets the balance to a target value; the recorded delta is
// the difference against the balance at commit time.
type AdjustmentTo int64

func (a AdjustmentTo) Signed(currentBalance int64) int64 { return int64(a) - currentBalance }

func (a AdjustmentTo) Validate(currentBalance int64) error {
	if int64(a) == currentBalance {
		return &ValidationError{Reason: ReasonNoOp, Message: "adjustment target equals current balance"}
	}
	return nil
}

func (AdjustmentTo) TransactionType() string { return "adjustment" }

// ApplyDelta computes the balance after delta and whether it breaches the
// credit limit. Pure; the caller decides whether to proceed. Negative
// balances (customer in credit) are allowed.
func ApplyDelta(currentBalance, creditLimit, delta int64) (newBalance int64, limitExceeded bool) {
	newBalance = currentBalance + delta
	return newBalance, newBalance > creditLimit
}
