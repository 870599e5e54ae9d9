package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentOf(t *testing.T) {
	t.Run("signed delta is negative", func(t *testing.T) {
		assert.Equal(t, int64(-5000), PaymentOf(5000).Signed(10000))
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		err := PaymentOf(0).Validate(10000)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonInvalidAmount, verr.Reason)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		err := PaymentOf(-100).Validate(10000)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonInvalidAmount, verr.Reason)
	})

	t.Run("overpayment rejected", func(t *testing.T) {
		err := PaymentOf(10001).Validate(10000)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonOverpayment, verr.Reason)
	})

	t.Run("full balance payment allowed", func(t *testing.T) {
		assert.NoError(t, PaymentOf(10000).Validate(10000))
	})
}

func TestAdjustmentTo(t *testing.T) {
	t.Run("delta is target minus current", func(t *testing.T) {
		assert.Equal(t, int64(-50000), AdjustmentTo(50000).Signed(100000))
		assert.Equal(t, int64(30000), AdjustmentTo(30000).Signed(0))
	})

	t.Run("no-op adjustment rejected", func(t *testing.T) {
		err := AdjustmentTo(10000).Validate(10000)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonNoOp, verr.Reason)
	})

	t.Run("adjustment below zero allowed", func(t *testing.T) {
		assert.NoError(t, AdjustmentTo(-500).Validate(10000))
		assert.Equal(t, int64(-10500), AdjustmentTo(-500).Signed(10000))
	})
}

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name          string
		balance       int64
		limit         int64
		delta         int64
		wantBalance   int64
		wantExceeded  bool
	}{
		{"within limit", 0, 100000, 100000, 100000, false},
		{"over limit", 100000, 100000, 5000, 105000, true},
		{"payment never exceeds", 100000, 100000, -5000, 95000, false},
		{"negative balance allowed", 0, 100000, -2500, -2500, false},
		{"exactly at limit", 50000, 100000, 50000, 100000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, exceeded := ApplyDelta(tt.balance, tt.limit, tt.delta)
			assert.Equal(t, tt.wantBalance, got)
			assert.Equal(t, tt.wantExceeded, exceeded)
		})
	}
}
