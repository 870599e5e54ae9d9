package audit

import (
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestLogger_QueuesEvents(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.Regexp().ExpectRPush(queueKey, `.*"event_type":"payment".*`).SetVal(1)

	logger := NewLogger(rdb)
	logger.LogTransaction(42, "payment", -5000, 10000, 5000, "PAY-001", "admin")
	logger.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, int64(0), logger.DeadLetters())
}

func TestLogger_DeadLetterOnQueueFailure(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.Regexp().ExpectRPush(queueKey, `.*`).SetErr(assert.AnError)

	logger := NewLogger(rdb)
	logger.LogError(42, "PAY-002", assert.AnError)
	logger.Close()

	assert.Equal(t, int64(1), logger.DeadLetters())
}

func TestLogger_NoRedisFallsBackToLog(t *testing.T) {
	logger := NewLogger(nil)
	logger.LogOperation("STOCK_ADJUST", "product 7 +10")
	logger.Close()

	// Without a queue the event goes to plain log output and is not counted
	// as lost.
	assert.Equal(t, int64(0), logger.DeadLetters())
}

func TestLogger_RecordAfterCloseDoesNotPanic(t *testing.T) {
	logger := NewLogger(nil)
	logger.Close()

	// Late events from straggling handlers land in the dead-letter count
	// rather than hitting the closed channel.
	assert.NotPanics(t, func() {
		logger.LogOperation("LATE", "after shutdown")
	})
	assert.Equal(t, int64(1), logger.DeadLetters())
	logger.Close()
}

func TestLogger_NeverBlocksCaller(t *testing.T) {
	logger := NewLogger(nil)
	donech := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			logger.LogOperation("BURST", "event")
		}
		close(donech)
	}()

	select {
	case <-donech:
	case <-time.After(2 * time.Second):
		t.Fatal("audit logging blocked the caller")
	}
	logger.Close()
}
