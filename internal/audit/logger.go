package audit

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

const queueKey = "system_log_queue"

// Event is one system-log record. Events describing ledger mutations carry
// the account and amount; operational events leave them zero.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	AccountID int64     `json:"account_id,omitempty"`
	Reference string    `json:"reference,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// Logger is a non-blocking audit sink. Events go through a buffered channel
// to a single writer goroutine that pushes them onto a redis list; a full
// buffer or a redis failure drops the event to plain log output and bumps
// the dead-letter counter. Ledger operations never block or fail on it.
type Logger struct {
	redis       *redis.Client
	events      chan Event
	deadLetters atomic.Int64
	closeOnce   sync.Once
	done        chan struct{}

	mu     sync.RWMutex // guards closed against record racing Close
	closed bool
}

func NewLogger(rdb *redis.Client) *Logger {
	l := &Logger{
		redis:  rdb,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) run() {
	defer close(l.done)
	for event := range l.events {
		l.write(event)
	}
}

func (l *Logger) write(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		l.deadLetters.Add(1)
		log.Printf("[AUDIT] dropped unmarshalable event: %v", err)
		return
	}

	if l.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = l.redis.RPush(ctx, queueKey, string(data)).Err()
		cancel()
		if err == nil {
			return
		}
		l.deadLetters.Add(1)
	}

	log.Printf("AUDIT: %s", string(data))
}

func (l *Logger) record(event Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.deadLetters.Add(1)
		log.Printf("AUDIT (sink closed): %s %s account=%d", event.EventType, event.Status, event.AccountID)
		return
	}

	select {
	case l.events <- event:
	default:
		l.deadLetters.Add(1)
		log.Printf("AUDIT (buffer full): %s %s account=%d", event.EventType, event.Status, event.AccountID)
	}
}

// LogTransaction records a committed ledger mutation.
func (l *Logger) LogTransaction(accountID int64, action string, amount, previousBalance, newBalance int64, reference, createdBy string) {
	l.record(Event{
		Timestamp: time.Now(),
		EventType: action,
		AccountID: accountID,
		Reference: reference,
		Amount:    amount,
		Status:    "SUCCESS",
		Details: map[string]any{
			"previous_balance": previousBalance,
			"new_balance":      newBalance,
			"created_by":       createdBy,
		},
	})
}

// LogError records a failed operation.
func (l *Logger) LogError(accountID int64, reference string, err error) {
	l.record(Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		AccountID: accountID,
		Reference: reference,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

// LogOperation records a non-ledger admin action.
func (l *Logger) LogOperation(operation, details string) {
	l.record(Event{
		Timestamp: time.Now(),
		EventType: operation,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

// DeadLetters reports how many events could not be delivered to the queue.
func (l *Logger) DeadLetters() int64 { return l.deadLetters.Load() }

// Close drains buffered events and stops the writer. Events recorded after
// Close are counted as dead letters instead of panicking on the closed
// channel.
func (l *Logger) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.events)
		l.mu.Unlock()
		<-l.done
	})
}
