package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"budget/internal/amqp"
	applog "budget/internal/log"
)

var (
	// ErrRelayFull is returned when the event buffer is saturated.
	ErrRelayFull   = errors.New("event relay buffer full")
	ErrRelayClosed = errors.New("event relay stopped")
)

// Publisher delivers transaction events to the broker.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, op amqp.EventOp, id string, count int) error
}

type event struct {
	op    amqp.EventOp
	id    string
	count int
}

// EventRelay decouples mutations from broker latency: events are queued
// without blocking and published in order by a single background goroutine.
type EventRelay struct {
	target  Publisher
	queue   chan event
	timeout time.Duration
	logger  *applog.Logger

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	done      chan struct{}
}

func NewEventRelay(target Publisher, bufferSize int, logger *applog.Logger) *EventRelay {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = applog.Default(applog.ComponentAMQP)
	}
	return &EventRelay{
		target:  target,
		queue:   make(chan event, bufferSize),
		timeout: 10 * time.Second,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// PublishTransactionEvent enqueues the event. It never blocks.
func (r *EventRelay) PublishTransactionEvent(_ context.Context, op amqp.EventOp, id string, count int) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRelayClosed
	}
	select {
	case r.queue <- event{op: op, id: id, count: count}:
		return nil
	default:
		return ErrRelayFull
	}
}

// Start launches the publishing goroutine.
func (r *EventRelay) Start() {
	r.startOnce.Do(func() { go r.run() })
}

func (r *EventRelay) run() {
	defer close(r.done)
	for ev := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.target.PublishTransactionEvent(ctx, ev.op, ev.id, ev.count); err != nil {
			r.logger.ErrorContext(ctx, "Failed to publish transaction event",
				applog.FieldOperation, applog.OpPublish,
				"op", ev.op,
				applog.FieldTxID, ev.id,
				applog.FieldError, err)
		}
		cancel()
	}
}

// Stop closes the queue and waits, bounded by ctx, for queued events to drain.
// Start must have been called.
func (r *EventRelay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Event relay stopped before draining", "pending", len(r.queue))
		return ctx.Err()
	}
}
