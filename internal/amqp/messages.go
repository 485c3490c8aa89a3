package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrUnknownOp is returned when publishing an op outside created, updated
// and deleted.
var ErrUnknownOp = errors.New("unknown event op")

// EventOp names the store mutation an event describes.
type EventOp string

const (
	OpCreated EventOp = "created"
	OpUpdated EventOp = "updated"
	OpDeleted EventOp = "deleted"
)

func (o EventOp) IsValid() bool {
	switch o {
	case OpCreated, OpUpdated, OpDeleted:
		return true
	}
	return false
}

// TransactionEvent is a lightweight notification that the transaction
// collection changed. Consumers re-read the collection for details.
type TransactionEvent struct {
	Op        EventOp   `json:"op"`
	ID        string    `json:"id"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(op EventOp, id string, count int) *TransactionEvent {
	return &TransactionEvent{
		Op:        op,
		ID:        id,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
