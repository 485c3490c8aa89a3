package services

import (
	"context"
	"sync"

	"budget/internal/amqp"
	"budget/internal/core"
	applog "budget/internal/log"
)

// Store persists the whole transaction collection.
type Store interface {
	LoadTransactions(ctx context.Context) []core.Transaction
	SaveTransactions(ctx context.Context, txs []core.Transaction) error
}

// EventPublisher receives best-effort notifications of committed mutations.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, op amqp.EventOp, id string, count int) error
}

// TransactionService owns the ordered transaction collection. Mutations are
// serialized and written through to the store; invalid input and unknown
// ids are silently ignored.
type TransactionService struct {
	mu        sync.RWMutex
	txs       []core.Transaction
	store     Store
	publisher EventPublisher
	newID     func() string
	logger    *applog.Logger
}

// NewTransactionService loads the saved collection. publisher may be nil.
func NewTransactionService(ctx context.Context, store Store, publisher EventPublisher, logger *applog.Logger) *TransactionService {
	if logger == nil {
		logger = applog.Default(applog.ComponentStore)
	}
	s := &TransactionService{
		store:     store,
		publisher: publisher,
		newID:     core.NewID,
		logger:    logger,
	}
	s.txs = store.LoadTransactions(ctx)

	logger.InfoContext(ctx, "Loaded transactions", applog.FieldCount, len(s.txs))
	return s
}

// Create appends a new transaction built from d. It reports false when the
// draft is invalid.
func (s *TransactionService) Create(ctx context.Context, d core.Draft) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := d.Build(s.newID())
	if err != nil {
		s.logger.DebugContext(ctx, "Rejected transaction draft",
			applog.FieldOperation, applog.OpCreate, applog.FieldError, err)
		return core.Transaction{}, false
	}

	s.txs = append(s.txs, tx)
	s.commit(ctx, applog.OpCreate)
	s.publish(ctx, amqp.OpCreated, tx.ID)

	s.logger.InfoContext(ctx, "Transaction created",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithTransaction(tx.ID, string(tx.Type), tx.Category, tx.Amount.String()).
			ToSlice()...)
	return tx, true
}

// Update replaces every field of the transaction with id, keeping the id and
// its position. It reports false for unknown ids and invalid drafts.
func (s *TransactionService) Update(ctx context.Context, id string, d core.Draft) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		s.logger.DebugContext(ctx, "Update of unknown transaction ignored", applog.FieldTxID, id)
		return false
	}

	tx, err := d.Build(id)
	if err != nil {
		s.logger.DebugContext(ctx, "Rejected transaction draft",
			applog.FieldOperation, applog.OpUpdate, applog.FieldTxID, id, applog.FieldError, err)
		return false
	}

	s.txs[idx] = tx
	s.commit(ctx, applog.OpUpdate)
	s.publish(ctx, amqp.OpUpdated, id)

	s.logger.InfoContext(ctx, "Transaction updated",
		applog.NewFields().
			WithOperation(applog.OpUpdate).
			WithTransaction(tx.ID, string(tx.Type), tx.Category, tx.Amount.String()).
			ToSlice()...)
	return true
}

// Delete removes the transaction with id. Deleting an absent id is a no-op
// and reports false.
func (s *TransactionService) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}

	s.txs = append(s.txs[:idx:idx], s.txs[idx+1:]...)
	s.commit(ctx, applog.OpDelete)
	s.publish(ctx, amqp.OpDeleted, id)

	s.logger.InfoContext(ctx, "Transaction deleted",
		applog.FieldTxID, id, applog.FieldCount, len(s.txs))
	return true
}

// List returns a copy of the collection in insertion order.
func (s *TransactionService) List() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.txs...)
}

// Get returns the transaction with id.
func (s *TransactionService) Get(id string) (core.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.txs[idx], true
	}
	return core.Transaction{}, false
}

func (s *TransactionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

func (s *TransactionService) indexOf(id string) int {
	for i := range s.txs {
		if s.txs[i].ID == id {
			return i
		}
	}
	return -1
}

// commit writes the collection through. The in-memory state is kept even
// when the write fails. Callers hold s.mu.
func (s *TransactionService) commit(ctx context.Context, op string) {
	if err := s.store.SaveTransactions(ctx, s.txs); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist transactions",
			append(applog.NewFields().WithOperation(op).WithError(err).ToSlice(),
				applog.FieldCount, len(s.txs))...)
	}
}

func (s *TransactionService) publish(ctx context.Context, op amqp.EventOp, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, op, id, len(s.txs)); err != nil {
		// Don't fail the mutation, it is already saved locally
		s.logger.WarnContext(ctx, "Failed to publish transaction event",
			applog.FieldTxID, id, applog.FieldError, err)
	}
}
