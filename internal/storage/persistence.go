package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"budget/internal/core"
	applog "budget/internal/log"
)

// Keys under which state is stored.
const (
	TransactionsKey = "budgetTrackerTransactions"
	DarkModeKey     = "budgetTrackerDarkMode"
)

// Persistence loads and saves the transaction collection and the dark-mode
// preference. Reads never fail: absent or malformed values yield defaults.
type Persistence struct {
	kv     KV
	logger *applog.Logger
}

func NewPersistence(kv KV, logger *applog.Logger) *Persistence {
	if logger == nil {
		logger = applog.Default(applog.ComponentStorage)
	}
	return &Persistence{kv: kv, logger: logger}
}

// LoadTransactions returns the stored collection in its saved order.
func (p *Persistence) LoadTransactions(ctx context.Context) []core.Transaction {
	raw, ok := p.read(ctx, TransactionsKey)
	if !ok {
		return []core.Transaction{}
	}
	var txs []core.Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		p.logger.WarnContext(ctx, "Stored transactions are malformed, starting empty",
			applog.FieldOperation, applog.OpLoad,
			applog.FieldKey, TransactionsKey, applog.FieldError, err)
		return []core.Transaction{}
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs
}

// SaveTransactions overwrites the whole stored collection.
func (p *Persistence) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	raw, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("marshal transactions: %w", err)
	}
	if err := p.kv.Set(ctx, TransactionsKey, raw); err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}
	return nil
}

func (p *Persistence) LoadDarkMode(ctx context.Context) bool {
	raw, ok := p.read(ctx, DarkModeKey)
	if !ok {
		return false
	}
	var dark bool
	if err := json.Unmarshal(raw, &dark); err != nil {
		p.logger.WarnContext(ctx, "Stored dark mode flag is malformed, using default",
			applog.FieldOperation, applog.OpLoad,
			applog.FieldKey, DarkModeKey, applog.FieldError, err)
		return false
	}
	return dark
}

func (p *Persistence) SaveDarkMode(ctx context.Context, dark bool) error {
	raw, _ := json.Marshal(dark)
	if err := p.kv.Set(ctx, DarkModeKey, raw); err != nil {
		return fmt.Errorf("save dark mode: %w", err)
	}
	return nil
}

func (p *Persistence) read(ctx context.Context, key string) ([]byte, bool) {
	raw, found, err := p.kv.Get(ctx, key)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to read stored value, using default",
			applog.FieldKey, key, applog.FieldError, err)
		return nil, false
	}
	if !found || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}
