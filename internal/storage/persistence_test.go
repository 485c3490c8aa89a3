package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"budget/internal/core"
)

type mapKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMapKV() *mapKV { return &mapKV{data: make(map[string][]byte)} }

func (m *mapKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	p := NewPersistence(kv, nil)

	txs := []core.Transaction{
		{ID: "1", Amount: core.NewMoney(12.5), Category: "Salary", Date: core.NewDate(2024, 1, 2), Type: core.Income, Description: "pay"},
		{ID: "2", Amount: core.NewMoney(3), Category: "Food & Dining", Date: core.NewDate(2024, 1, 3), Type: core.Expense, Description: "coffee", Notes: "oat"},
	}
	if err := p.SaveTransactions(ctx, txs); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := p.LoadTransactions(ctx)
	if len(got) != len(txs) {
		t.Fatalf("expected %d transactions, got %d", len(txs), len(got))
	}
	for i := range txs {
		if !got[i].Equal(txs[i]) {
			t.Fatalf("entry %d mismatch: %+v vs %+v", i, got[i], txs[i])
		}
	}
}

func TestPersistenceDefaults(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(*mapKV)
	}{
		{"absent", func(*mapKV) {}},
		{"malformed", func(m *mapKV) {
			m.data[TransactionsKey] = []byte("{not json")
			m.data[DarkModeKey] = []byte("maybe")
		}},
		{"empty", func(m *mapKV) {
			m.data[TransactionsKey] = []byte{}
		}},
		{"null", func(m *mapKV) {
			m.data[TransactionsKey] = []byte("null")
		}},
		{"read error", func(m *mapKV) {
			m.getErr = errors.New("disk gone")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newMapKV()
			tt.setup(kv)
			p := NewPersistence(kv, nil)

			txs := p.LoadTransactions(ctx)
			if txs == nil || len(txs) != 0 {
				t.Fatalf("expected empty non-nil slice, got %#v", txs)
			}
			if p.LoadDarkMode(ctx) {
				t.Fatal("expected dark mode to default to false")
			}
		})
	}
}

func TestPersistenceDarkMode(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	p := NewPersistence(kv, nil)

	if err := p.SaveDarkMode(ctx, true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if string(kv.data[DarkModeKey]) != "true" {
		t.Fatalf("unexpected stored value %q", kv.data[DarkModeKey])
	}
	if !p.LoadDarkMode(ctx) {
		t.Fatal("expected dark mode on")
	}
}

func TestPersistenceSaveEmptyWritesArray(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	p := NewPersistence(kv, nil)

	if err := p.SaveTransactions(ctx, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if string(kv.data[TransactionsKey]) != "[]" {
		t.Fatalf("expected [], got %q", kv.data[TransactionsKey])
	}
}

func TestPersistenceSaveError(t *testing.T) {
	kv := newMapKV()
	kv.setErr = errors.New("quota exceeded")
	p := NewPersistence(kv, nil)

	err := p.SaveTransactions(context.Background(), []core.Transaction{})
	if err == nil || !errors.Is(err, kv.setErr) {
		t.Fatalf("expected wrapped set error, got %v", err)
	}
}
