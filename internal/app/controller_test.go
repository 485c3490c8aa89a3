package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
	"budget/internal/storage/memory"
)

// gatedGenerator blocks each Generate call until it is released. Calls are
// keyed by the size of the collection they were asked about.
type gatedGenerator struct {
	mu    sync.Mutex
	calls []core.Window
	gates map[int]chan []core.Insight
}

func newGatedGenerator() *gatedGenerator {
	return &gatedGenerator{gates: make(map[int]chan []core.Insight)}
}

func (g *gatedGenerator) gate(size int) chan []core.Insight {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[size]
	if !ok {
		ch = make(chan []core.Insight, 1)
		g.gates[size] = ch
	}
	return ch
}

func (g *gatedGenerator) Generate(ctx context.Context, txs []core.Transaction, w core.Window) []core.Insight {
	gate := g.gate(len(txs))
	g.mu.Lock()
	g.calls = append(g.calls, w)
	g.mu.Unlock()
	select {
	case res := <-gate:
		return res
	case <-ctx.Done():
		return nil
	}
}

// finish releases the call made for a collection of the given size.
func (g *gatedGenerator) finish(size int, res []core.Insight) {
	g.gate(size) <- res
}

func (g *gatedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type staticSuggester struct{ cat string }

func (s staticSuggester) Suggest(context.Context, string) (string, bool) {
	return s.cat, s.cat != ""
}

type failingPrefs struct{ saved []bool }

func (f *failingPrefs) LoadDarkMode(context.Context) bool { return false }
func (f *failingPrefs) SaveDarkMode(_ context.Context, d bool) error {
	f.saved = append(f.saved, d)
	return errors.New("read-only")
}

func newController(t *testing.T, gen InsightGenerator) (*Controller, *storage.Persistence) {
	t.Helper()
	ctx := context.Background()
	store := memory.New(nil)
	p := storage.NewPersistence(store, nil)
	c := New(ctx, Deps{
		Transactions: services.NewTransactionService(ctx, p, nil, nil),
		Insights:     gen,
		Suggester:    staticSuggester{cat: "Travel"},
		Preferences:  p,
		Taxonomy:     store,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		c.Close(ctx)
	})
	return c, p
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func expense(amount, desc string) core.Draft {
	return core.Draft{Amount: amount, Category: "Food & Dining", Description: desc, Type: core.Expense, Date: "2024-01-01"}
}

func TestNoDispatchWithoutTransactions(t *testing.T) {
	gen := newGatedGenerator()
	c, _ := newController(t, gen)

	if c.RefreshInsights() {
		t.Fatal("refresh must not dispatch with an empty collection")
	}
	c.ToggleWindow()
	if gen.callCount() != 0 || c.Insights().Loading {
		t.Fatal("no insight request expected")
	}
}

func TestCreateDispatchesAndApplies(t *testing.T) {
	ctx := context.Background()
	gen := newGatedGenerator()
	c, _ := newController(t, gen)

	if _, ok := c.CreateTransaction(ctx, expense("10", "lunch")); !ok {
		t.Fatal("create failed")
	}
	if !c.Insights().Loading {
		t.Fatal("loading should be set while the request is outstanding")
	}

	want := []core.Insight{{Type: core.KindInsight, Title: "t", Description: "d", Severity: core.SeverityLow}}
	waitFor(t, func() bool { return gen.callCount() == 1 })
	gen.finish(1, want)

	waitFor(t, func() bool { return !c.Insights().Loading })
	got := c.Insights().Insights
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("unexpected insights %+v", got)
	}
}

func TestStaleInsightsDiscarded(t *testing.T) {
	ctx := context.Background()
	gen := newGatedGenerator()
	c, _ := newController(t, gen)

	c.CreateTransaction(ctx, expense("10", "first"))
	c.CreateTransaction(ctx, expense("20", "second"))
	waitFor(t, func() bool { return gen.callCount() == 2 })

	// The newer request resolves first.
	gen.finish(2, []core.Insight{{Title: "fresh"}})
	waitFor(t, func() bool { return !c.Insights().Loading })

	// The older one resolves late and must not overwrite it.
	gen.finish(1, []core.Insight{{Title: "stale"}})
	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := c.Insights().Insights
	if len(got) != 1 || got[0].Title != "fresh" {
		t.Fatalf("stale response overwrote newer insights: %+v", got)
	}
}

func TestStaleResultDoesNotClearLoading(t *testing.T) {
	c := &Controller{current: []core.Insight{}, logger: applog.Default(applog.ComponentController)}
	c.seq = 2
	c.loading = true

	c.apply(1, []core.Insight{{Title: "old"}})
	if !c.loading || len(c.current) != 0 {
		t.Fatal("stale result must be discarded and loading kept")
	}

	c.apply(2, []core.Insight{{Title: "new"}})
	if c.loading || len(c.current) != 1 || c.current[0].Title != "new" {
		t.Fatalf("latest result must be applied, got %+v loading=%v", c.current, c.loading)
	}
}

func TestWindowChangeDispatches(t *testing.T) {
	ctx := context.Background()
	gen := newGatedGenerator()
	c, _ := newController(t, gen)

	c.CreateTransaction(ctx, expense("10", "a"))
	waitFor(t, func() bool { return gen.callCount() == 1 })

	if err := c.SetWindow(core.Weekly); err != nil {
		t.Fatalf("set window: %v", err)
	}
	if err := c.SetWindow("daily"); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if w := c.ToggleWindow(); w != core.Monthly {
		t.Fatalf("expected monthly, got %s", w)
	}
	waitFor(t, func() bool { return gen.callCount() == 2 })

	gen.mu.Lock()
	last := gen.calls[1]
	gen.mu.Unlock()
	if last != core.Monthly {
		t.Fatalf("dispatch should use the new window, got %s", last)
	}
}

func TestDarkModePersisted(t *testing.T) {
	ctx := context.Background()
	c, p := newController(t, nil)

	if c.DarkMode() {
		t.Fatal("dark mode defaults to off")
	}
	if !c.ToggleDarkMode(ctx) {
		t.Fatal("toggle should turn dark mode on")
	}
	if !p.LoadDarkMode(ctx) {
		t.Fatal("dark mode should be persisted")
	}
	c.SetDarkMode(ctx, false)
	if p.LoadDarkMode(ctx) {
		t.Fatal("dark mode off should be persisted")
	}
}

func TestDarkModeSaveFailureKeepsValue(t *testing.T) {
	ctx := context.Background()
	prefs := &failingPrefs{}
	c := New(ctx, Deps{
		Transactions: services.NewTransactionService(ctx, storage.NewPersistence(memory.New(nil), nil), nil, nil),
		Preferences:  prefs,
	})
	defer c.Close(ctx)

	if !c.ToggleDarkMode(ctx) || !c.DarkMode() {
		t.Fatal("value must change even if it cannot be saved")
	}
	if len(prefs.saved) != 1 {
		t.Fatal("save should have been attempted")
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, nil)

	c.CreateTransaction(ctx, core.Draft{Amount: "100", Category: "Salary", Description: "pay", Type: core.Income, Date: "2024-01-01"})
	c.CreateTransaction(ctx, core.Draft{Amount: "30", Category: "Travel", Description: "bus", Date: "2024-02-01"})
	c.SetFilter(core.Filter{Type: core.Expense})

	s := c.Snapshot()
	if s.Summary.Balance.String() != "70.00" || s.Summary.Count != 2 {
		t.Fatalf("unexpected summary %+v", s.Summary)
	}
	if len(s.Transactions) != 1 || s.Transactions[0].Description != "bus" {
		t.Fatalf("filter not applied: %+v", s.Transactions)
	}
	if len(s.CategoryTotals) != 2 {
		t.Fatalf("category totals must cover all transactions: %+v", s.CategoryTotals)
	}
	if s.Window != core.Weekly || s.Insights == nil {
		t.Fatalf("unexpected defaults %+v", s)
	}
}

func TestSuggestAndCategories(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, nil)

	if cat, ok := c.SuggestCategory(ctx, "train ticket"); !ok || cat != "Travel" {
		t.Fatalf("unexpected suggestion (%q, %v)", cat, ok)
	}
	if cats := c.Categories(ctx); len(cats) != len(core.KnownCategories) {
		t.Fatalf("unexpected categories %v", cats)
	}
}

func TestCloseStopsDispatch(t *testing.T) {
	ctx := context.Background()
	gen := newGatedGenerator()
	c, _ := newController(t, gen)

	c.CreateTransaction(ctx, expense("1", "a"))
	waitFor(t, func() bool { return gen.callCount() == 1 })

	closeCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := c.Close(closeCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while a request is blocked, got %v", err)
	}
	if c.RefreshInsights() {
		t.Fatal("closed controller must not dispatch")
	}
}
