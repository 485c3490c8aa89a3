// Package app holds the application controller: the explicit state behind
// every user-facing operation.
package app

import (
	"context"
	"errors"
	"sync"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
)

var ErrInvalidWindow = errors.New("window must be weekly or monthly")

type (
	InsightGenerator interface {
		Generate(ctx context.Context, txs []core.Transaction, w core.Window) []core.Insight
	}

	CategorySuggester interface {
		Suggest(ctx context.Context, description string) (string, bool)
	}

	Preferences interface {
		LoadDarkMode(ctx context.Context) bool
		SaveDarkMode(ctx context.Context, dark bool) error
	}
)

// State is a consistent snapshot of everything the UI renders.
type State struct {
	Summary        core.Summary         `json:"summary"`
	Transactions   []core.Transaction   `json:"transactions"`
	CategoryTotals []core.CategoryTotal `json:"category_totals"`
	Filter         core.Filter          `json:"filter"`
	Window         core.Window          `json:"window"`
	DarkMode       bool                 `json:"dark_mode"`
	Insights       []core.Insight       `json:"insights"`
	Loading        bool                 `json:"loading"`
}

// InsightsView is the insights panel.
type InsightsView struct {
	Loading  bool           `json:"loading"`
	Window   core.Window    `json:"window"`
	Insights []core.Insight `json:"insights"`
}

type Deps struct {
	Transactions *services.TransactionService
	Insights     InsightGenerator
	Suggester    CategorySuggester
	Preferences  Preferences
	Taxonomy     storage.TaxonomyReader
	Logger       *applog.Logger
}

// Controller serializes access to UI state. Insight generation runs in the
// background; each dispatch takes a sequence number and only the result of
// the latest dispatch is applied.
type Controller struct {
	txs       *services.TransactionService
	insights  InsightGenerator
	suggester CategorySuggester
	prefs     Preferences
	taxonomy  storage.TaxonomyReader
	logger    *applog.Logger

	mu       sync.Mutex
	filter   core.Filter
	window   core.Window
	darkMode bool
	current  []core.Insight
	loading  bool
	seq      uint64
	closed   bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the controller, restores the dark-mode preference and, when
// transactions were loaded, dispatches a first insight request.
func New(ctx context.Context, d Deps) *Controller {
	logger := d.Logger
	if logger == nil {
		logger = applog.Default(applog.ComponentController)
	}
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Controller{
		txs:       d.Transactions,
		insights:  d.Insights,
		suggester: d.Suggester,
		prefs:     d.Preferences,
		taxonomy:  d.Taxonomy,
		logger:    logger,
		filter:    core.Filter{Type: core.TypeAll},
		window:    core.Weekly,
		current:   []core.Insight{},
		ctx:       bg,
		cancel:    cancel,
	}
	if c.prefs != nil {
		c.darkMode = c.prefs.LoadDarkMode(ctx)
	}

	c.mu.Lock()
	c.dispatchLocked()
	c.mu.Unlock()
	return c
}

func (c *Controller) CreateTransaction(ctx context.Context, d core.Draft) (core.Transaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, ok := c.txs.Create(ctx, d)
	if ok {
		c.dispatchLocked()
	}
	return tx, ok
}

func (c *Controller) UpdateTransaction(ctx context.Context, id string, d core.Draft) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok := c.txs.Update(ctx, id, d)
	if ok {
		c.dispatchLocked()
	}
	return ok
}

func (c *Controller) DeleteTransaction(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok := c.txs.Delete(ctx, id)
	if ok {
		c.dispatchLocked()
	}
	return ok
}

func (c *Controller) Transaction(id string) (core.Transaction, bool) {
	return c.txs.Get(id)
}

// Transactions applies f to the current collection, most recent first.
func (c *Controller) Transactions(f core.Filter) []core.Transaction {
	return core.FilterTransactions(c.txs.List(), f)
}

func (c *Controller) Filter() core.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Controller) SetFilter(f core.Filter) {
	if f.Type == "" {
		f.Type = core.TypeAll
	}
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

func (c *Controller) Window() core.Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// SetWindow changes the reporting window, re-dispatching insights on change.
func (c *Controller) SetWindow(w core.Window) error {
	if !w.IsValid() {
		return ErrInvalidWindow
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if w != c.window {
		c.window = w
		c.dispatchLocked()
	}
	return nil
}

func (c *Controller) ToggleWindow() core.Window {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.window = c.window.Toggle()
	c.dispatchLocked()
	return c.window
}

func (c *Controller) DarkMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.darkMode
}

// SetDarkMode stores the preference. A failed save keeps the new value in
// memory.
func (c *Controller) SetDarkMode(ctx context.Context, dark bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setDarkModeLocked(ctx, dark)
}

func (c *Controller) ToggleDarkMode(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setDarkModeLocked(ctx, !c.darkMode)
	return c.darkMode
}

func (c *Controller) setDarkModeLocked(ctx context.Context, dark bool) {
	c.darkMode = dark
	if c.prefs == nil {
		return
	}
	if err := c.prefs.SaveDarkMode(ctx, dark); err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist dark mode",
			applog.FieldOperation, applog.OpSave, applog.FieldError, err)
	}
}

// SuggestCategory asks for a category for description. It runs outside the
// state lock so slow suggestions never block other commands.
func (c *Controller) SuggestCategory(ctx context.Context, description string) (string, bool) {
	if c.suggester == nil {
		return "", false
	}
	return c.suggester.Suggest(ctx, description)
}

// RefreshInsights re-dispatches insight generation. It reports false when
// there are no transactions to analyze.
func (c *Controller) RefreshInsights() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked()
}

// Categories lists the taxonomy, falling back to the built-in list.
func (c *Controller) Categories(ctx context.Context) []string {
	if c.taxonomy != nil {
		cats, err := c.taxonomy.Categories(ctx)
		if err == nil && len(cats) > 0 {
			return cats
		}
		if err != nil {
			c.logger.WarnContext(ctx, "Failed to read categories, using defaults", applog.FieldError, err)
		}
	}
	return append([]string(nil), core.KnownCategories...)
}

func (c *Controller) Insights() InsightsView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return InsightsView{
		Loading:  c.loading,
		Window:   c.window,
		Insights: append([]core.Insight{}, c.current...),
	}
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := c.txs.List()
	return State{
		Summary:        core.Summarize(all),
		Transactions:   core.FilterTransactions(all, c.filter),
		CategoryTotals: core.CategoryTotals(all),
		Filter:         c.filter,
		Window:         c.window,
		DarkMode:       c.darkMode,
		Insights:       append([]core.Insight{}, c.current...),
		Loading:        c.loading,
	}
}

// dispatchLocked starts an insight request for the current state when there
// is at least one transaction. Callers hold c.mu.
func (c *Controller) dispatchLocked() bool {
	if c.insights == nil || c.closed {
		return false
	}
	txs := c.txs.List()
	if len(txs) == 0 {
		return false
	}

	c.seq++
	seq, window := c.seq, c.window
	c.loading = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		result := c.insights.Generate(c.ctx, txs, window)
		c.apply(seq, result)
	}()
	return true
}

func (c *Controller) apply(seq uint64, result []core.Insight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		c.logger.Debug("Discarded stale insights",
			applog.FieldSequence, seq,
			"latest", c.seq)
		return
	}
	if result == nil {
		result = []core.Insight{}
	}
	c.current = result
	c.loading = false
}

// Close stops accepting insight dispatches and waits for in-flight requests.
// When ctx expires first the outstanding requests are cancelled.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}
