package http

import (
	"net/http"
	"strings"

	"budget/internal/core"
	applog "budget/internal/log"
)

type preferencesBody struct {
	DarkMode bool        `json:"dark_mode"`
	Window   core.Window `json:"window"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, given, err := ParseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if !given {
		f = s.ctrl.Filter()
	}
	NewJSONResponse().Body(s.ctrl.Transactions(f)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.ctrl.Transaction(r.PathValue("id"))
	if !ok {
		NotFoundError("transaction not found").Write(w)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	d := p.Draft()
	if err := d.Validate(); err != nil {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Invalid transaction draft", applog.FieldError, err)
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	tx, ok := s.ctrl.CreateTransaction(r.Context(), d)
	if !ok {
		UnprocessableEntityError("transaction rejected").Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		Body(tx).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.ctrl.Transaction(id); !ok {
		NotFoundError("transaction not found").Write(w)
		return
	}

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	d := p.Draft()
	if err := d.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if !s.ctrl.UpdateTransaction(r.Context(), id, d) {
		// Deleted between the lookup and the update.
		NotFoundError("transaction not found").Write(w)
		return
	}
	tx, _ := s.ctrl.Transaction(id)
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	s.ctrl.DeleteTransaction(r.Context(), r.PathValue("id"))
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(core.Summarize(s.ctrl.Transactions(core.Filter{}))).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ctrl.Categories(r.Context())).Write(w)
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(core.CategoryTotals(s.ctrl.Transactions(core.Filter{}))).Write(w)
}

func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	desc := p.Get("description")
	if desc == "" {
		UnprocessableEntityError(core.ErrEmptyDescription.Error()).Write(w)
		return
	}

	cat, ok := s.ctrl.SuggestCategory(r.Context(), desc)
	if !ok {
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"category": cat}).Write(w)
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ctrl.Filter()).Write(w)
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	f := core.Filter{
		Category: p.Get("category"),
		Type:     core.TxType(strings.ToLower(p.Get("type"))),
	}
	if err := validateFilterType(f.Type); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	s.ctrl.SetFilter(f)
	NewJSONResponse().Body(s.ctrl.Filter()).Write(w)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ctrl.Insights()).Write(w)
}

func (s *Server) handleRefreshInsights(w http.ResponseWriter, r *http.Request) {
	if !s.ctrl.RefreshInsights() {
		UnprocessableEntityError("no transactions to analyze").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).Body(s.ctrl.Insights()).Write(w)
}

func (s *Server) preferences() preferencesBody {
	return preferencesBody{DarkMode: s.ctrl.DarkMode(), Window: s.ctrl.Window()}
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.preferences()).Write(w)
}

// handleSetPreferences applies whichever of dark_mode and window are present.
func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	var dark bool
	hasDark := p.Has("dark_mode")
	if hasDark {
		var valid bool
		if dark, valid = p.Bool("dark_mode"); !valid {
			UnprocessableEntityError("dark_mode must be a boolean").Write(w)
			return
		}
	}
	if p.Has("window") {
		if err := s.ctrl.SetWindow(core.Window(strings.ToLower(p.Get("window")))); err != nil {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
	}
	if hasDark {
		s.ctrl.SetDarkMode(r.Context(), dark)
	}
	NewJSONResponse().Body(s.preferences()).Write(w)
}

func (s *Server) handleToggleDarkMode(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ToggleDarkMode(r.Context())
	NewJSONResponse().Body(s.preferences()).Write(w)
}

func (s *Server) handleToggleWindow(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ToggleWindow()
	NewJSONResponse().Body(s.preferences()).Write(w)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ctrl.Snapshot()).Write(w)
}
