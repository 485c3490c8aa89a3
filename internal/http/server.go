package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budget/internal/app"
	"budget/internal/core"
	applog "budget/internal/log"
)

// Controller is the application surface the handlers drive.
type Controller interface {
	CreateTransaction(ctx context.Context, d core.Draft) (core.Transaction, bool)
	UpdateTransaction(ctx context.Context, id string, d core.Draft) bool
	DeleteTransaction(ctx context.Context, id string) bool
	Transaction(id string) (core.Transaction, bool)
	Transactions(f core.Filter) []core.Transaction

	Filter() core.Filter
	SetFilter(f core.Filter)
	Window() core.Window
	SetWindow(w core.Window) error
	ToggleWindow() core.Window
	DarkMode() bool
	SetDarkMode(ctx context.Context, dark bool)
	ToggleDarkMode(ctx context.Context) bool

	SuggestCategory(ctx context.Context, description string) (string, bool)
	RefreshInsights() bool
	Categories(ctx context.Context) []string
	Insights() app.InsightsView
	Snapshot() app.State
}

type Server struct {
	http.Server
	ctrl        Controller
	logger      *applog.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, ctrl Controller, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.Default(applog.ComponentHTTP)
	}
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		ctrl:        ctrl,
		logger:      logger,
		rateLimiter: newRateLimiter(defaultRateLimit, defaultRateWindow),
		metrics:     &securityMetrics{},
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/categories/totals", s.handleCategoryTotals)
	mux.HandleFunc("POST /api/categories/suggest", s.handleSuggestCategory)

	mux.HandleFunc("GET /api/filter", s.handleGetFilter)
	mux.HandleFunc("PUT /api/filter", s.handleSetFilter)

	mux.HandleFunc("GET /api/insights", s.handleInsights)
	mux.HandleFunc("POST /api/insights/refresh", s.handleRefreshInsights)

	mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/preferences", s.handleSetPreferences)
	mux.HandleFunc("POST /api/preferences/dark-mode/toggle", s.handleToggleDarkMode)
	mux.HandleFunc("POST /api/preferences/window/toggle", s.handleToggleWindow)

	mux.HandleFunc("GET /api/state", s.handleState)

	s.Handler = s.withSecurityHeaders(mux)
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withSecurityHeaders adds security headers, rate limiting and request
// logging to every response.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	tagged := applog.Middleware(s.logger, func(r *http.Request) string {
		return r.Header.Get("X-Request-ID")
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := sanitizeInput(r.Header.Get("X-Request-ID"))
		if requestID == "" || len(requestID) > 64 {
			requestID = generateRequestID()
		}
		r.Header.Set("X-Request-ID", requestID)
		w.Header().Set("X-Request-ID", requestID)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		ctx := r.Context()
		if reason, bad := detectSuspiciousRequest(r, s.metrics); bad {
			s.logger.WarnContext(ctx, "Suspicious request",
				applog.FieldRequestID, requestID,
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path,
				"reason", reason)
		}

		if isMutation(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			TooManyRequestsError().Write(w)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		tagged.ServeHTTP(rw, r)

		s.logger.InfoContext(ctx, "Request completed",
			append(applog.NewFields().
				WithHTTP(r.Method, r.URL.Path, rw.statusCode, time.Since(start).Milliseconds()).
				ToSlice(),
				applog.FieldRequestID, requestID,
				applog.FieldClientIP, clientIP)...)
	})
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
