// Package http serves the JSON API: entries with running balances, monthly
// summaries, the overview figures and the display currency.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finify/internal/core"
	"finify/internal/currency"
	"finify/internal/display"
	applog "finify/internal/log"
	"finify/internal/middleware/ratelimit"
	"finify/internal/middleware/security"
	"finify/internal/middleware/trace"
	"finify/internal/services"
)

// EntryCommands mutates the ledger.
type EntryCommands interface {
	CreateEntry(ctx context.Context, in services.CreateEntryInput) (core.FinancialEntry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// Views renders read models in the current display context.
type Views interface {
	Entries() ([]services.EntryRow, display.Context, error)
	Summaries() ([]services.SummaryRow, display.Context, error)
	Overview() (services.Overview, error)
}

// CurrencySelector owns the selected display currency.
type CurrencySelector interface {
	Context() display.Context
	Base() currency.Code
	SetCurrency(ctx context.Context, code currency.Code) (display.Context, error)
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Deps are the collaborators the server delegates to.
type Deps struct {
	Entries  EntryCommands
	Views    Views
	Currency CurrencySelector
	Checks   map[string]ReadinessCheck
	Logger   *applog.Logger

	// Zero value uses ratelimit.DefaultConfig.
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	entries  EntryCommands
	views    Views
	currency CurrencySelector
	checks   map[string]ReadinessCheck
	logger   *applog.Logger

	limiter      *ratelimit.Limiter
	detector     *security.Detector
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		entries:  deps.Entries,
		views:    deps.Views,
		currency: deps.Currency,
		checks:   deps.Checks,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/currency", s.handleGetCurrency)
	mux.HandleFunc("PUT /api/currency", s.handleSetCurrency)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited,
		http.MethodPost, http.MethodPut, http.MethodDelete)(h)
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP).Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops background goroutines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Close stops background goroutines without serving; used when the server
// never started.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.Server.Close()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", "checks", failed)
		NewJSONResponse().
			Status(http.StatusServiceUnavailable).
			Body(map[string]any{"status": "unavailable", "failed": failed}).
			Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
