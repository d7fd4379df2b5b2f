// Package http serves the ledger web pages, the JSON API and the health
// probes.
package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"roomies/internal/backend"
	applog "roomies/internal/log"
	"roomies/internal/metrics"
	"roomies/internal/middleware/ratelimit"
	"roomies/internal/middleware/security"
	"roomies/internal/middleware/trace"
	appweb "roomies/web"
)

// Page templates. Each is parsed together with base.html.
var pageTemplates = []string{
	"index.html",
	"transactions.html",
	"edit_transaction.html",
	"balances.html",
	"members.html",
	"diagrams.html",
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Logger             *applog.Logger
	Metrics            *metrics.Metrics
	CurrencySymbol     string
	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server
	ledger   backend.Ledger
	pages    map[string]*template.Template
	logger   *applog.Logger
	metrics  *metrics.Metrics
	currency string

	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, templates and middleware, returning a
// ready-to-run server.
func NewServer(addr string, ledger backend.Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	currency := opts.CurrencySymbol
	if currency == "" {
		currency = "£"
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:   ledger,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		metrics:  opts.Metrics,
		currency: currency,
		started:  time.Now(),
		now:      time.Now,
	}

	s.detector = security.NewDetector(logger, opts.Metrics)
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitPerMinute,
		Logger:            logger,
		Metrics:           opts.Metrics,
	})
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger, opts.Metrics)

	pages, err := parsePages(appweb.TemplatesFS, s.templateFuncs())
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.pages = pages

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = applog.Middleware(s.logger)(handler)
	handler = s.tracer.Middleware(handler)
	s.Handler = handler

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions", s.handleTransactions)
	mux.HandleFunc("GET /transactions/{id}/edit", s.handleEditTransactionForm)
	mux.HandleFunc("POST /transactions/{id}/edit", s.handleUpdateTransaction)
	mux.HandleFunc("POST /transactions/{id}/delete", s.handleDeleteTransaction)
	mux.HandleFunc("GET /balances", s.handleBalances)
	mux.HandleFunc("GET /diagrams", s.handleDiagrams)

	mux.HandleFunc("GET /members/add", s.handleMembers)
	mux.HandleFunc("POST /members/add", s.handleAddMember)
	mux.HandleFunc("POST /members/{id}/edit", s.handleRenameMember)
	mux.HandleFunc("POST /members/{id}/delete", s.handleDeleteMember)

	mux.HandleFunc("GET /api/members", s.handleAPIMembers)
	mux.HandleFunc("GET /api/transactions", s.handleAPITransactions)
	mux.HandleFunc("POST /api/transactions", s.handleAPICreateTransaction)
	mux.HandleFunc("GET /api/balances", s.handleAPIBalances)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleLive)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func parsePages(fsys fs.FS, funcs template.FuncMap) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageTemplates))
	for _, page := range pageTemplates {
		t, err := template.New(page).Funcs(funcs).ParseFS(fsys, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, err
		}
		pages[page] = t
	}
	return pages, nil
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"currency": func(v any) string { return formatCurrency(s.currency, v) },
	}
}

// render executes a page into a buffer first so template failures still
// produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	logger := applog.FromContext(r.Context())
	t, ok := s.pages[page]
	if !ok {
		logger.ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path, "template", page)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed", applog.FieldError, err, "template", page)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		NewResponse().Status(http.StatusTooManyRequests).JSON(errorBody("Rate limit exceeded. Please try again later.")).Write(w)
		return
	}
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
