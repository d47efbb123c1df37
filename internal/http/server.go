package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"homeledger/internal/cache"
	applog "homeledger/internal/log"
	"homeledger/internal/middleware/ratelimit"
	"homeledger/internal/middleware/security"
	"homeledger/internal/middleware/trace"
	"homeledger/internal/services"
)

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options configures the server beyond its services.
type Options struct {
	Addr   string
	Logger *applog.Logger

	// RequestsPerMinute bounds writes per client IP; reads are not limited
	RequestsPerMinute int

	// CacheCleanupInterval sweeps expired report cache entries; 0 disables it
	CacheCleanupInterval time.Duration

	Checks []ReadinessCheck
}

type Server struct {
	http.Server
	ledger  *services.LedgerService
	reports *services.ReportService
	logger  *applog.Logger
	checks  []ReadinessCheck
	now     func() time.Time

	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	caches       *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, ledgerSvc *services.LedgerService, reports *services.ReportService) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		ledger:  ledgerSvc,
		reports: reports,
		logger:  logger,
		checks:  opts.Checks,
		now:     time.Now,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		tracer:  trace.NewMiddleware(logger, security.ClientIP),
		caches:  cache.NewManager(),
	}

	for _, c := range reports.Caches() {
		s.caches.Register(c)
	}
	if opts.CacheCleanupInterval > 0 {
		s.caches.OnClean(func(removed int) {
			if removed > 0 {
				logger.Debug("Report cache cleanup completed", "entries_removed", removed)
			}
		})
		s.caches.StartCleanup(opts.CacheCleanupInterval)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/snapshots", s.handleCreateSnapshot)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/budget", s.handleBudget)
	mux.HandleFunc("GET /api/hierarchy", s.handleHierarchy)
	mux.HandleFunc("GET /api/networth", s.handleNetWorth)
	mux.HandleFunc("GET /api/pnl", s.handlePnL)
	mux.HandleFunc("GET /api/trend", s.handleTrend)

	limited := s.limiter.Middleware(security.ClientIP, s.rateLimited, http.MethodPost)(mux)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(limited)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.tracer.Middleware(headers),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).Warn("Rate limit exceeded", applog.FieldClientIP, security.ClientIP(r))
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, retry later", trace.GetRequestID(r.Context())).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[c.Name] = err.Error()
			continue
		}
		results[c.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
		applog.FromContext(r.Context()).Warn("Readiness check failed", "checks", results)
	}
	NewJSONResponse().
		Status(status).
		Body(map[string]any{"status": state, "checks": results}).
		Write(w)
}
