// Package http serves the JSON API over the history, ledger, goal and
// import services.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"dinamifin/internal/history"
	"dinamifin/internal/log"
	"dinamifin/internal/middleware/ratelimit"
	"dinamifin/internal/middleware/security"
	"dinamifin/internal/middleware/trace"
	"dinamifin/internal/services"
)

// Pinger reports store reachability for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Ledger  *services.LedgerService
	Goals   *services.GoalService
	Imports *services.ImportService
	History *history.Service
	Store   Pinger
	Logger  *log.Logger

	RateLimitPerMinute int
}

type Server struct {
	http.Server

	ledger  *services.LedgerService
	goals   *services.GoalService
	imports *services.ImportService
	history *history.Service
	store   Pinger
	logger  *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and the middleware chain, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		ledger:           deps.Ledger,
		goals:            deps.Goals,
		imports:          deps.Imports,
		history:          deps.History,
		store:            deps.Store,
		logger:           logger.WithComponent(log.ComponentHTTP),
		securityDetector: security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
		}),
		started: time.Now(),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, ratelimit.MutatingOnly, s.onRateLimit)(handler)
	handler = s.securityDetector.Guard(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /history/{series}/{user_id}", s.handleHistory)

	mux.HandleFunc("GET /ledger/{kind}/{user_id}", s.handleListRecords)
	mux.HandleFunc("POST /ledger/{kind}/{user_id}", s.handleCreateRecord)
	mux.HandleFunc("GET /ledger/{kind}/{user_id}/current-month", s.handleCurrentMonth)
	mux.HandleFunc("GET /ledger/{kind}/{user_id}/{date}", s.handleGetRecord)
	mux.HandleFunc("PUT /ledger/{kind}/{user_id}/{date}", s.handleUpdateRecord)
	mux.HandleFunc("DELETE /ledger/{kind}/{user_id}/{date}", s.handleDeleteRecord)

	mux.HandleFunc("GET /goals/{kind}/{user_id}", s.handleListGoals)
	mux.HandleFunc("PUT /goals/{kind}/{user_id}", s.handleUpsertGoal)
	mux.HandleFunc("DELETE /goals/{kind}/{user_id}/{month}", s.handleDeleteGoal)
	mux.HandleFunc("GET /goals/{user_id}/current", s.handleCurrentGoals)

	mux.HandleFunc("POST /import/{user_id}", s.handleImport)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
