// Package api exposes the authorization decision over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fedgate/fedgate/pkg/audit"
	"github.com/fedgate/fedgate/pkg/authz"
	"github.com/fedgate/fedgate/pkg/claims"
	"github.com/fedgate/fedgate/pkg/httputil"
	"github.com/fedgate/fedgate/pkg/idp"
	"github.com/fedgate/fedgate/pkg/observability"
)

// ClaimsFetcher resolves an access token into identity claims when a
// request carries a token but no claims of its own.
type ClaimsFetcher interface {
	FetchClaims(ctx context.Context, accessToken, tokenType string) (claims.Set, error)
}

// TeamLister lists the team memberships available to an access token.
type TeamLister interface {
	UserTeams(ctx context.Context, accessToken, tokenType string) ([]string, error)
}

// Server represents the decision API server
type Server struct {
	router         *mux.Router
	engine         *authz.Engine
	table          *idp.Table
	defaultClaim   string
	fallbackClaims []string
	logger         *observability.Logger
	metrics        *observability.Metrics
	health         *observability.HealthChecker
	audit          audit.Logger
	rateLimiter    *httputil.RateLimiter
	userinfo       ClaimsFetcher
	teams          TeamLister
}

// ServerConfig wires the server's collaborators
type ServerConfig struct {
	Engine         *authz.Engine
	Table          *idp.Table
	DefaultClaim   string
	FallbackClaims []string
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	Registry       *prometheus.Registry
	Health         *observability.HealthChecker
	Audit          audit.Logger
	RateLimiter    *httputil.RateLimiter

	// Userinfo, when set, backfills claims for requests whose auth
	// state carries only a token. Teams, when set, serves the
	// include_teams option on authorize responses.
	Userinfo ClaimsFetcher
	Teams    TeamLister
}

// NewServer creates the API server and registers all routes
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	health := cfg.Health
	if health == nil {
		health = observability.NewHealthChecker()
	}
	auditLog := cfg.Audit
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}

	s := &Server{
		router:         mux.NewRouter(),
		engine:         cfg.Engine,
		table:          cfg.Table,
		defaultClaim:   cfg.DefaultClaim,
		fallbackClaims: cfg.FallbackClaims,
		logger:         logger,
		metrics:        cfg.Metrics,
		health:         health,
		audit:          auditLog,
		rateLimiter:    cfg.RateLimiter,
		userinfo:       cfg.Userinfo,
		teams:          cfg.Teams,
	}

	s.setupRoutes(cfg.Registry)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(registry *prometheus.Registry) {
	// Decision routes
	s.router.HandleFunc("/api/v1/authorize", s.handleAuthorize).Methods("POST")
	s.router.HandleFunc("/api/v1/policy/idps", s.handleListIdPs).Methods("GET")

	// Health routes
	s.router.HandleFunc("/health/live", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/health/ready", s.health.Readiness).Methods("GET")

	// Metrics route
	if registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(registry)).Methods("GET")
	}
}

// Handler returns the router wrapped with the standard middleware chain
func (s *Server) Handler() http.Handler {
	middleware := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
	}
	if s.rateLimiter != nil {
		middleware = append(middleware, httputil.RateLimitMiddleware(s.rateLimiter))
	}
	if s.metrics != nil {
		middleware = append(middleware, observability.HTTPMetricsMiddleware(s.metrics))
	}
	return httputil.Chain(middleware...)(s.router)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
