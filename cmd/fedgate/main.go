package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fedgate/fedgate/pkg/api"
	"github.com/fedgate/fedgate/pkg/audit"
	"github.com/fedgate/fedgate/pkg/authz"
	"github.com/fedgate/fedgate/pkg/config"
	"github.com/fedgate/fedgate/pkg/httputil"
	"github.com/fedgate/fedgate/pkg/membership"
	"github.com/fedgate/fedgate/pkg/observability"
	"github.com/fedgate/fedgate/pkg/sso"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// Malformed policy must never serve; fail before binding a port.
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	health := observability.NewHealthChecker()

	var auditLog audit.Logger = audit.NopLogger{}
	if cfg.Audit.LogDir != "" {
		fileLog, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.Audit.LogDir,
			Rotate:   cfg.Audit.Rotate,
			MaxSize:  cfg.Audit.MaxSize,
			MaxFiles: cfg.Audit.MaxFiles,
		})
		if err != nil {
			logger.WithError(err).Error("failed to open audit log")
			os.Exit(1)
		}
		auditLog = fileLog
	}

	var rateLimiter *httputil.RateLimiter
	if cfg.Server.RateLimitPerSecond > 0 {
		rateLimiter = httputil.NewRateLimiter(httputil.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitPerSecond,
			Burst:             cfg.Server.RateLimitBurst,
		})
	}

	var userinfo api.ClaimsFetcher
	if cfg.SSO.IssuerURL != "" || cfg.SSO.UserinfoURL != "" {
		client, err := sso.NewUserinfoClient(context.Background(), sso.ClientConfig{
			IssuerURL:   cfg.SSO.IssuerURL,
			UserinfoURL: cfg.SSO.UserinfoURL,
			HTTPClient:  &http.Client{Timeout: cfg.Upstream.RequestTimeout},
		})
		if err != nil {
			logger.WithError(err).Error("failed to configure userinfo client")
			os.Exit(1)
		}
		userinfo = client
	}

	verifier := membership.NewVerifier(membership.Config{
		APIBase:           cfg.Upstream.APIBase,
		HTTPClient:        &http.Client{Timeout: cfg.Upstream.RequestTimeout},
		MaxPages:          cfg.Upstream.MaxPages,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
		Logger:            logger,
		Metrics:           metrics,
	})

	engine := authz.NewEngine(authz.EngineConfig{
		Table:                cfg.Policy.Table(),
		AllowedUsers:         cfg.Policy.AllowedUsers,
		AllowedOrganizations: cfg.Policy.AllowedOrganizations,
		DefaultClaim:         cfg.Policy.DefaultUsernameClaim,
		FallbackClaims:       cfg.Policy.AdditionalUsernameClaims,
		Verifier:             verifier,
		ConcurrentChecks:     cfg.Upstream.ConcurrentChecks,
		Logger:               logger,
		Metrics:              metrics,
	})

	server := api.NewServer(api.ServerConfig{
		Engine:         engine,
		Table:          cfg.Policy.Table(),
		DefaultClaim:   cfg.Policy.DefaultUsernameClaim,
		FallbackClaims: cfg.Policy.AdditionalUsernameClaims,
		Logger:         logger,
		Metrics:        metrics,
		Registry:       registry,
		Health:         health,
		Audit:          auditLog,
		RateLimiter:    rateLimiter,
		Userinfo:       userinfo,
		Teams:          verifier,
	})
	health.SetReady(true)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":          addr,
			"idp_policies":  cfg.Policy.Table().Len(),
			"allowed_users": len(cfg.Policy.AllowedUsers),
			"allowed_orgs":  len(cfg.Policy.AllowedOrganizations),
		}).Info("starting authorization gateway")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdown := observability.NewShutdownManager(logger, httpServer, health, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return auditLog.Close()
	})
	if err := shutdown.Shutdown(); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}
