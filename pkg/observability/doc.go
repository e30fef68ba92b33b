// Package observability provides structured logging, Prometheus metrics,
// and health checks.
//
// # Overview
//
// This package centralizes observability infrastructure: JSON logging,
// metrics collection, health endpoints, and graceful shutdown.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Info("server started")
//
// Context-aware logging:
//
//	logger.WithField("request_id", reqID).WithError(err).Error("request failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveDecision("allow", "", elapsed)
//
// The recording helpers are nil-safe, so callers without a registry can
// pass a nil *Metrics.
//
// # Health Checks
//
//	health := observability.NewHealthChecker()
//	mux.HandleFunc("/health/live", health.Liveness)
//	mux.HandleFunc("/health/ready", health.Readiness)
//	health.SetReady(true)
//
// # Related Packages
//
//   - pkg/httputil: Request ID and logging middleware
//   - pkg/api: Registers the health and metrics routes
package observability
