package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ShutdownManager coordinates graceful shutdown: the health endpoint
// flips to not-ready first so load balancers drain the instance, then
// the HTTP server stops accepting connections, then registered cleanup
// functions run concurrently under a shared deadline.
type ShutdownManager struct {
	logger          *Logger
	server          *http.Server
	health          *HealthChecker
	shutdownFuncs   []ShutdownFunc
	shutdownTimeout time.Duration
	mu              sync.Mutex
}

// ShutdownFunc is a cleanup function run during shutdown.
type ShutdownFunc func(context.Context) error

// NewShutdownManager creates a shutdown manager for the given server.
// The health checker may be nil.
func NewShutdownManager(logger *Logger, server *http.Server, health *HealthChecker, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:          logger,
		server:          server,
		health:          health,
		shutdownTimeout: timeout,
	}
}

// RegisterShutdownFunc registers a cleanup function to run during shutdown.
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownFuncs = append(sm.shutdownFuncs, fn)
}

// Shutdown drains and stops the server, then runs the registered
// cleanup functions. It returns the first class of failure it hits.
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()

	if sm.health != nil {
		sm.health.SetReady(false)
	}

	if sm.server != nil {
		sm.logger.Info("shutting down http server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("http server shutdown error")
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
	}

	sm.mu.Lock()
	funcs := sm.shutdownFuncs
	sm.mu.Unlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(funcs))
	for i, fn := range funcs {
		wg.Add(1)
		go func(index int, shutdownFn ShutdownFunc) {
			defer wg.Done()
			if err := shutdownFn(ctx); err != nil {
				sm.logger.WithError(err).Errorf("shutdown function %d failed", index)
				errChan <- err
			}
		}(i, fn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sm.logger.Warn("shutdown timeout reached")
		return fmt.Errorf("shutdown timeout reached")
	}

	close(errChan)
	var count int
	for range errChan {
		count++
	}
	if count > 0 {
		return fmt.Errorf("shutdown completed with %d errors", count)
	}

	sm.logger.Info("graceful shutdown complete")
	return nil
}
