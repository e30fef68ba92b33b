package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestShutdownManager_RunsShutdownFuncs(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, nil, time.Second)

	called := false
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		called = true
		return nil
	})

	if err := sm.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !called {
		t.Error("shutdown function was not called")
	}
}

func TestShutdownManager_ReportsFuncErrors(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, nil, time.Second)

	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return errors.New("cleanup failed")
	})

	if err := sm.Shutdown(); err == nil {
		t.Error("Shutdown() = nil, want error")
	}
}

func TestShutdownManager_DrainsHealth(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	health := NewHealthChecker()
	health.SetReady(true)

	sm := NewShutdownManager(logger, nil, health, time.Second)
	if err := sm.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	rec := httptest.NewRecorder()
	health.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness after shutdown = %v, want 503", rec.Code)
	}
}

func TestShutdownManager_TimesOut(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, nil, 20*time.Millisecond)

	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return ctx.Err()
	})

	if err := sm.Shutdown(); err == nil {
		t.Error("Shutdown() = nil, want timeout error")
	}
}
