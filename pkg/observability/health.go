package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker provides health check functionality
type HealthChecker struct {
	ready atomic.Bool
}

// NewHealthChecker creates a new health checker. The service starts out
// not ready; SetReady is called once the policy table has been loaded
// and validated.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// SetReady marks the service ready (or not ready) to serve decisions
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Liveness returns a simple liveness probe (always returns 200 if server is running)
func (h *HealthChecker) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness reports whether the authorization policy has been loaded
func (h *HealthChecker) Readiness(w http.ResponseWriter, _ *http.Request) {
	status := StatusHealthy
	code := http.StatusOK
	if !h.ready.Load() {
		status = StatusUnhealthy
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
	})
}
