package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const readyTimeout = 5 * time.Second

// HealthChecker is a dependency that can be pinged.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependency names a HealthChecker for readiness reporting.
type Dependency struct {
	Name    string
	Checker HealthChecker
}

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	deps    []Dependency
	logger  *slog.Logger
	started time.Time
}

// NewHealthHandler creates a HealthHandler. A dependency with a nil Checker
// is reported as not configured and does not fail readiness.
func NewHealthHandler(logger *slog.Logger, deps ...Dependency) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{deps: deps, logger: logger, started: time.Now()}
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// Healthz handles GET /healthz. It never touches dependencies.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", UptimeSeconds: h.uptime()})
}

// Readyz handles GET /readyz. Dependencies are pinged concurrently, and any
// failure answers 503. Error details go to the log, not the response.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		checks  = make(map[string]string, len(h.deps))
		healthy = true
	)
	for _, dep := range h.deps {
		if dep.Checker == nil {
			checks[dep.Name] = "not configured"
			continue
		}
		wg.Add(1)
		go func(dep Dependency) {
			defer wg.Done()
			start := time.Now()
			err := dep.Checker.Ping(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				h.logger.Warn("readiness_check_failed",
					slog.String("dependency", dep.Name),
					slog.String("error", err.Error()),
					slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				)
				checks[dep.Name] = "unavailable"
				healthy = false
				return
			}
			checks[dep.Name] = "ok"
		}(dep)
	}
	wg.Wait()

	resp := HealthResponse{Status: "ok", UptimeSeconds: h.uptime(), Checks: checks}
	if !healthy {
		resp.Status = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) uptime() int64 {
	return int64(time.Since(h.started).Seconds())
}
