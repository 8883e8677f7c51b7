package monitoring

import (
	"encoding/json"
	"net/http"
	"time"
)

var startTime = time.Now()

// EngineProbe exposes what the health check needs from the engine
type EngineProbe interface {
	// Health returns the state name, the end of the last completed cycle and the last cycle error
	Health() (state string, lastCycle time.Time, lastError string)
}

type HealthChecker struct {
	probe    EngineProbe
	maxStale time.Duration
	now      func() time.Time
}

type HealthStatus struct {
	Status    string    `json:"status"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	LastCycle time.Time `json:"last_cycle"`
	Uptime    string    `json:"uptime"`
	Error     string    `json:"error,omitempty"`
}

// NewHealthChecker reports degraded once no cycle completed within maxStale
func NewHealthChecker(probe EngineProbe, maxStale time.Duration) *HealthChecker {
	return &HealthChecker{
		probe:    probe,
		maxStale: maxStale,
		now:      time.Now,
	}
}

// Check evaluates the engine health
func (h *HealthChecker) Check() HealthStatus {
	state, lastCycle, lastErr := h.probe.Health()
	now := h.now()

	status := "healthy"
	switch {
	case state != "RUNNING":
		status = "unhealthy"
	case lastErr != "":
		status = "degraded"
	case !lastCycle.IsZero() && now.Sub(lastCycle) > h.maxStale:
		status = "degraded"
	}

	return HealthStatus{
		Status:    status,
		State:     state,
		Timestamp: now,
		LastCycle: lastCycle,
		Uptime:    now.Sub(startTime).Round(time.Second).String(),
		Error:     lastErr,
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Check()

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}

// StatusHandler serves whatever snapshot returns as JSON
func StatusHandler(snapshot func() interface{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshot()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// NewServeMux mounts /metrics, /health and /status
func NewServeMux(health *HealthChecker, status http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	mux.Handle("/health", health)
	mux.Handle("/status", status)
	return mux
}
