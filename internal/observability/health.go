package observability

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the payload served on the local health endpoint.
type HealthStatus struct {
	Status    string                     `json:"status"`
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Timestamp string                     `json:"timestamp"`
	Services  map[string]ComponentStatus `json:"services,omitempty"`
}

// ComponentStatus reports one service's configuration/readiness state.
type ComponentStatus struct {
	Status  string `json:"status"` // configured, not_configured
	Message string `json:"message,omitempty"`
}

// StatusFunc reports the current component states. Supplied by the caller so
// this package does not import the service packages.
type StatusFunc func() map[string]ComponentStatus

// HealthCheckHandler serves liveness.
func HealthCheckHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:    "healthy",
			Service:   "podassist",
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}

// ReadinessHandler serves readiness including per-service configured state.
// A degraded service does not fail readiness: the app runs with features
// disabled rather than crashing.
func ReadinessHandler(version string, statusFn StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:    "ready",
			Service:   "podassist",
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if statusFn != nil {
			status.Services = statusFn()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}
