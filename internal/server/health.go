package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

// Health is the /health response body.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

func (s *Server) checkHealth(ctx context.Context) Health {
	h := Health{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now().UTC(),
		Version:    s.cfg.Build.Version,
		Components: make(map[string]ComponentHealth),
	}

	// Database
	if s.cfg.DB != nil {
		start := time.Now()
		err := s.cfg.DB.PingContext(ctx)
		latency := float64(time.Since(start).Microseconds()) / 1000.0
		if err != nil {
			h.Components["database"] = ComponentHealth{Status: "down", Message: err.Error(), LatencyMs: latency}
			h.Status = HealthStatusUnhealthy
		} else {
			h.Components["database"] = ComponentHealth{Status: "up", LatencyMs: latency}
		}
	}

	// Object storage
	if s.cfg.Minio != nil {
		start := time.Now()
		exists, err := s.cfg.Minio.BucketExists(ctx, s.cfg.Bucket)
		latency := float64(time.Since(start).Microseconds()) / 1000.0
		switch {
		case err != nil:
			h.Components["storage"] = ComponentHealth{Status: "down", Message: err.Error(), LatencyMs: latency}
			h.Status = HealthStatusUnhealthy
		case !exists:
			h.Components["storage"] = ComponentHealth{Status: "degraded", Message: "bucket missing", LatencyMs: latency}
			if h.Status == HealthStatusHealthy {
				h.Status = HealthStatusDegraded
			}
		default:
			h.Components["storage"] = ComponentHealth{Status: "up", LatencyMs: latency}
		}
	}

	return h
}

// healthHandler reports component checks; 503 when any component is down.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	health := s.checkHealth(ctx)

	code := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(health)
}
