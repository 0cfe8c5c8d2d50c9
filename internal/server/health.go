package server

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp   ComponentStatus = "up"
	ComponentStatusDown ComponentStatus = "down"
)

const probeTimeout = 2 * time.Second

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
}

type statusResp struct {
	Status        string `json:"status"`
	DBStatus      string `json:"db_status"`
	PanoramaCount int64  `json:"panorama_count"`
}

// statusHandler serves GET /status. It always answers 200.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Status(r.Context())
	db := "disconnected"
	if st.Connected {
		db = "connected"
	}
	writeJSON(w, http.StatusOK, statusResp{
		Status:        "ok",
		DBStatus:      db,
		PanoramaCount: st.PanoramaCount,
	})
}

// HandleHealth reports every configured component. Only a down database
// makes the service unhealthy; other failures degrade it.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// HandleReady is the readiness probe: the database must answer a ping.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	if c := s.probe(r.Context(), "database"); c.Status != ComponentStatusUp {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "database unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleLive provides a liveness probe (is the process running?)
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp:  time.Now().UTC(),
		Version:    s.version,
		Components: make(map[string]ComponentHealth, len(s.checks)),
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		health.Components[name] = s.probe(ctx, name)
	}
	health.Status = determineOverallHealth(health.Components)
	return health
}

func (s *Server) probe(ctx context.Context, name string) ComponentHealth {
	p, ok := s.checks[name]
	if !ok || p == nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: "not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: err.Error()}
	}
	return ComponentHealth{
		Status:    ComponentStatusUp,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}
}

func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	status := HealthStatusHealthy
	for name, c := range components {
		if c.Status == ComponentStatusUp {
			continue
		}
		if name == "database" {
			return HealthStatusUnhealthy
		}
		status = HealthStatusDegraded
	}
	return status
}
