package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// readinessTimeout bounds one readiness check across all dependencies
const readinessTimeout = 5 * time.Second

// Dependency checks one collaborator of the server. A failing critical
// dependency makes the server unhealthy; any other failing one only degrades it.
type Dependency struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) DependencyStatus
}

// HealthStatus is the readiness report of the server
type HealthStatus struct {
	Status       string                      `json:"status"`
	Source       string                      `json:"source,omitempty"`
	Version      string                      `json:"version,omitempty"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the outcome of one dependency check
type DependencyStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMS float64   `json:"latency_ms,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func timed(start time.Time, err error) DependencyStatus {
	status := DependencyStatus{
		Status:    StatusHealthy,
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
		Timestamp: start,
	}
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}
	return status
}

// DatabaseDependency checks the snapshot database. Without it no analysis can run.
func DatabaseDependency(db *sql.DB) Dependency {
	return Dependency{
		Name:     "snapshot",
		Critical: true,
		Check: func(ctx context.Context) DependencyStatus {
			start := time.Now()
			if err := db.PingContext(ctx); err != nil {
				return timed(start, err)
			}
			var one int
			if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
				return timed(start, fmt.Errorf("query failed: %w", err))
			}

			status := timed(start, nil)
			if stats := db.Stats(); stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
				status.Status = StatusDegraded
				status.Message = fmt.Sprintf("all %d connections in use", stats.MaxOpenConnections)
			}
			return status
		},
	}
}

// RedisDependency checks the metadata body cache. Reads fall through to the source
// when it is down.
func RedisDependency(client *redis.Client) Dependency {
	return Dependency{
		Name: "read_cache",
		Check: func(ctx context.Context) DependencyStatus {
			start := time.Now()
			return timed(start, client.Ping(ctx).Err())
		},
	}
}

// DescribeCacheDependency reports the hit ratio of the describe cache. It never fails.
func DescribeCacheDependency(stats func() (hits, misses int64)) Dependency {
	return Dependency{
		Name: "describe_cache",
		Check: func(context.Context) DependencyStatus {
			status := timed(time.Now(), nil)
			hits, misses := stats()
			if total := hits + misses; total > 0 {
				status.Message = fmt.Sprintf("hit ratio %.2f (%d hits, %d misses)", float64(hits)/float64(total), hits, misses)
			} else {
				status.Message = "no lookups yet"
			}
			return status
		},
	}
}

// HealthChecker serves liveness and readiness for one collaborator source
type HealthChecker struct {
	source  string
	version string
	deps    []Dependency
}

// NewHealthChecker creates a checker for the named source type. Dependencies
// are checked in the order given.
func NewHealthChecker(source, version string, deps ...Dependency) *HealthChecker {
	return &HealthChecker{
		source:  source,
		version: version,
		deps:    deps,
	}
}

// Check runs every dependency check
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Source:       h.source,
		Version:      h.version,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus, len(h.deps)),
	}

	for _, d := range h.deps {
		result := d.Check(ctx)
		status.Dependencies[d.Name] = result

		switch {
		case result.Status == StatusHealthy:
		case d.Critical && result.Status == StatusUnhealthy:
			status.Status = StatusUnhealthy
		case status.Status == StatusHealthy:
			status.Status = StatusDegraded
		}
	}

	return status
}

// Liveness answers as long as the process serves HTTP
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness reports 503 only when a critical dependency fails
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

func writeHealth(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(router *mux.Router, checker *HealthChecker) {
	router.HandleFunc("/health", checker.Readiness).Methods("GET")
	router.HandleFunc("/health/live", checker.Liveness).Methods("GET")
	router.HandleFunc("/health/ready", checker.Readiness).Methods("GET")
}
