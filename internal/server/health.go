package server

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/jittakal/sockeventwriter/internal/coordinator"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LivenessHandler returns a handler for liveness probes.
func LivenessHandler(checker HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		writeResponse(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, logger)
	}
}

// ReadinessHandler returns a handler for readiness probes. The response
// lists every endpoint's task state.
func ReadinessHandler(checker HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeResponse(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		}, logger)
	}
}

func writeResponse(w http.ResponseWriter, statusCode int, response HealthResponse, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// TaskStatusSource exposes live writer task states.
type TaskStatusSource interface {
	Status() []coordinator.TaskStatus
}

// CoordinatorChecker derives health from the coordinator's task table.
// The process is ready once a run has started and no task has failed.
type CoordinatorChecker struct {
	source TaskStatusSource
}

// NewCoordinatorChecker creates a checker over source.
func NewCoordinatorChecker(source TaskStatusSource) *CoordinatorChecker {
	return &CoordinatorChecker{source: source}
}

// Liveness always reports true while the process serves requests.
func (c *CoordinatorChecker) Liveness() bool {
	return true
}

// Readiness reports whether tasks exist and none has failed.
func (c *CoordinatorChecker) Readiness(ctx context.Context) bool {
	tasks := c.source.Status()
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if t.State == coordinator.StateFailed {
			return false
		}
	}
	return true
}

// GetStatus maps each endpoint identity to its task state.
func (c *CoordinatorChecker) GetStatus() map[string]string {
	tasks := c.source.Status()
	status := make(map[string]string, len(tasks))
	for _, t := range tasks {
		status[t.Identity] = string(t.State)
	}
	return status
}
