package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const checkTimeout = 5 * time.Second

// HealthChecker defines interface for health checking
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a plain function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// HealthStatus represents the health status
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

// CheckStatus represents individual check status
type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// GatewayInfo describes the analysis gateway the process is configured for.
type GatewayInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	// CredentialEnv is the variable the gateway falls back to.
	CredentialEnv string `json:"credential_env"`
	// DefaultCredential is false when every request must bring its own key.
	DefaultCredential bool `json:"default_credential"`
}

// ReadinessStatus is the body of /health/ready.
type ReadinessStatus struct {
	HealthStatus
	Gateway GatewayInfo `json:"gateway"`
}

func runChecks(ctx context.Context, checkers map[string]HealthChecker) HealthStatus {
	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckStatus),
	}
	for name, checker := range checkers {
		if err := checker.Check(ctx); err != nil {
			health.Status = "unhealthy"
			health.Checks[name] = CheckStatus{
				Status:  "unhealthy",
				Message: err.Error(),
			}
		} else {
			health.Checks[name] = CheckStatus{
				Status: "healthy",
			}
		}
	}
	return health
}

func writeStatus(w http.ResponseWriter, healthy bool, body any) {
	statusCode := http.StatusOK
	if !healthy {
		statusCode = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// HealthHandler runs every dependency check (staging bucket, gateway config).
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		health := runChecks(ctx, checkers)
		writeStatus(w, health.Status == "healthy", health)
	}
}

// ReadinessHandler reports whether analyses can be accepted. It runs the same
// checks as HealthHandler and describes the configured gateway, so operators
// can tell a missing default credential from a broken dependency.
func ReadinessHandler(info GatewayInfo, checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		health := runChecks(ctx, checkers)
		if health.Status == "healthy" {
			health.Status = "ready"
		}
		writeStatus(w, health.Status == "ready", ReadinessStatus{HealthStatus: health, Gateway: info})
	}
}

// LivenessHandler creates a liveness check handler (simplest check)
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
