package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

// HealthChecker defines interface for health checking
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

const checkTimeout = 5 * time.Second

// HealthStatus represents the health status
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

// CheckStatus represents individual check status
type CheckStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// runChecks calls every checker concurrently; a slow classifier must not hold
// up the database check.
func runChecks(ctx context.Context, checkers map[string]HealthChecker) map[string]CheckStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]CheckStatus, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started := time.Now()
			err := checker.Check(ctx)
			st := CheckStatus{Status: "healthy", LatencyMS: time.Since(started).Milliseconds()}
			if err != nil {
				st.Status = "unhealthy"
				st.Message = err.Error()
			}
			mu.Lock()
			out[name] = st
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

func failing(checks map[string]CheckStatus) []string {
	var names []string
	for name, st := range checks {
		if st.Status != "healthy" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// HealthHandler reports every dependency (session store, image store, classifier).
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now(),
			Checks:    runChecks(r.Context(), checkers),
		}

		statusCode := http.StatusOK
		if len(failing(health.Checks)) > 0 {
			health.Status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(health)
	}
}

// ReadinessHandler answers 503 until every dependency answers, naming the ones
// that do not. Unlike HealthHandler it carries no per-check detail.
func ReadinessHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		down := failing(runChecks(r.Context(), checkers))

		body := map[string]any{
			"status":    "ready",
			"timestamp": time.Now(),
		}
		statusCode := http.StatusOK
		if len(down) > 0 {
			body["status"] = "not ready"
			body["waiting_on"] = down
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(body)
	}
}

// LivenessHandler only reports that the process serves requests.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
