package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafscan/internal/domain/classification"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(GetClientFromContext(r.Context())))
})

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(KeysFromList([]string{"alpha", " ", "beta"}))(ok)

	tests := []struct {
		name   string
		header string
		value  string
		status int
		client string
	}{
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"bearer", "Authorization", "Bearer alpha", http.StatusOK, "client-1"},
		{"raw", "Authorization", "beta", http.StatusOK, "client-3"},
		{"x-api-key", "X-API-Key", "alpha", http.StatusOK, "client-1"},
		{"wrong", "Authorization", "Bearer gamma", http.StatusUnauthorized, ""},
		{"empty bearer", "Authorization", "Bearer ", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.client, rec.Body.String())
			}
		})
	}
}

func TestAPIKeyAuth_DisabledWithoutKeys(t *testing.T) {
	h := APIKeyAuth(nil)(ok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(0.001, 2)(ok)

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"))
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	h := RateLimitMiddleware(0, 0)(ok)
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"sessions": CheckerFunc(func(context.Context) error { return nil }),
		"images":   CheckerFunc(func(context.Context) error { return errors.New("bucket missing") }),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["sessions"].Status)
	assert.Equal(t, "bucket missing", status.Checks["images"].Message)
}

func TestReadinessHandler(t *testing.T) {
	checkers := map[string]HealthChecker{
		"sessions":   CheckerFunc(func(context.Context) error { return nil }),
		"classifier": CheckerFunc(func(context.Context) error { return errors.New("connection refused") }),
	}

	rec := httptest.NewRecorder()
	ReadinessHandler(checkers).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status    string   `json:"status"`
		WaitingOn []string `json:"waiting_on"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body.Status)
	assert.Equal(t, []string{"classifier"}, body.WaitingOn)

	delete(checkers, "classifier")
	rec = httptest.NewRecorder()
	ReadinessHandler(checkers).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/mango/reset", nil))
	out := buf.String()
	assert.Contains(t, out, "method=POST")
	assert.Contains(t, out, "path=/mango/reset")
	assert.Contains(t, out, "status=303")
}

func TestMetrics(t *testing.T) {
	before := GetMetrics()

	AnalysisRecorder{}.ObserveAnalysis("mango", true, 20*time.Millisecond)
	AnalysisRecorder{}.ObserveAnalysis("mango", false, 10*time.Millisecond)

	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/analyze", nil))

	after := GetMetrics()
	assert.Equal(t, before["analyses_total"].(uint64)+2, after["analyses_total"])
	assert.Equal(t, before["analyses_failed"].(uint64)+1, after["analyses_failed"])
	assert.Equal(t, before["requests_failed"].(uint64)+1, after["requests_failed"])

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"analyses_total"`)
}

func TestValidateCrop(t *testing.T) {
	allowed := []string{"mango", "cashew"}
	assert.NoError(t, ValidateCrop("mango", allowed))
	for _, crop := range []string{"", "../etc", "Mango", "banana"} {
		assert.ErrorIs(t, ValidateCrop(crop, allowed), classification.ErrUnknownCrop, crop)
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "leaf.jpg", SanitizeFilename("leaf.jpg"))
	assert.Equal(t, "leaf.jpg", SanitizeFilename(`C:\Users\me\leaf.jpg`))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "a b.png", SanitizeFilename("a\x00\tb.png"))
	assert.Equal(t, "upload", SanitizeFilename(""))
}
