package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCredentialPassthrough(t *testing.T) {
	cases := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"api key header", HeaderAPIKey, " k1 ", "k1"},
		{"bearer", "Authorization", "Bearer k2", "k2"},
		{"raw authorization", "Authorization", "k3", "k3"},
		{"none", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := CredentialPassthrough(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetAPIKeyFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/v1/analyze", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, int64(2), fields["bytes"])
	assert.Equal(t, "/x", fields["path"])
}

type recordedRequest struct {
	method, path string
	status       int
}

type stubHTTPRecorder struct {
	reqs     []recordedRequest
	inFlight int
	peak     int
}

func (s *stubHTTPRecorder) RecordHTTPRequest(method, path string, status int, _ time.Duration) {
	s.reqs = append(s.reqs, recordedRequest{method, path, status})
}
func (s *stubHTTPRecorder) InFlightInc() {
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
}
func (s *stubHTTPRecorder) InFlightDec() { s.inFlight-- }

func TestMetrics_UsesRoutePattern(t *testing.T) {
	rec := &stubHTTPRecorder{}
	r := chi.NewRouter()
	r.Use(Metrics(rec))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))

	require.Len(t, rec.reqs, 1)
	assert.Equal(t, recordedRequest{http.MethodGet, "/items/{id}", http.StatusNotFound}, rec.reqs[0])
	assert.Equal(t, 0, rec.inFlight)
	assert.Equal(t, 1, rec.peak)
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/analyze", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:3333"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1111"), "other clients keep their own budget")
}

func TestValidateVideoName(t *testing.T) {
	ext, err := ValidateVideoName("Screen Recording.MOV")
	require.NoError(t, err)
	assert.Equal(t, ".mov", ext)

	for _, name := range []string{"", "notes.txt", "clip", "evil.mp4.exe", "\x00"} {
		_, err := ValidateVideoName(name)
		assert.Error(t, err, name)
	}
}

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{
		"storage": CheckerFunc(func(context.Context) error { return errors.New("bucket missing") }),
	})(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "bucket missing")

	rr = httptest.NewRecorder()
	HealthHandler(nil)(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReadinessHandler(t *testing.T) {
	info := GatewayInfo{Provider: "gemini", Model: "gemini-2.5-flash", CredentialEnv: "GOOGLE_API_KEY"}

	rr := httptest.NewRecorder()
	ReadinessHandler(info, nil)(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body ReadinessStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, info, body.Gateway)

	rr = httptest.NewRecorder()
	ReadinessHandler(info, map[string]HealthChecker{
		"minio": CheckerFunc(func(context.Context) error { return errors.New("unreachable") }),
	})(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "unreachable")
	assert.Contains(t, rr.Body.String(), `"credential_env":"GOOGLE_API_KEY"`)
}
