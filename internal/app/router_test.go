package app

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-retail/internal/auth"
	"github.com/odyssey-erp/odyssey-retail/internal/observability"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
	"github.com/odyssey-erp/odyssey-retail/internal/tally"
)

func newTestRouter(t *testing.T, ready func(*http.Request) error) (http.Handler, *auth.TokenManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenManager("router-secret", time.Hour, "odyssey-retail")
	guard := auth.Middleware{Tokens: tokens, Logger: logger}
	cfg := &Config{AppEnv: "development", RateLimit: 1000, AppRequestTimeout: 5 * time.Second}
	handler := NewRouter(RouterParams{
		Logger:       logger,
		Config:       cfg,
		Guard:        guard,
		TallyHandler: tally.NewHandler(logger, nil, guard),
		Metrics:      observability.NewMetrics(),
		Ready:        ready,
	})
	return handler, tokens
}

func TestRouterHealthz(t *testing.T) {
	handler, _ := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouterHealthzUnavailable(t *testing.T) {
	handler, _ := newTestRouter(t, func(*http.Request) error { return errors.New("db down") })
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	handler, _ := newTestRouter(t, nil)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "retail_http_requests_total")
}

func TestRouterGuardsAPI(t *testing.T) {
	handler, tokens := newTestRouter(t, nil)
	staff, _, err := tokens.Issue(auth.User{ID: 3, Username: "ravi", Role: shared.RoleStaff})
	require.NoError(t, err)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "staff cannot close", token: staff, status: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/tally/close", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	handler, _ := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/invoices", nil)
	req.Header.Set("Origin", "http://pos.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
