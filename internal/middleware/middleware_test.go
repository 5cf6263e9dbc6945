package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/metrics"
	"marketplace-api/internal/models"
)

type stubVerifier map[string]models.ClaimedIdentity

func (v stubVerifier) Verify(raw string) (models.ClaimedIdentity, error) {
	if raw == "malformed" {
		return models.ClaimedIdentity{}, apperr.MalformedClaims("Token does not name a principal")
	}
	claimed, ok := v[raw]
	if !ok {
		return models.ClaimedIdentity{}, apperr.Unauthenticated("Invalid or expired token")
	}
	return claimed, nil
}

type stubResolver map[string]models.Identity

func (r stubResolver) Identify(_ context.Context, claimed models.ClaimedIdentity) (models.Identity, error) {
	if claimed.Email == "broken@example.com" {
		return models.Identity{}, errors.New("db down")
	}
	id, ok := r[claimed.Email]
	if !ok {
		return models.Identity{}, apperr.NotFound("User not found")
	}
	return id, nil
}

func newAuthChain(m *metrics.Metrics, roles ...models.Role) http.Handler {
	verifier := stubVerifier{
		"client-token": {Email: "client@example.com"},
		"admin-token":  {Email: "admin@example.com"},
		"ghost-token":  {Email: "ghost@example.com"},
		"broken-token": {Email: "broken@example.com"},
	}
	resolver := stubResolver{
		"client@example.com": {UserID: 1, Email: "client@example.com", Roles: models.NewRoleSet(models.RoleClient)},
		"admin@example.com":  {UserID: 2, Email: "admin@example.com", Roles: models.NewRoleSet(models.RoleAdmin)},
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Write([]byte(id.Email))
	})
	return Authenticate(verifier, resolver, m, zerolog.Nop())(RequireRole(m, roles...)(final))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	handler := newAuthChain(m, models.RoleSeller, models.RoleAdmin)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"no header", "", http.StatusUnauthorized, "unauthenticated"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "unauthenticated"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "unauthenticated"},
		{"malformed claims", "Bearer malformed", http.StatusUnauthorized, "malformed_claims"},
		{"unknown principal", "Bearer ghost-token", http.StatusUnauthorized, "unauthenticated"},
		{"resolver failure", "Bearer broken-token", http.StatusInternalServerError, "internal_error"},
		{"insufficient role", "Bearer client-token", http.StatusForbidden, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthorizationDenied))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthFailures.WithLabelValues("malformed_claims")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthFailures.WithLabelValues("unknown_principal")))
}

func TestAuthenticatePassesIdentity(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	handler := newAuthChain(m, models.RoleSeller, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@example.com", rec.Body.String())
}

func TestRequireRoleWithoutIdentity(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	handler := RequireRole(m, models.RoleClient)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorHandlingRecoversPanic(t *testing.T) {
	handler := ErrorHandling(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Error)
}

func TestRateLimiter(t *testing.T) {
	handler := NewRateLimiter(rate.Limit(0), 1).Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	handler := RequestValidation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("email=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPerformanceMonitoringLabelsRouteTemplate(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	r := mux.NewRouter()
	r.Use(PerformanceMonitoring(m, zerolog.Nop()))
	r.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {}).Methods(http.MethodGet)

	for _, path := range []string{"/items/1", "/items/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestRequestLoggingSetsRequestID(t *testing.T) {
	var seen string
	handler := RequestLogging(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
