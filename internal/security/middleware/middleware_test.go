package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/security"
	"github.com/shineinfo/crm-backend/internal/security/audit"
	"github.com/shineinfo/crm-backend/internal/security/auth"
	"github.com/shineinfo/crm-backend/internal/security/ratelimit"
)

func newProtectedRouter(tm *auth.TokenManager) *mux.Router {
	log := zap.NewNop()
	r := mux.NewRouter()
	r.Use(JWTMiddleware(tm, log))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	r.Handle("/api/leads", RequirePermission(security.NewAuthorizationService(log), audit.NewLogger(log), security.PermReadLeads)(ok))
	r.Handle("/api/admin/reminders/run", RequirePermission(security.NewAuthorizationService(log), audit.NewLogger(log), security.PermRunReminders)(ok))
	r.Handle("/api/employees/{id}/contract/preview", ok)
	return r
}

func serve(t *testing.T, h http.Handler, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestJWTAndPermissions(t *testing.T) {
	tm := auth.NewTokenManager("secret", "")
	r := newProtectedRouter(tm)

	sales, err := tm.GenerateToken("u1", "s@x.io", "sales", time.Hour)
	require.NoError(t, err)
	admin, err := tm.GenerateToken("u2", "a@x.io", "admin", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, serve(t, r, "/api/leads", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(t, r, "/api/leads", "garbage"))
	assert.Equal(t, http.StatusNoContent, serve(t, r, "/api/leads", sales))
	assert.Equal(t, http.StatusForbidden, serve(t, r, "/api/admin/reminders/run", sales))
	assert.Equal(t, http.StatusNoContent, serve(t, r, "/api/admin/reminders/run", admin))
	assert.Equal(t, http.StatusNoContent, serve(t, r, "/api/employees/abc/contract/preview", ""))
}

func TestAuthDisabledWithoutTokenManager(t *testing.T) {
	r := newProtectedRouter(nil)
	assert.Equal(t, http.StatusNoContent, serve(t, r, "/api/admin/reminders/run", ""))
}

func TestIsPublic(t *testing.T) {
	assert.True(t, IsPublic("/api/push/subscribe"))
	assert.True(t, IsPublic("/api/employees/42/contract/download"))
	assert.False(t, IsPublic("/api/employees/42/contract"))
	assert.False(t, IsPublic("/api/employees"))
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	var seen string
	h := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(audit.RequestIDKey{}).(string)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leads", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(nil, 1, time.Minute, nil)
	defer limiter.Stop()
	h := RateLimitMiddleware(limiter, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	assert.Equal(t, http.StatusOK, serve(t, h, "/api/leads", ""))
	assert.Equal(t, http.StatusTooManyRequests, serve(t, h, "/api/leads", ""))
	assert.Equal(t, http.StatusOK, serve(t, h, "/healthz", ""))
}

func TestValidateContentTypeAndSanitize(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})
	h := ValidateContentType(zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/employees", strings.NewReader("--b--"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	s := SanitizeInputs(zap.NewNop())(next)
	assert.Equal(t, http.StatusBadRequest, serve(t, s, "/api/leads?q=%3Cscript%3E", ""))
	assert.Equal(t, http.StatusOK, serve(t, s, "/api/employees/1/documents/resume/employees/a.pdf", ""))
}
