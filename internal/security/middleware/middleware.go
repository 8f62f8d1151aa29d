package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/security"
	"github.com/shineinfo/crm-backend/internal/security/audit"
	"github.com/shineinfo/crm-backend/internal/security/auth"
	"github.com/shineinfo/crm-backend/internal/security/ratelimit"
)

type ClaimsContextKey struct{}
type authDisabledKey struct{}

const requestIDHeader = "X-Request-ID"

// Public links an employee opens without a staff account.
var publicContractSuffixes = []string{"/contract/preview", "/contract/accept", "/contract/download"}

// IsPublic reports whether path is served without a staff token.
func IsPublic(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics",
		"/api/auth/login", "/api/auth/register",
		"/api/push/subscribe", "/api/push/vapid-public-key":
		return true
	}
	if strings.HasPrefix(path, "/api/employees/") {
		for _, s := range publicContractSuffixes {
			if strings.HasSuffix(path, s) {
				return true
			}
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger tags each request with an id and logs its outcome.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)
			ctx := context.WithValue(r.Context(), audit.RequestIDKey{}, requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			log.Info("request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// JWTMiddleware requires a valid bearer token outside the public paths. A nil
// token manager disables authentication.
func JWTMiddleware(tm *auth.TokenManager, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tm == nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authDisabledKey{}, true)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if IsPublic(r.URL.Path) && authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "Missing authorization token")
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Invalid authorization header")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				log.Debug("rejected token", zap.String("path", r.URL.Path), zap.Error(err))
				writeJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ClaimsContextKey{}, claims)))
		})
	}
}

// RequirePermission rejects callers whose role lacks perm. It is a no-op
// when authentication is disabled.
func RequirePermission(authz *security.AuthorizationService, auditLog *audit.Logger, perm security.Permission) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthDisabled(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeJSONError(w, http.StatusUnauthorized, "Missing authorization token")
				return
			}
			if err := authz.ValidatePermission(domain.Role(claims.Role), perm); err != nil {
				auditLog.LogDenied(r.Context(), claims.UserID, string(perm))
				writeJSONError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware limits each user, or each client address for
// anonymous requests.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + clientIP(r)
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				key = "user:" + claims.UserID
			}

			if !limiter.Allow(r.Context(), key) {
				log.Warn("rate limit exceeded", zap.String("key", key), zap.String("path", r.URL.Path))
				writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records every mutating API call with its outcome.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			userID := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				userID = claims.UserID
			}
			resource := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					resource = tpl
				}
			}
			status := "success"
			if rec.status >= 400 {
				status = "failed"
			}
			auditLog.LogAction(r.Context(), userID, strings.ToLower(r.Method), resource, mux.Vars(r)["id"], status, http.StatusText(rec.status))
		})
	}
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(ClaimsContextKey{}).(*auth.Claims)
	return c
}

// AuthDisabled reports whether the server runs without authentication.
func AuthDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(authDisabledKey{}).(bool)
	return v
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
