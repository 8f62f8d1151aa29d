package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/observability/metrics"
	"github.com/shineinfo/crm-backend/internal/security"
	"github.com/shineinfo/crm-backend/internal/security/audit"
	"github.com/shineinfo/crm-backend/internal/security/auth"
	"github.com/shineinfo/crm-backend/internal/security/middleware"
	"github.com/shineinfo/crm-backend/internal/security/ratelimit"
)

// Handlers groups every endpoint the router mounts. Nil handlers leave their
// routes unmounted.
type Handlers struct {
	Employees *EmployeeHandler
	Contracts *ContractHandler
	Leads     *LeadHandler
	Push      *PushHandler
	Reminders *ReminderHandler
	Auth      *AuthHandler
	Health    *HealthHandler
}

// Security carries the request guards. A nil Tokens disables authentication
// and a nil Limiter disables rate limiting.
type Security struct {
	Tokens  *auth.TokenManager
	Authz   *security.AuthorizationService
	Audit   *audit.Logger
	Limiter *ratelimit.Limiter
}

// NewRouter builds the API router.
func NewRouter(h Handlers, sec Security, log *zap.Logger) *mux.Router {
	if log == nil {
		log = zap.NewNop()
	}
	if sec.Authz == nil {
		sec.Authz = security.NewAuthorizationService(log)
	}
	if sec.Audit == nil {
		sec.Audit = audit.NewLogger(log)
	}

	r := mux.NewRouter()
	if h.Health != nil {
		r.HandleFunc("/healthz", h.Health.Health).Methods(http.MethodGet)
		r.HandleFunc("/readyz", h.Health.Ready).Methods(http.MethodGet)
	}
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(
		middleware.RequestLogger(log),
		metrics.HTTPMetricsMiddleware,
		middleware.JWTMiddleware(sec.Tokens, log),
	)
	if sec.Limiter != nil {
		api.Use(middleware.RateLimitMiddleware(sec.Limiter, log))
	}
	api.Use(
		middleware.SanitizeInputs(log),
		middleware.ValidateContentType(log),
		middleware.AuditMiddleware(sec.Audit),
	)

	guard := func(perm security.Permission, fn http.HandlerFunc) http.Handler {
		return middleware.RequirePermission(sec.Authz, sec.Audit, perm)(fn)
	}

	if h.Auth != nil {
		api.HandleFunc("/auth/register", h.Auth.Register).Methods(http.MethodPost)
		api.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost)
		api.HandleFunc("/auth/change-password", h.Auth.ChangePassword).Methods(http.MethodPost)
	}

	if e := h.Employees; e != nil {
		api.Handle("/employees", guard(security.PermWriteEmployees, e.Create)).Methods(http.MethodPost)
		api.Handle("/employees", guard(security.PermReadEmployees, e.List)).Methods(http.MethodGet)
		api.Handle("/employees/{employeeId}/documents/{docType}/{public_id:.+}", guard(security.PermWriteEmployees, e.DeleteDocument)).Methods(http.MethodDelete)
		api.Handle("/employees/{id}/toggle-current", guard(security.PermWriteEmployees, e.ToggleCurrent)).Methods(http.MethodPatch)
		api.Handle("/employees/{id}", guard(security.PermReadEmployees, e.Get)).Methods(http.MethodGet)
		api.Handle("/employees/{id}", guard(security.PermWriteEmployees, e.Update)).Methods(http.MethodPut)
		api.Handle("/employees/{id}", guard(security.PermDeleteEmployees, e.Delete)).Methods(http.MethodDelete)
	}

	if c := h.Contracts; c != nil {
		// Employees open these links without a staff account.
		api.HandleFunc("/employees/{id}/contract/preview", c.Preview).Methods(http.MethodGet)
		api.HandleFunc("/employees/{id}/contract/accept", c.Accept).Methods(http.MethodPost)
		api.HandleFunc("/employees/{id}/contract/download", c.Download).Methods(http.MethodGet)
		api.Handle("/employees/{id}/contract", guard(security.PermManageContracts, c.Update)).Methods(http.MethodPut)
	}

	if l := h.Leads; l != nil {
		api.Handle("/leads", guard(security.PermReadLeads, l.List)).Methods(http.MethodGet)
		api.Handle("/leads", guard(security.PermWriteLeads, l.Create)).Methods(http.MethodPost)
		api.Handle("/leads/{id}", guard(security.PermReadLeads, l.Get)).Methods(http.MethodGet)
		api.Handle("/leads/{id}", guard(security.PermWriteLeads, l.Update)).Methods(http.MethodPut)
		api.Handle("/leads/{id}", guard(security.PermDeleteLeads, l.Delete)).Methods(http.MethodDelete)
	}

	if p := h.Push; p != nil {
		api.HandleFunc("/push/subscribe", p.Subscribe).Methods(http.MethodPost)
		api.HandleFunc("/push/vapid-public-key", p.PublicKey).Methods(http.MethodGet)
	}

	if h.Reminders != nil {
		api.Handle("/admin/reminders/run", guard(security.PermRunReminders, h.Reminders.Run)).Methods(http.MethodPost)
	}

	return r
}
