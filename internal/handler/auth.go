package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/security/middleware"
	"github.com/shineinfo/crm-backend/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthHandler{
		authService: authService,
		logger:      logger.With(zap.String("handler", "auth")),
	}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents change password request
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Register handles POST /api/auth/register. Only an authenticated admin may
// choose the role; everyone else is registered as sales.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode register request", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}

	role := domain.RoleSales
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil && domain.Role(claims.Role) == domain.RoleAdmin && req.Role != "" {
		role = req.Role
	}

	result, err := h.authService.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		writeError(w, h.logger, err, "", "Registration failed")
		return
	}
	writeData(w, http.StatusCreated, result, "User registered successfully")
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode login request", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err, "", "Login failed")
		return
	}
	writeData(w, http.StatusOK, result, "")
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeMessage(w, http.StatusBadRequest, "oldPassword and newPassword are required")
		return
	}

	if err := h.authService.ChangePassword(r.Context(), claims.UserID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, h.logger, err, "User not found", "Server error")
		return
	}

	h.logger.Info("user changed password", zap.String("user_id", claims.UserID))
	writeMessage(w, http.StatusOK, "Password changed successfully")
}
