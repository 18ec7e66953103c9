package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/services"
	"github.com/upb/order-desk/services/audit"
	"github.com/upb/order-desk/services/auth"
	"github.com/upb/order-desk/utils"
	"go.uber.org/zap"
)

// LoginService authenticates users by email and password
type LoginService interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// LoginAuditor records rejected logins
type LoginAuditor interface {
	LogLoginFailed(email string, meta audit.RequestMeta) error
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	service LoginService
	auditor LoginAuditor
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service LoginService, auditor LoginAuditor, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		auditor: auditor,
		logger:  logger,
	}
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) && h.auditor != nil {
			if auditErr := h.auditor.LogLoginFailed(models.NormalizeEmail(req.Email), requestMeta(r)); auditErr != nil {
				h.logger.Warn("failed to audit rejected login", zap.Error(auditErr))
			}
		}
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}
