package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/upb/order-desk/middleware"
	"github.com/upb/order-desk/services"
	"github.com/upb/order-desk/services/audit"
	"github.com/upb/order-desk/utils"
	"go.uber.org/zap"
)

// statusForError maps a domain error type to an HTTP status
func statusForError(err error) int {
	switch services.GetErrorType(err) {
	case services.ErrorTypeNotFound:
		return http.StatusNotFound
	case services.ErrorTypeValidation:
		return http.StatusBadRequest
	case services.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorTypeForbidden:
		return http.StatusForbidden
	case services.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case services.ErrorTypeConflict:
		return http.StatusConflict
	case services.ErrorTypeExternal:
		return http.StatusBadGateway
	case services.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleServiceError maps domain errors to HTTP responses. Internal errors
// are logged and answered with a generic message.
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status := statusForError(err)
	message := err.Error()
	details := services.GetErrorDetails(err)

	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}

	switch {
	case status == http.StatusInternalServerError:
		logger.Error("internal server error",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.Error(err))
		message = "An internal error occurred"
		details = nil
	case status == http.StatusBadGateway:
		logger.Warn("upstream provider error",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
	case domainErr != nil:
		logger.Debug("handled service error",
			zap.String("type", string(domainErr.Type)),
			zap.String("message", domainErr.Message),
			zap.Any("details", domainErr.Details))
	}

	if len(details) == 0 {
		details = nil
	}
	if err := utils.WriteError(w, status, message, details); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		details := make(map[string]interface{})
		for k, v := range utils.GetValidationFields(err) {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// requireUser returns the authenticated user ID, writing a 401 when the
// request somehow reached a protected handler without one
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserIDFromContext(r.Context())
	if userID == "" {
		_ = utils.WriteUnauthorized(w, "")
		return "", false
	}
	return userID, true
}

// requestMeta collects the request attributes recorded on audit entries
func requestMeta(r *http.Request) audit.RequestMeta {
	return audit.RequestMeta{
		RequestID: middleware.GetRequestIDFromContext(r.Context()),
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// queryInt reads a non-negative integer query parameter. Missing values
// return def; malformed or negative values return ok=false.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// pageParams reads limit and offset, writing a 400 on malformed input
func pageParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, okLimit := queryInt(r, "limit", 0)
	offset, okOffset := queryInt(r, "offset", 0)
	if !okLimit || !okOffset {
		_ = utils.WriteBadRequest(w, "limit and offset must be non-negative integers", nil)
		return 0, 0, false
	}
	return limit, offset, true
}
