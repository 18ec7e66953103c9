package handlers

import (
	"context"
	"net/http"

	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/services/audit"
	"github.com/upb/order-desk/utils"
	"go.uber.org/zap"
)

// Audit log page bounds
const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditReader exposes the stored audit trail
type AuditReader interface {
	ListForActor(ctx context.Context, actorID string, limit, offset int) ([]*models.AuditLog, error)
	GetStats() audit.Stats
}

// AuditHandler serves the caller's own audit trail
type AuditHandler struct {
	reader AuditReader
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(reader AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		reader: reader,
		logger: logger,
	}
}

// HandleList handles GET /api/audit/logs?limit=&offset=
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	if limit == 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	logs, err := h.reader.ListForActor(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list audit logs", zap.String("user_id", userID), zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to list audit logs")
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	_ = utils.WriteList(w, logs, limit, offset)
}

// HandleStats handles GET /api/audit/stats
func (h *AuditHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.reader.GetStats())
}
