package handlers

import (
	"context"
	"net/http"

	"github.com/upb/order-desk/services/seed"
	"github.com/upb/order-desk/utils"
	"go.uber.org/zap"
)

// Seeder creates the demo account and its sample orders
type Seeder interface {
	Seed(ctx context.Context) (*seed.Result, error)
}

// DevHandler serves development-only endpoints
type DevHandler struct {
	seeder  Seeder
	enabled bool
	logger  *zap.Logger
}

// NewDevHandler creates a new DevHandler. When enabled is false every
// endpoint answers 404.
func NewDevHandler(seeder Seeder, enabled bool, logger *zap.Logger) *DevHandler {
	return &DevHandler{
		seeder:  seeder,
		enabled: enabled,
		logger:  logger,
	}
}

// HandleSeed handles POST /api/dev/seed
func (h *DevHandler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	if !h.enabled || h.seeder == nil {
		_ = utils.WriteNotFound(w, "")
		return
	}

	result, err := h.seeder.Seed(r.Context())
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	if result.OrdersCreated > 0 {
		_ = utils.WriteCreated(w, result)
		return
	}
	_ = utils.WriteOK(w, result)
}
