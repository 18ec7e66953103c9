package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/services/audit"
	"github.com/upb/order-desk/services/orders"
	"github.com/upb/order-desk/utils"
	"go.uber.org/zap"
)

// OrderService defines the order operations the handler needs
type OrderService interface {
	List(ctx context.Context, userID string, in orders.ListInput) ([]*models.Order, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.Order, error)
	Create(ctx context.Context, userID string, in orders.CreateInput, meta audit.RequestMeta) (*models.Order, error)
	Update(ctx context.Context, userID string, id uuid.UUID, in orders.UpdateInput, meta audit.RequestMeta) (*models.Order, error)
	Delete(ctx context.Context, userID string, id uuid.UUID, meta audit.RequestMeta) error
	Summary(ctx context.Context, userID string) (map[models.OrderStatus]int, error)
}

// SummaryResponse is the body of GET /api/orders/summary
type SummaryResponse struct {
	Counts map[models.OrderStatus]int `json:"counts"`
	Total  int                        `json:"total"`
}

// OrderHandler handles order HTTP requests. Every route sits behind the
// request gate, so the caller's user ID is always in the context.
type OrderHandler struct {
	service OrderService
	logger  *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(service OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /api/orders?status=&limit=&offset=
func (h *OrderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	in := orders.ListInput{
		Status: models.OrderStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	list, err := h.service.List(r.Context(), userID, in)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	limit, offset = orders.NormalizePage(limit, offset)
	_ = utils.WriteList(w, list, limit, offset)
}

// HandleGet handles GET /api/orders/{id}
func (h *OrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, order)
}

// HandleCreate handles POST /api/orders
func (h *OrderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in orders.CreateInput
	if err := utils.DecodeAndValidate(r, &in); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	order, err := h.service.Create(r.Context(), userID, in, requestMeta(r))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, order)
}

// HandleUpdate handles PUT /api/orders/{id}
func (h *OrderHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var in orders.UpdateInput
	if err := utils.DecodeAndValidate(r, &in); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	order, err := h.service.Update(r.Context(), userID, id, in, requestMeta(r))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, order)
}

// HandleDelete handles DELETE /api/orders/{id}
func (h *OrderHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, id, requestMeta(r)); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleSummary handles GET /api/orders/summary
func (h *OrderHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	counts, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	resp := SummaryResponse{Counts: counts}
	if resp.Counts == nil {
		resp.Counts = map[models.OrderStatus]int{}
	}
	for _, n := range resp.Counts {
		resp.Total += n
	}
	_ = utils.WriteOK(w, resp)
}

// orderIDParam parses the {id} URL parameter, writing a 400 when malformed
func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid order ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
