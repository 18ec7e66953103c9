package handlers

import (
	"context"
	"net/http"

	"github.com/upb/order-desk/services/assistant"
	"github.com/upb/order-desk/utils"
	"go.uber.org/zap"
)

// AssistantService answers chat messages about the caller's orders
type AssistantService interface {
	Chat(ctx context.Context, userID string, in assistant.ChatInput) (*assistant.ChatResult, error)
}

// AssistantHandler handles chat assistant HTTP requests
type AssistantHandler struct {
	service AssistantService
	logger  *zap.Logger
}

// NewAssistantHandler creates a new AssistantHandler
func NewAssistantHandler(service AssistantService, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /api/assistant/chat
func (h *AssistantHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in assistant.ChatInput
	if err := utils.DecodeAndValidate(r, &in); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Chat(r.Context(), userID, in)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}
