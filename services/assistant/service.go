// Package assistant answers natural-language questions about a user's orders
// by proxying them, together with a summary of those orders, to a chat
// completion provider.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/services"
	"github.com/upb/order-desk/services/orders"
	"github.com/upb/order-desk/services/providers"
	"go.uber.org/zap"
)

// Call results, used as metric labels
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultRejected = "rejected"
)

const (
	defaultRecentOrders = 10
	defaultMaxHistory   = 10
)

// OrderReader is the read side of the orders service the assistant needs
type OrderReader interface {
	List(ctx context.Context, userID string, in orders.ListInput) ([]*models.Order, error)
	Summary(ctx context.Context, userID string) (map[models.OrderStatus]int, error)
}

// CallRecorder counts provider calls and tokens
type CallRecorder interface {
	RecordAssistantCall(result string, tokens int)
}

// HistoryMessage is a previous turn supplied by the client
type HistoryMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=4000"`
}

// ChatInput is the body of a chat request
type ChatInput struct {
	Message string           `json:"message" validate:"required,max=4000"`
	History []HistoryMessage `json:"history" validate:"max=20,dive"`
}

// ChatResult is the assistant's answer
type ChatResult struct {
	Reply            string          `json:"reply"`
	Model            string          `json:"model"`
	Usage            providers.Usage `json:"usage"`
	OrdersConsidered int             `json:"orders_considered"`
	Redactions       int             `json:"redactions,omitempty"`
}

// Config tunes the assistant
type Config struct {
	Model        string
	MaxTokens    int
	Temperature  float64
	RecentOrders int
	MaxHistory   int
}

// Service is the chat assistant proxy
type Service struct {
	provider providers.Provider
	orders   OrderReader
	recorder CallRecorder
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the assistant. A nil provider leaves the service in
// place but every Chat call fails with ErrAssistantUnavailable.
func NewService(provider providers.Provider, orderReader OrderReader, recorder CallRecorder, config Config, logger *zap.Logger) *Service {
	if config.RecentOrders <= 0 {
		config.RecentOrders = defaultRecentOrders
	}
	if config.MaxHistory <= 0 {
		config.MaxHistory = defaultMaxHistory
	}
	return &Service{
		provider: provider,
		orders:   orderReader,
		recorder: recorder,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Enabled reports whether a provider is configured
func (s *Service) Enabled() bool {
	return s.provider != nil
}

// Chat answers one user message in the context of that user's orders
func (s *Service) Chat(ctx context.Context, userID string, in ChatInput) (*ChatResult, error) {
	if !s.Enabled() {
		return nil, services.ErrAssistantUnavailable
	}

	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, services.ErrEmptyMessage
	}
	if kind, turn, found := detectInjectionInTurns(in.History, message); found {
		s.logger.Warn("assistant message rejected",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.String("turn", turn))
		s.record(ResultRejected, 0)
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrPromptRejected.Message, nil).
			WithDetail("kind", string(kind)).
			WithDetail("turn", turn)
	}

	counts, err := s.orders.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.orders.List(ctx, userID, orders.ListInput{Limit: s.config.RecentOrders})
	if err != nil {
		return nil, err
	}

	system, err := renderSystemPrompt(s.now(), counts, recent)
	if err != nil {
		return nil, services.WrapInternal("failed to build assistant prompt", err)
	}

	messages, redactions := s.buildMessages(system, in.History, message)

	req := &providers.ChatRequest{
		Model:       s.config.Model,
		Messages:    messages,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		User:        userID,
	}

	resp, err := s.provider.ChatCompletion(ctx, req)
	if err != nil {
		s.record(ResultError, 0)
		s.logger.Error("assistant provider call failed",
			zap.String("user_id", userID),
			zap.String("provider", s.provider.Name()),
			zap.Error(err))
		return nil, mapProviderError(ctx, err)
	}
	s.record(ResultSuccess, resp.Usage.TotalTokens)

	reply := strings.TrimSpace(resp.Content())
	if reply == "" {
		reply = FallbackReply
	}

	s.logger.Info("assistant reply",
		zap.String("user_id", userID),
		zap.String("model", resp.Model),
		zap.Int("orders", len(recent)),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", resp.Latency))

	return &ChatResult{
		Reply:            reply,
		Model:            resp.Model,
		Usage:            resp.Usage,
		OrdersConsidered: len(recent),
		Redactions:       redactions,
	}, nil
}

// detectInjectionInTurns checks every history turn, whatever its role, and
// then the new message. turn is "message" or "history[i]".
func detectInjectionInTurns(history []HistoryMessage, message string) (InjectionKind, string, bool) {
	for i, h := range history {
		if kind, found := DetectInjection(h.Content); found {
			return kind, fmt.Sprintf("history[%d]", i), true
		}
	}
	if kind, found := DetectInjection(message); found {
		return kind, "message", true
	}
	return "", "", false
}

// buildMessages assembles system, trimmed history and the new user turn,
// redacting PII from every history turn and the message.
func (s *Service) buildMessages(system string, history []HistoryMessage, message string) ([]providers.Message, int) {
	if len(history) > s.config.MaxHistory {
		history = history[len(history)-s.config.MaxHistory:]
	}

	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: system})

	redactions := 0
	for _, h := range history {
		content, n := RedactPII(h.Content)
		redactions += n
		messages = append(messages, providers.Message{Role: h.Role, Content: content})
	}

	message, n := RedactPII(message)
	redactions += n
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: message})

	return messages, redactions
}

func (s *Service) record(result string, tokens int) {
	if s.recorder != nil {
		s.recorder.RecordAssistantCall(result, tokens)
	}
}

// mapProviderError converts provider failures into external domain errors
func mapProviderError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.NewDomainError(services.ErrorTypeExternal, services.ErrProviderTimeout.Message, err)
	case providers.IsRateLimited(err):
		return services.NewDomainError(services.ErrorTypeExternal, services.ErrProviderRateLimit.Message, err)
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) && provErr.StatusCode == 0 {
		return services.NewDomainError(services.ErrorTypeExternal, services.ErrProviderUnavailable.Message, err)
	}
	return services.NewDomainError(services.ErrorTypeExternal, services.ErrProviderError.Message, err)
}
