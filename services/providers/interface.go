// Package providers defines the chat completion contract the order assistant
// talks to. Concrete adapters live in subpackages.
package providers

import (
	"context"
	"errors"
	"time"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Error codes carried by ProviderError
const (
	CodeRequestFailed  = "request_failed"
	CodeInvalidRequest = "invalid_request"
	CodeAuthentication = "authentication_failed"
	CodeRateLimited    = "rate_limited"
	CodeServerError    = "server_error"
	CodeDecodeFailed   = "decode_failed"
	CodeEmptyResponse  = "empty_response"
)

// Provider is a chat completion backend
type Provider interface {
	// Name returns the provider name (e.g., "openai")
	Name() string

	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// IsAvailable reports whether the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// ChatRequest is a provider-neutral chat completion request
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	// User identifier forwarded for abuse monitoring
	User string `json:"user,omitempty"`
}

// Message is a single conversation turn
type Message struct {
	// Role is one of "system", "user" or "assistant"
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is a provider-neutral chat completion response
type ChatResponse struct {
	ID       string        `json:"id"`
	Model    string        `json:"model"`
	Choices  []Choice      `json:"choices"`
	Usage    Usage         `json:"usage"`
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"latency"`
	Created  time.Time     `json:"created"`
}

// Content returns the first choice's message text, or "" when there is none
func (r *ChatResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Choice represents a completion choice
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
	// Values: "stop", "length", "content_filter"
	FinishReason string `json:"finish_reason"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Headers    map[string]string
}

// DefaultProviderConfig returns the configuration used when fields are left zero
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 500 * time.Millisecond,
		Headers:    make(map[string]string),
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int // 0 when no HTTP response was received
	Retryable  bool
	Cause      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable reports whether err wraps a retryable ProviderError
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// IsRateLimited reports whether err wraps a provider-side rate limit
func IsRateLimited(err error) bool {
	var provErr *ProviderError
	return errors.As(err, &provErr) && provErr.Code == CodeRateLimited
}
