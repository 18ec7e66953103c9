// Package openai implements providers.Provider against any OpenAI-compatible
// /chat/completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/upb/order-desk/services/providers"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"

	// maxErrorBody bounds how much of an error response is kept in the message
	maxErrorBody = 512
)

// Adapter implements providers.Provider for OpenAI
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewAdapter creates a new OpenAI adapter. Zero config fields fall back to
// providers.DefaultProviderConfig.
func NewAdapter(config providers.ProviderConfig) *Adapter {
	defaults := providers.DefaultProviderConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		sleep: sleepContext,
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return providerName
}

// ChatCompletion performs a chat completion request. Transport failures,
// 429 and 5xx responses are retried up to MaxRetries times with a linear
// backoff; the request body is rebuilt for every attempt.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, providers.NewProviderError(providerName, providers.CodeInvalidRequest, "request has no messages", 0, false, nil)
	}

	startTime := time.Now()

	body, err := json.Marshal(buildChatRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(providerName, providers.CodeInvalidRequest, "failed to marshal request", 0, false, err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := a.sleep(ctx, a.config.RetryDelay*time.Duration(attempt)); err != nil {
				return nil, providers.NewProviderError(providerName, providers.CodeRequestFailed, "request cancelled", 0, false, err)
			}
		}

		var wire *chatResponse
		wire, lastErr = a.do(ctx, body)
		if lastErr == nil {
			return convertResponse(wire, time.Since(startTime)), nil
		}
		if !providers.IsRetryable(lastErr) || ctx.Err() != nil {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// do sends a single attempt
func (a *Adapter) do(ctx context.Context, body []byte) (*chatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(providerName, providers.CodeInvalidRequest, "failed to create request", 0, false, err)
	}
	a.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(providerName, providers.CodeRequestFailed, "HTTP request failed", 0, ctx.Err() == nil, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(providerName, providers.CodeRequestFailed, "failed to read response", httpResp.StatusCode, true, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(httpResp.StatusCode, respBody)
	}

	var wire chatResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, providers.NewProviderError(providerName, providers.CodeDecodeFailed, "failed to decode response", httpResp.StatusCode, false, err)
	}
	if len(wire.Choices) == 0 {
		return nil, providers.NewProviderError(providerName, providers.CodeEmptyResponse, "response has no choices", httpResp.StatusCode, false, nil)
	}
	return &wire, nil
}

// IsAvailable reports whether an API key is configured and the models
// endpoint answers 200
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	if a.config.APIKey == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	a.setHeaders(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// buildChatRequest converts the neutral request to the OpenAI wire format
func buildChatRequest(req *providers.ChatRequest) *chatRequest {
	out := &chatRequest{
		Model:    req.Model,
		Messages: make([]chatMessage, len(req.Messages)),
	}
	for i, msg := range req.Messages {
		out.Messages[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}

	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		out.Temperature = &req.Temperature
	}
	if req.User != "" {
		out.User = &req.User
	}
	return out
}

func convertResponse(wire *chatResponse, latency time.Duration) *providers.ChatResponse {
	resp := &providers.ChatResponse{
		ID:       wire.ID,
		Model:    wire.Model,
		Provider: providerName,
		Choices:  make([]providers.Choice, len(wire.Choices)),
		Usage: providers.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
		Latency: latency,
		Created: time.Unix(wire.Created, 0).UTC(),
	}

	for i, choice := range wire.Choices {
		resp.Choices[i] = providers.Choice{
			Index: choice.Index,
			Message: providers.Message{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
			FinishReason: choice.FinishReason,
		}
	}
	return resp
}

// errorFromResponse maps a non-200 response to a ProviderError
func errorFromResponse(statusCode int, body []byte) error {
	code := providers.CodeInvalidRequest
	retryable := false
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		code = providers.CodeAuthentication
	case statusCode == http.StatusTooManyRequests:
		code = providers.CodeRateLimited
		retryable = true
	case statusCode >= 500:
		code = providers.CodeServerError
		retryable = true
	}

	message := fmt.Sprintf("provider returned status %d", statusCode)
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return providers.NewProviderError(providerName, code, message, statusCode, retryable, errors.New(errResp.Error.Message))
	}

	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	var cause error
	if text := strings.TrimSpace(string(body)); text != "" {
		cause = errors.New(text)
	}
	return providers.NewProviderError(providerName, code, message, statusCode, retryable, cause)
}

// OpenAI wire types

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	User        *string       `json:"user,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
