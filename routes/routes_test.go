package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/order-desk/app"
	"github.com/upb/order-desk/config"
	"github.com/upb/order-desk/models"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Dependencies) {
	t.Helper()

	cfg := &config.Config{
		Environment: "development",
		Server: config.ServerConfig{
			AllowedOrigins: []string{"http://localhost:4200"},
		},
		Database: config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			Path:         filepath.Join(t.TempDir(), "routes.db"),
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Auth: config.AuthConfig{
			JWTSecret: "routes-test-secret",
			Issuer:    "order-desk-test",
			TokenTTL:  time.Hour,
		},
		Gate: config.GateConfig{PublicPaths: config.DefaultPublicPaths},
		Assistant: config.AssistantConfig{
			RequestsPerSecond: 1,
			Burst:             1,
		},
		Audit: config.AuditConfig{BufferSize: 32, WorkerCount: 1},
		Dev: config.DevConfig{
			SeedEmail:    "demo@orderdesk.local",
			SeedPassword: "demo-password",
		},
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	server := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(func() {
		server.Close()
		_ = deps.Close(context.Background())
	})
	return server, deps
}

func do(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readText(t *testing.T, resp *http.Response) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}

func login(t *testing.T, baseURL string) string {
	t.Helper()
	resp := do(t, http.MethodPost, baseURL+"/api/dev/seed", "", nil)
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, resp.StatusCode)

	resp = do(t, http.MethodPost, baseURL+"/api/auth/login", "", map[string]string{
		"email":    "demo@orderdesk.local",
		"password": "demo-password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Data.Token)
	return body.Data.Token
}

func TestRoutes_GateOutcomes(t *testing.T) {
	server, deps := newTestServer(t)

	t.Run("public health check needs no token", func(t *testing.T) {
		resp := do(t, http.MethodGet, server.URL+"/api/dev/health", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing token", func(t *testing.T) {
		resp := do(t, http.MethodGet, server.URL+"/api/orders", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Authentication required", readText(t, resp))
	})

	t.Run("invalid token", func(t *testing.T) {
		resp := do(t, http.MethodGet, server.URL+"/api/orders", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid or expired token", readText(t, resp))
	})

	t.Run("unknown routes are gated too", func(t *testing.T) {
		resp := do(t, http.MethodGet, server.URL+"/api/nope", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("denials are audited", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			logs, err := deps.Audit.ListRecent(context.Background(), 50, 0)
			if err != nil {
				return false
			}
			denied := 0
			for _, l := range logs {
				if l.Action == models.AuditActionAccessDenied {
					denied++
				}
			}
			return denied >= 3
		}, 2*time.Second, 20*time.Millisecond)
	})
}

func TestRoutes_OrderLifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	token := login(t, server.URL)

	resp := do(t, http.MethodGet, server.URL+"/api/orders", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Data []models.Order `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list.Data, 5)

	resp = do(t, http.MethodPost, server.URL+"/api/orders", token, map[string]interface{}{
		"customer_name":    "Stark Industries",
		"product":          "Arc reactor",
		"quantity":         1,
		"unit_price_cents": 100000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data models.Order `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, models.OrderStatusPending, created.Data.Status)

	orderURL := server.URL + "/api/orders/" + created.Data.ID.String()

	resp = do(t, http.MethodPut, orderURL, token, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPut, orderURL, token, map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/api/orders/summary", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary struct {
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 6, summary.Data.Total)

	resp = do(t, http.MethodDelete, orderURL, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, orderURL, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Eventually(t, func() bool {
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/audit/logs", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		var logs struct {
			Data []models.AuditLog `json:"data"`
		}
		if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&logs) != nil {
			return false
		}
		return len(logs.Data) >= 3
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRoutes_AssistantDisabled(t *testing.T) {
	server, _ := newTestServer(t)
	token := login(t, server.URL)

	resp := do(t, http.MethodPost, server.URL+"/api/assistant/chat", token, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = do(t, http.MethodPost, server.URL+"/api/assistant/chat", token, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRoutes_WrongPasswordIsAudited(t *testing.T) {
	server, deps := newTestServer(t)
	login(t, server.URL)

	resp := do(t, http.MethodPost, server.URL+"/api/auth/login", "", map[string]string{
		"email":    "demo@orderdesk.local",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Eventually(t, func() bool {
		logs, err := deps.Audit.ListRecent(context.Background(), 10, 0)
		if err != nil {
			return false
		}
		for _, l := range logs {
			if l.Action == models.AuditActionLoginFailed {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}
