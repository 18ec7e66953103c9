package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/order-desk/middleware"
	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/services/audit"
	"go.uber.org/zap"
)

// MockAuditReader is a mock implementation of AuditReader
type MockAuditReader struct {
	mock.Mock
}

func (m *MockAuditReader) ListForActor(ctx context.Context, actorID string, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, actorID, limit, offset)
	if l := args.Get(0); l != nil {
		return l.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditReader) GetStats() audit.Stats {
	return m.Called().Get(0).(audit.Stats)
}

func auditRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return req.WithContext(middleware.WithUserID(req.Context(), testUserID))
}

func TestAuditHandler_HandleList(t *testing.T) {
	logger := zap.NewNop()

	t.Run("lists the caller's entries with default paging", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)

		actor := testUserID
		entry := models.NewAuditLog(models.AuditActionOrderCreated, models.ResourceTypeOrder, "/api/orders").WithActor(&actor)
		reader.On("ListForActor", mock.Anything, testUserID, defaultAuditLimit, 0).Return([]*models.AuditLog{entry}, nil)

		w := httptest.NewRecorder()
		handler.HandleList(w, auditRequest("/api/audit/logs"))

		require.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Data  []map[string]interface{} `json:"data"`
			Limit int                      `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Len(t, response.Data, 1)
		assert.Equal(t, defaultAuditLimit, response.Limit)
	})

	t.Run("caps the page size", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)

		reader.On("ListForActor", mock.Anything, testUserID, maxAuditLimit, 400).Return(nil, nil)

		w := httptest.NewRecorder()
		handler.HandleList(w, auditRequest("/api/audit/logs?limit=5000&offset=400"))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
		reader.AssertExpectations(t)
	})

	t.Run("hides storage errors", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)

		reader.On("ListForActor", mock.Anything, testUserID, defaultAuditLimit, 0).Return(nil, errors.New("pq: connection reset"))

		w := httptest.NewRecorder()
		handler.HandleList(w, auditRequest("/api/audit/logs"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "pq:")
	})
}

func TestAuditHandler_HandleStats(t *testing.T) {
	reader := new(MockAuditReader)
	handler := NewAuditHandler(reader, zap.NewNop())

	reader.On("GetStats").Return(audit.Stats{BufferSize: 100, PendingEvents: 3, WorkerCount: 2, Started: true})

	w := httptest.NewRecorder()
	handler.HandleStats(w, auditRequest("/api/audit/stats"))

	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Data audit.Stats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 3, response.Data.PendingEvents)
	assert.True(t, response.Data.Started)
}
