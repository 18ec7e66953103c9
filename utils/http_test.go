package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteText(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteText(w, http.StatusUnauthorized, "Authentication required")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Authentication required", w.Body.String())
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteCreated(w, map[string]string{"id": "123"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, "123", dataMap["id"])
}

func TestWriteList(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteList(w, []string{"a", "b"}, 20, 40)
	require.NoError(t, err)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Len(t, response["data"], 2)
	assert.Equal(t, float64(20), response["limit"])
	assert.Equal(t, float64(40), response["offset"])
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestWriteUnauthorized(t *testing.T) {
	t.Run("default message", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteUnauthorized(w, ""))

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", response.Error)
		assert.Equal(t, "Authentication required", response.Message)
	})

	t.Run("custom message", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteUnauthorized(w, "Invalid credentials"))

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Invalid credentials", response.Message)
	})
}

func TestWriteTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()
	details := map[string]interface{}{"retry_after_seconds": 1}

	require.NoError(t, WriteTooManyRequests(w, "", details))

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limit_exceeded", response.Error)
	assert.Equal(t, "Rate limit exceeded", response.Message)
	assert.Equal(t, float64(1), response.Details["retry_after_seconds"])
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		expectedError string
	}{
		{"bad request", http.StatusBadRequest, "bad_request"},
		{"unauthorized", http.StatusUnauthorized, "unauthorized"},
		{"forbidden", http.StatusForbidden, "forbidden"},
		{"not found", http.StatusNotFound, "not_found"},
		{"conflict", http.StatusConflict, "conflict"},
		{"too many requests", http.StatusTooManyRequests, "rate_limit_exceeded"},
		{"bad gateway", http.StatusBadGateway, "bad_gateway"},
		{"unavailable", http.StatusServiceUnavailable, "service_unavailable"},
		{"internal error", http.StatusInternalServerError, "internal_error"},
		{"unknown status", 418, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, WriteError(w, tt.status, "msg", nil))

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.expectedError, response.Error)
		})
	}
}
