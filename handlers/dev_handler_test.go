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
	"github.com/upb/order-desk/services"
	"github.com/upb/order-desk/services/seed"
	"go.uber.org/zap"
)

// MockSeeder is a mock implementation of Seeder
type MockSeeder struct {
	mock.Mock
}

func (m *MockSeeder) Seed(ctx context.Context) (*seed.Result, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*seed.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestDevHandler_HandleSeed(t *testing.T) {
	logger := zap.NewNop()

	t.Run("not found outside development", func(t *testing.T) {
		seeder := new(MockSeeder)
		handler := NewDevHandler(seeder, false, logger)

		w := httptest.NewRecorder()
		handler.HandleSeed(w, httptest.NewRequest(http.MethodPost, "/api/dev/seed", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		seeder.AssertNotCalled(t, "Seed", mock.Anything)
	})

	t.Run("created on first run", func(t *testing.T) {
		seeder := new(MockSeeder)
		handler := NewDevHandler(seeder, true, logger)
		seeder.On("Seed", mock.Anything).Return(&seed.Result{UserID: "u1", Email: "demo@orderdesk.local", UserCreated: true, OrdersCreated: 5}, nil)

		w := httptest.NewRecorder()
		handler.HandleSeed(w, httptest.NewRequest(http.MethodPost, "/api/dev/seed", nil))

		require.Equal(t, http.StatusCreated, w.Code)
		var response struct {
			Data seed.Result `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, 5, response.Data.OrdersCreated)
	})

	t.Run("ok when already seeded", func(t *testing.T) {
		seeder := new(MockSeeder)
		handler := NewDevHandler(seeder, true, logger)
		seeder.On("Seed", mock.Anything).Return(&seed.Result{UserID: "u1", Email: "demo@orderdesk.local"}, nil)

		w := httptest.NewRecorder()
		handler.HandleSeed(w, httptest.NewRequest(http.MethodPost, "/api/dev/seed", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("internal failure", func(t *testing.T) {
		seeder := new(MockSeeder)
		handler := NewDevHandler(seeder, true, logger)
		seeder.On("Seed", mock.Anything).Return(nil, services.WrapInternal("failed to create demo user", errors.New("disk full")))

		w := httptest.NewRecorder()
		handler.HandleSeed(w, httptest.NewRequest(http.MethodPost, "/api/dev/seed", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
