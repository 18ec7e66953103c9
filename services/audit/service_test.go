package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/order-desk/models"
	"go.uber.org/zap"
)

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
	mu           sync.Mutex
	insertedLogs []*models.AuditLog
}

func (m *MockAuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	args := m.Called(ctx, log)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertedLogs = append(m.insertedLogs, log)
	return args.Error(0)
}

func (m *MockAuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	args := m.Called(ctx, id)
	if log := args.Get(0); log != nil {
		return log.(*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, actorID, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) ListByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error) {
	args := m.Called(ctx, requestID)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetInsertedLogs() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AuditLog, len(m.insertedLogs))
	copy(out, m.insertedLogs)
	return out
}

type countingDrops struct {
	mu sync.Mutex
	n  int
}

func (c *countingDrops) RecordAuditDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *countingDrops) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newStartedService(t *testing.T, repo *MockAuditRepository, cfg Config) *AuditService {
	t.Helper()
	service := NewAuditService(repo, zap.NewNop(), cfg, nil)
	require.NoError(t, service.Start())
	return service
}

func TestAuditService_StartStop(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 2}, nil)

	err := service.Start()
	require.NoError(t, err)

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	assert.Error(t, service.Start())

	require.NoError(t, service.Stop(5*time.Second))
	assert.False(t, service.GetStats().Started)

	assert.ErrorIs(t, service.Stop(time.Second), ErrNotStarted)
}

func TestAuditService_RejectsEventsOutsideLifecycle(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := NewAuditService(mockRepo, zap.NewNop(), DefaultConfig(), nil)
	entry := models.NewAuditLog(models.AuditActionAccessDenied, models.ResourceTypeAPI, "/api/orders")

	assert.ErrorIs(t, service.Log(context.Background(), entry), ErrNotStarted)
	assert.ErrorIs(t, service.LogEvent(&AuditEvent{Log: entry}), ErrNotStarted)

	require.NoError(t, service.Start())
	require.NoError(t, service.Stop(time.Second))

	assert.ErrorIs(t, service.Log(context.Background(), entry), ErrStopped)
	assert.ErrorIs(t, service.LogEvent(&AuditEvent{Log: entry}), ErrStopped)
}

func TestAuditService_StopFlushesQueuedEvents(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := newStartedService(t, mockRepo, Config{BufferSize: 100, WorkerCount: 3})

	eventCount := 50
	for i := 0; i < eventCount; i++ {
		entry := models.NewAuditLog(models.AuditActionAccessDenied, models.ResourceTypeAPI, "/api/orders")
		require.NoError(t, service.LogEvent(&AuditEvent{Log: entry}))
	}

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, mockRepo.GetInsertedLogs(), eventCount)
}

func TestAuditService_ConcurrentLogging(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := newStartedService(t, mockRepo, Config{BufferSize: 1000, WorkerCount: 5})

	goroutineCount := 10
	eventsPerGoroutine := 10
	var wg sync.WaitGroup

	for i := 0; i < goroutineCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				entry := models.NewAuditLog(models.AuditActionAccessDenied, models.ResourceTypeAPI, "/api/orders")
				assert.NoError(t, service.Log(context.Background(), entry))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, mockRepo.GetInsertedLogs(), goroutineCount*eventsPerGoroutine)
}

func TestAuditService_BufferFull(t *testing.T) {
	release := make(chan struct{})
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(nil)

	drops := &countingDrops{}
	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1}, drops)
	require.NoError(t, service.Start())

	newEvent := func() *AuditEvent {
		return &AuditEvent{Log: models.NewAuditLog(models.AuditActionOrderCreated, models.ResourceTypeOrder, "/api/orders/x")}
	}

	// The single worker picks up the first event and blocks in Insert;
	// keep queueing until the one-slot buffer is occupied.
	require.NoError(t, service.LogEvent(newEvent()))
	require.Eventually(t, func() bool {
		return service.GetStats().PendingEvents == 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, service.LogEvent(newEvent()))

	assert.ErrorIs(t, service.LogEvent(newEvent()), ErrBufferFull)
	assert.Equal(t, 1, drops.count())

	t.Run("blocking log honors context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := service.Log(ctx, newEvent().Log)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 2, drops.count())
	})

	close(release)
	require.NoError(t, service.Stop(5*time.Second))
}

func TestAuditService_InsertFailureIsContained(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	service := newStartedService(t, mockRepo, Config{BufferSize: 10, WorkerCount: 1})

	entry := models.NewAuditLog(models.AuditActionAccessDenied, models.ResourceTypeAPI, "/api/orders")
	require.NoError(t, service.Log(context.Background(), entry))
	require.NoError(t, service.Stop(5*time.Second))

	mockRepo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestAuditService_ConvenienceMethods(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := newStartedService(t, mockRepo, Config{BufferSize: 10, WorkerCount: 1})

	meta := RequestMeta{RequestID: "req-9", IPAddress: "10.0.0.2", UserAgent: "test"}
	order := models.NewOrder("user-1", "Acme", "Widget", 2, 150)

	require.NoError(t, service.LogOrderCreated(order, meta))
	require.NoError(t, service.LogOrderUpdated(order, map[string]interface{}{"quantity": 3}, meta))
	require.NoError(t, service.LogOrderDeleted("user-1", order.ID, meta))
	require.NoError(t, service.LogLoginFailed("ghost@example.com", meta))
	require.NoError(t, service.Stop(5*time.Second))

	logs := mockRepo.GetInsertedLogs()
	require.Len(t, logs, 4)

	byAction := make(map[models.AuditAction]*models.AuditLog)
	for _, l := range logs {
		byAction[l.Action] = l
		assert.Equal(t, "req-9", l.RequestID)
		assert.Equal(t, "10.0.0.2", l.IPAddress)
	}

	created := byAction[models.AuditActionOrderCreated]
	require.NotNil(t, created)
	assert.Equal(t, "user-1", created.Actor())
	assert.Equal(t, "/api/orders/"+order.ID.String(), created.ResourcePath)
	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(created.Details, &details))
	assert.Equal(t, float64(300), details["total_cents"])

	failed := byAction[models.AuditActionLoginFailed]
	require.NotNil(t, failed)
	assert.Equal(t, models.ResourceTypeAuth, failed.ResourceType)
	assert.Nil(t, failed.ActorID)
}

func TestAuditService_ListRecent(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	expected := []*models.AuditLog{models.NewAuditLog(models.AuditActionAccessDenied, models.ResourceTypeAPI, "/x")}
	mockRepo.On("List", mock.Anything, 25, 50).Return(expected, nil)
	mockRepo.On("ListByActor", mock.Anything, "user-1", 10, 0).Return(expected, nil)
	mockRepo.On("ListByRequestID", mock.Anything, "req-7").Return(expected, nil)

	service := NewAuditService(mockRepo, zap.NewNop(), DefaultConfig(), nil)

	logs, err := service.ListRecent(context.Background(), 25, 50)
	require.NoError(t, err)
	assert.Equal(t, expected, logs)

	logs, err = service.ListForActor(context.Background(), "user-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, expected, logs)

	logs, err = service.ListForRequest(context.Background(), "req-7")
	require.NoError(t, err)
	assert.Equal(t, expected, logs)
	mockRepo.AssertExpectations(t)
}
