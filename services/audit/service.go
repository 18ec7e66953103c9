package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/repositories"
	"go.uber.org/zap"
)

// Errors returned when an event cannot be queued
var (
	ErrNotStarted = errors.New("audit service not started")
	ErrStopped    = errors.New("audit service stopped")
	ErrBufferFull = errors.New("audit event buffer full")
)

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log *models.AuditLog
}

// RequestMeta identifies the HTTP request an audit entry belongs to
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// DropRecorder counts events that could not be queued
type DropRecorder interface {
	RecordAuditDropped()
}

// AuditService handles asynchronous audit logging
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	drops       DropRecorder
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	timeout     time.Duration
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	stopped     bool
	mu          sync.RWMutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize   int           // Size of the event buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Per-insert timeout
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   10000,
		WorkerCount:  5,
		WriteTimeout: 5 * time.Second,
	}
}

// NewAuditService creates a new AuditService instance. drops may be nil.
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config, drops DropRecorder) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())

	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		drops:       drops,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		timeout:     config.WriteTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting events and waits for queued ones to be written
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopped = true
	// Senders hold the read lock, so nobody is mid-send once we get here
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. A full buffer drops the event.
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.acceptingLocked(); err != nil {
		return err
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.String("request_id", event.Log.RequestID))
		if s.drops != nil {
			s.drops.RecordAuditDropped()
		}
		return ErrBufferFull
	}
}

// Log queues entry, waiting for buffer space until ctx is done.
// The write itself happens in the background.
func (s *AuditService) Log(ctx context.Context, entry *models.AuditLog) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.acceptingLocked(); err != nil {
		return err
	}

	select {
	case s.eventChan <- &AuditEvent{Log: entry}:
		return nil
	case <-ctx.Done():
		if s.drops != nil {
			s.drops.RecordAuditDropped()
		}
		return ctx.Err()
	}
}

func (s *AuditService) acceptingLocked() error {
	if !s.started {
		return ErrNotStarted
	}
	if s.stopped {
		return ErrStopped
	}
	return nil
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)),
				zap.String("request_id", event.Log.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int  `json:"buffer_size"`
	PendingEvents int  `json:"pending_events"`
	WorkerCount   int  `json:"worker_count"`
	Started       bool `json:"started"`
}

// ListRecent returns stored audit entries, newest first
func (s *AuditService) ListRecent(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	return s.auditRepo.List(ctx, limit, offset)
}

// ListForActor returns stored audit entries written on behalf of actorID
func (s *AuditService) ListForActor(ctx context.Context, actorID string, limit, offset int) ([]*models.AuditLog, error) {
	return s.auditRepo.ListByActor(ctx, actorID, limit, offset)
}

// ListForRequest returns every entry written while serving requestID
func (s *AuditService) ListForRequest(ctx context.Context, requestID string) ([]*models.AuditLog, error) {
	return s.auditRepo.ListByRequestID(ctx, requestID)
}

// Convenience methods for logging common events

// LogLoginFailed records a failed login attempt
func (s *AuditService) LogLoginFailed(email string, meta RequestMeta) error {
	log := models.NewAuditLog(models.AuditActionLoginFailed, models.ResourceTypeAuth, "/api/auth/login").
		WithReason("invalid_credentials").
		WithDetails(map[string]interface{}{"email": email}).
		WithRequest(meta.RequestID, meta.IPAddress, meta.UserAgent)

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogOrderCreated records a new order
func (s *AuditService) LogOrderCreated(order *models.Order, meta RequestMeta) error {
	log := orderLog(models.AuditActionOrderCreated, order.UserID, order.ID, meta).
		WithDetails(map[string]interface{}{
			"product":     order.Product,
			"quantity":    order.Quantity,
			"total_cents": order.TotalCents(),
		})

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogOrderUpdated records an order change
func (s *AuditService) LogOrderUpdated(order *models.Order, changes map[string]interface{}, meta RequestMeta) error {
	log := orderLog(models.AuditActionOrderUpdated, order.UserID, order.ID, meta).
		WithDetails(map[string]interface{}{
			"status":  order.Status,
			"changes": changes,
		})

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogOrderDeleted records an order removal
func (s *AuditService) LogOrderDeleted(userID string, orderID uuid.UUID, meta RequestMeta) error {
	return s.LogEvent(&AuditEvent{Log: orderLog(models.AuditActionOrderDeleted, userID, orderID, meta)})
}

func orderLog(action models.AuditAction, userID string, orderID uuid.UUID, meta RequestMeta) *models.AuditLog {
	actor := userID
	return models.NewAuditLog(action, models.ResourceTypeOrder, "/api/orders/"+orderID.String()).
		WithActor(&actor).
		WithRequest(meta.RequestID, meta.IPAddress, meta.UserAgent)
}
