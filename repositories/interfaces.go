package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/order-desk/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns a context that routes repository calls through the transaction
	Context() context.Context
}

// OrderFilter narrows an order listing
type OrderFilter struct {
	Status models.OrderStatus // empty means any status
	Limit  int
	Offset int
}

// OrderRepository handles order data operations
type OrderRepository interface {
	// Create inserts a new order
	Create(ctx context.Context, order *models.Order) error

	// GetByID retrieves an order by ID regardless of owner
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)

	// ListByUser retrieves a user's orders, newest first
	ListByUser(ctx context.Context, userID string, filter OrderFilter) ([]*models.Order, error)

	// CountByStatus returns the number of a user's orders per status
	CountByStatus(ctx context.Context, userID string) (map[models.OrderStatus]int, error)

	// Update persists mutable order fields
	Update(ctx context.Context, order *models.Order) error

	// Delete removes an order
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByID retrieves an audit log by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)

	// List retrieves the most recent audit logs with pagination
	List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)

	// ListByActor retrieves audit logs written on behalf of a user
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.AuditLog, error)

	// ListByRequestID retrieves audit logs by request ID
	ListByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error)
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by normalized email
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users     UserRepository
	Orders    OrderRepository
	AuditLogs AuditRepository
}
