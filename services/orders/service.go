// Package orders implements owner-scoped order management.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/repositories"
	"github.com/upb/order-desk/services"
	"github.com/upb/order-desk/services/audit"
	"go.uber.org/zap"
)

// Pagination bounds for List
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Auditor records order lifecycle events
type Auditor interface {
	LogOrderCreated(order *models.Order, meta audit.RequestMeta) error
	LogOrderUpdated(order *models.Order, changes map[string]interface{}, meta audit.RequestMeta) error
	LogOrderDeleted(userID string, orderID uuid.UUID, meta audit.RequestMeta) error
}

var (
	errQuantityRange = services.NewDomainError(services.ErrorTypeValidation,
		fmt.Sprintf("quantity must be between 1 and %d", models.MaxOrderQuantity), nil)
	errUnitPriceRange = services.NewDomainError(services.ErrorTypeValidation,
		fmt.Sprintf("unit price must be between 0 and %d cents", models.MaxUnitPriceCents), nil)
)

// CreateInput holds the fields of a new order
type CreateInput struct {
	CustomerName   string `json:"customer_name" validate:"required,max=255"`
	Product        string `json:"product" validate:"required,max=255"`
	Quantity       int    `json:"quantity" validate:"required,gt=0,lte=100000"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0,lte=100000000"`
	Notes          string `json:"notes" validate:"max=2000"`
}

// UpdateInput holds a partial order update. Nil fields are left unchanged.
type UpdateInput struct {
	CustomerName   *string             `json:"customer_name" validate:"omitempty,min=1,max=255"`
	Product        *string             `json:"product" validate:"omitempty,min=1,max=255"`
	Quantity       *int                `json:"quantity" validate:"omitempty,gt=0,lte=100000"`
	UnitPriceCents *int64              `json:"unit_price_cents" validate:"omitempty,gte=0,lte=100000000"`
	Status         *models.OrderStatus `json:"status" validate:"omitempty,order_status"`
	Notes          *string             `json:"notes" validate:"omitempty,max=2000"`
}

// ListInput narrows a listing
type ListInput struct {
	Status models.OrderStatus
	Limit  int
	Offset int
}

// Service manages orders on behalf of their owners
type Service struct {
	orders  repositories.OrderRepository
	txMgr   repositories.TransactionManager
	auditor Auditor
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new order service
func NewService(orders repositories.OrderRepository, txMgr repositories.TransactionManager, auditor Auditor, logger *zap.Logger) *Service {
	return &Service{
		orders:  orders,
		txMgr:   txMgr,
		auditor: auditor,
		logger:  logger,
		now:     time.Now,
	}
}

// NormalizePage clamps limit and offset to the supported range
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns the user's orders, newest first
func (s *Service) List(ctx context.Context, userID string, in ListInput) ([]*models.Order, error) {
	if in.Status != "" && !models.ValidOrderStatus(in.Status) {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown order status", nil).
			WithDetail("status", string(in.Status))
	}

	limit, offset := NormalizePage(in.Limit, in.Offset)
	orders, err := s.orders.ListByUser(ctx, userID, repositories.OrderFilter{
		Status: in.Status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, services.WrapInternal("failed to list orders", err)
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

// Get returns one of the user's orders. Orders owned by someone else
// are reported as not found.
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrOrderNotFound
		}
		return nil, services.WrapInternal("failed to get order", err)
	}
	if order.UserID != userID {
		return nil, services.ErrOrderNotFound
	}
	return order, nil
}

// Create stores a new pending order for userID
func (s *Service) Create(ctx context.Context, userID string, in CreateInput, meta audit.RequestMeta) (*models.Order, error) {
	if in.Quantity <= 0 || in.Quantity > models.MaxOrderQuantity {
		return nil, errQuantityRange
	}
	if in.UnitPriceCents < 0 || in.UnitPriceCents > models.MaxUnitPriceCents {
		return nil, errUnitPriceRange
	}

	order := models.NewOrder(userID, strings.TrimSpace(in.CustomerName), strings.TrimSpace(in.Product), in.Quantity, in.UnitPriceCents)
	order.Notes = in.Notes

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, services.WrapInternal("failed to create order", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID))
	s.audit(func() error { return s.auditor.LogOrderCreated(order, meta) })

	return order, nil
}

// Update applies a partial update inside a transaction. Terminal orders
// reject every change; status moves must follow the order lifecycle.
func (s *Service) Update(ctx context.Context, userID string, id uuid.UUID, in UpdateInput, meta audit.RequestMeta) (*models.Order, error) {
	var changes map[string]interface{}

	order, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.Order, error) {
		order, err := s.Get(ctx, userID, id)
		if err != nil {
			return nil, err
		}

		changes, err = applyUpdate(order, in)
		if err != nil {
			return nil, err
		}
		if len(changes) == 0 {
			return order, nil
		}

		order.UpdatedAt = s.now().UTC()
		if err := s.orders.Update(ctx, order); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrOrderNotFound
			}
			return nil, services.WrapInternal("failed to update order", err)
		}
		return order, nil
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		s.logger.Info("order updated",
			zap.String("order_id", order.ID.String()),
			zap.String("status", string(order.Status)))
		s.audit(func() error { return s.auditor.LogOrderUpdated(order, changes, meta) })
	}
	return order, nil
}

// Delete removes one of the user's orders
func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID, meta audit.RequestMeta) error {
	err := services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if _, err := s.Get(ctx, userID, id); err != nil {
			return err
		}
		if err := s.orders.Delete(ctx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return services.ErrOrderNotFound
			}
			return services.WrapInternal("failed to delete order", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("order deleted", zap.String("order_id", id.String()), zap.String("user_id", userID))
	s.audit(func() error { return s.auditor.LogOrderDeleted(userID, id, meta) })
	return nil
}

// Summary returns the user's order counts per status
func (s *Service) Summary(ctx context.Context, userID string) (map[models.OrderStatus]int, error) {
	counts, err := s.orders.CountByStatus(ctx, userID)
	if err != nil {
		return nil, services.WrapInternal("failed to summarize orders", err)
	}
	return counts, nil
}

func (s *Service) audit(fn func() error) {
	if s.auditor == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.Warn("failed to queue order audit event", zap.Error(err))
	}
}

func applyUpdate(order *models.Order, in UpdateInput) (map[string]interface{}, error) {
	changes := make(map[string]interface{})

	if in.Status != nil && *in.Status != order.Status {
		if !models.ValidOrderStatus(*in.Status) {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown order status", nil).
				WithDetail("status", string(*in.Status))
		}
		if !order.CanTransitionTo(*in.Status) {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid order status transition", nil).
				WithDetail("from", string(order.Status)).
				WithDetail("to", string(*in.Status))
		}
	}

	if order.IsTerminal() && hasFieldChanges(order, in) {
		return nil, services.NewDomainError(services.ErrorTypeConflict, "order is in a terminal status", nil).
			WithDetail("status", string(order.Status))
	}

	if in.CustomerName != nil && strings.TrimSpace(*in.CustomerName) != order.CustomerName {
		order.CustomerName = strings.TrimSpace(*in.CustomerName)
		changes["customer_name"] = order.CustomerName
	}
	if in.Product != nil && strings.TrimSpace(*in.Product) != order.Product {
		order.Product = strings.TrimSpace(*in.Product)
		changes["product"] = order.Product
	}
	if in.Quantity != nil && *in.Quantity != order.Quantity {
		if *in.Quantity <= 0 || *in.Quantity > models.MaxOrderQuantity {
			return nil, errQuantityRange
		}
		order.Quantity = *in.Quantity
		changes["quantity"] = order.Quantity
	}
	if in.UnitPriceCents != nil && *in.UnitPriceCents != order.UnitPriceCents {
		if *in.UnitPriceCents < 0 || *in.UnitPriceCents > models.MaxUnitPriceCents {
			return nil, errUnitPriceRange
		}
		order.UnitPriceCents = *in.UnitPriceCents
		changes["unit_price_cents"] = order.UnitPriceCents
	}
	if in.Notes != nil && *in.Notes != order.Notes {
		order.Notes = *in.Notes
		changes["notes"] = order.Notes
	}
	if in.Status != nil && *in.Status != order.Status {
		changes["status"] = map[string]string{"from": string(order.Status), "to": string(*in.Status)}
		order.Status = *in.Status
	}

	return changes, nil
}

// hasFieldChanges reports whether in would modify anything on order
func hasFieldChanges(order *models.Order, in UpdateInput) bool {
	return (in.CustomerName != nil && strings.TrimSpace(*in.CustomerName) != order.CustomerName) ||
		(in.Product != nil && strings.TrimSpace(*in.Product) != order.Product) ||
		(in.Quantity != nil && *in.Quantity != order.Quantity) ||
		(in.UnitPriceCents != nil && *in.UnitPriceCents != order.UnitPriceCents) ||
		(in.Notes != nil && *in.Notes != order.Notes) ||
		(in.Status != nil && *in.Status != order.Status)
}
