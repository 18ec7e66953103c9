// Package seed creates a demo account with sample orders for local development.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/repositories"
	"github.com/upb/order-desk/services"
	"github.com/upb/order-desk/services/auth"
	"go.uber.org/zap"
)

// Result describes what a Seed call did
type Result struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	UserCreated   bool   `json:"user_created"`
	OrdersCreated int    `json:"orders_created"`
}

type sampleOrder struct {
	customer  string
	product   string
	quantity  int
	unitCents int64
	status    models.OrderStatus
	age       time.Duration
}

var sampleOrders = []sampleOrder{
	{"Acme Corp", "Steel widget", 40, 1250, models.OrderStatusShipped, 96 * time.Hour},
	{"Globex", "Gadget deluxe", 3, 9999, models.OrderStatusConfirmed, 48 * time.Hour},
	{"Initech", "Red stapler", 12, 899, models.OrderStatusPending, 20 * time.Hour},
	{"Umbrella Ltd", "Lab coat", 25, 4500, models.OrderStatusCancelled, 10 * time.Hour},
	{"Hooli", "Server rack", 1, 249900, models.OrderStatusPending, 2 * time.Hour},
}

// Service seeds the demo data
type Service struct {
	users    repositories.UserRepository
	orders   repositories.OrderRepository
	txMgr    repositories.TransactionManager
	email    string
	password string
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a seed service for the given demo credentials
func NewService(users repositories.UserRepository, orders repositories.OrderRepository, txMgr repositories.TransactionManager, email, password string, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		orders:   orders,
		txMgr:    txMgr,
		email:    models.NormalizeEmail(email),
		password: password,
		logger:   logger,
		now:      time.Now,
	}
}

// Seed creates the demo user and its sample orders in one transaction.
// Running it again is a no-op once the demo user owns any orders.
func (s *Service) Seed(ctx context.Context) (*Result, error) {
	result, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*Result, error) {
		user, created, err := s.ensureUser(ctx)
		if err != nil {
			return nil, err
		}
		res := &Result{UserID: user.ID.String(), Email: user.Email, UserCreated: created}

		counts, err := s.orders.CountByStatus(ctx, res.UserID)
		if err != nil {
			return nil, services.WrapInternal("failed to count demo orders", err)
		}
		for _, n := range counts {
			if n > 0 {
				return res, nil
			}
		}

		now := s.now().UTC()
		for _, sample := range sampleOrders {
			order := models.NewOrder(res.UserID, sample.customer, sample.product, sample.quantity, sample.unitCents)
			order.Status = sample.status
			order.CreatedAt = now.Add(-sample.age)
			order.UpdatedAt = order.CreatedAt
			if err := s.orders.Create(ctx, order); err != nil {
				return nil, services.WrapInternal("failed to create demo order", err)
			}
			res.OrdersCreated++
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("demo data seeded",
		zap.String("user_id", result.UserID),
		zap.Bool("user_created", result.UserCreated),
		zap.Int("orders_created", result.OrdersCreated))
	return result, nil
}

func (s *Service) ensureUser(ctx context.Context) (*models.User, bool, error) {
	user, err := s.users.GetByEmail(ctx, s.email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, services.WrapInternal("failed to look up demo user", err)
	}

	hash, err := auth.HashPassword(s.password)
	if err != nil {
		return nil, false, services.WrapInternal("failed to hash demo password", err)
	}
	user = models.NewUser(s.email, "Demo User", hash)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, services.WrapInternal("failed to create demo user", err)
	}
	return user, true, nil
}
