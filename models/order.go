package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order limits. Their product stays well inside int64.
const (
	MaxOrderQuantity  = 100000
	MaxUnitPriceCents = 100000000
)

// Order represents a customer order owned by a user
type Order struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	UserID         string      `json:"user_id" db:"user_id"`
	CustomerName   string      `json:"customer_name" db:"customer_name"`
	Product        string      `json:"product" db:"product"`
	Quantity       int         `json:"quantity" db:"quantity"`
	UnitPriceCents int64       `json:"unit_price_cents" db:"unit_price_cents"`
	Status         OrderStatus `json:"status" db:"status"`
	Notes          string      `json:"notes,omitempty" db:"notes"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// NewOrder creates a new pending Order
func NewOrder(userID, customerName, product string, quantity int, unitPriceCents int64) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:             uuid.New(),
		UserID:         userID,
		CustomerName:   customerName,
		Product:        product,
		Quantity:       quantity,
		UnitPriceCents: unitPriceCents,
		Status:         OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TotalCents returns quantity times unit price
func (o *Order) TotalCents() int64 {
	return int64(o.Quantity) * o.UnitPriceCents
}

// IsTerminal reports whether the order can no longer change status
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusShipped || o.Status == OrderStatusCancelled
}

// CanTransitionTo reports whether moving to next is a legal status change
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	if o.Status == next {
		return true
	}
	switch o.Status {
	case OrderStatusPending:
		return next == OrderStatusConfirmed || next == OrderStatusCancelled
	case OrderStatusConfirmed:
		return next == OrderStatusShipped || next == OrderStatusCancelled
	default:
		return false
	}
}

// ValidOrderStatus reports whether s is a known status
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusCancelled:
		return true
	}
	return false
}
