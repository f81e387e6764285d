package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownSKU        = errors.New("unknown sku")
	ErrIllegalTransition = errors.New("illegal order status transition")
)

// InsufficientStockError names the variant that could not cover the order.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type TransitionError struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// Order is an accepted order as stored by the authority.
type Order struct {
	ID             uuid.UUID          `json:"orderId"`
	IdempotencyKey string             `json:"idempotencyKey"`
	Contact        domain.Contact     `json:"contact"`
	Location       string             `json:"location"`
	Items          []domain.OrderItem `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	Shipping       decimal.Decimal    `json:"shipping"`
	Total          decimal.Decimal    `json:"total"`
	Currency       string             `json:"currency"`
	Status         domain.OrderStatus `json:"status"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func (o *Order) Receipt() domain.OrderReceipt {
	return domain.OrderReceipt{
		OrderID:  o.ID.String(),
		Subtotal: o.Subtotal,
		Shipping: o.Shipping,
		Total:    o.Total,
	}
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type statusChangedPayload struct {
	OrderID   string             `json:"orderId"`
	From      domain.OrderStatus `json:"from"`
	To        domain.OrderStatus `json:"to"`
	ChangedAt time.Time          `json:"changedAt"`
}
