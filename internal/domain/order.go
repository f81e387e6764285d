package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// OrderItem carries everything the authority needs to decrement the exact variant's stock.
type OrderItem struct {
	SKU       string          `json:"sku,omitempty"`
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

// OrderPayload is the body of POST /orders. IdempotencyKey is generated once per
// checkout and reused by every retry so the authority can deduplicate.
type OrderPayload struct {
	IdempotencyKey string          `json:"idempotencyKey"`
	Contact        Contact         `json:"contact"`
	Location       string          `json:"location"`
	Items          []OrderItem     `json:"cartItems"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Shipping       decimal.Decimal `json:"shipping"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// OrderReceipt is the authority's answer to an accepted order.
type OrderReceipt struct {
	OrderID  string          `json:"orderId"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// PendingOrder is a checkout payload queued locally until the authority confirms it.
// Only Synced is ever changed after creation.
type PendingOrder struct {
	TempID    string       `json:"tempId"`
	Payload   OrderPayload `json:"payload"`
	CreatedAt time.Time    `json:"createdAt"`
	Synced    bool         `json:"synced"`
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether an order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}
