package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
	assert.False(t, OrderStatus("lost").Valid())
}

func TestStockConflictError(t *testing.T) {
	err := fmt.Errorf("add: %w", &StockConflictError{SKU: "X", Requested: 3, Available: 1, Reason: "quantity exceeds available stock"})
	assert.ErrorIs(t, err, ErrStockConflict)
	assert.Contains(t, err.Error(), "requested 3, available 1")

	legacy := &StockConflictError{ProductID: "P1", Reason: "out of stock"}
	assert.Equal(t, "stock conflict for product P1: out of stock", legacy.Error())
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("checkout: %w", &ValidationError{Field: "phone", Message: "phone is required"})
	assert.True(t, IsValidation(err))
	assert.Equal(t, "checkout: phone: phone is required", err.Error())
	assert.False(t, IsValidation(errors.New("other")))
	assert.Equal(t, "cart is empty", (&ValidationError{Message: "cart is empty"}).Error())
}

func TestCartLine(t *testing.T) {
	line := CartLine{ProductID: "P1", SKU: "X", Price: decimal.NewFromInt(2000), Quantity: 2}
	assert.Equal(t, "X", line.Key())
	assert.True(t, line.Subtotal().Equal(decimal.NewFromInt(4000)))

	legacy := CartLine{ProductID: "P2"}
	assert.Equal(t, "P2", legacy.Key())
}

func TestProduct(t *testing.T) {
	p := Product{ID: "P1", Variants: []Variant{{SKU: "X"}}}
	assert.True(t, p.HasVariants())
	assert.Equal(t, "", p.FirstImage())

	_, ok := p.VariantBySKU("X")
	assert.True(t, ok)
	_, ok = p.VariantBySKU("Y")
	assert.False(t, ok)
}
