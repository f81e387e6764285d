package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
)

// EnqueuePendingOrder queues payload with synced=false and returns its temp id.
// Temp ids are time ordered, so later enqueues sort after earlier ones.
func (s *Store) EnqueuePendingOrder(ctx context.Context, payload domain.OrderPayload) (string, error) {
	tempID, err := s.ids.tempID()
	if err != nil {
		return "", fmt.Errorf("failed to generate temp id: %w", err)
	}
	order := domain.PendingOrder{
		TempID:    tempID,
		Payload:   payload,
		CreatedAt: s.ids.now().UTC(),
	}
	if err := put(ctx, s, kv.PendingOrders, tempID, order); err != nil {
		return "", s.writeFailed("enqueue pending order", err)
	}
	return tempID, nil
}

// GetPendingOrders returns the queue in creation order.
func (s *Store) GetPendingOrders(ctx context.Context) []domain.PendingOrder {
	orders, err := list[domain.PendingOrder](ctx, s, kv.PendingOrders)
	if err != nil {
		s.readFailed("get pending orders", err)
		return []domain.PendingOrder{}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return orders[i].TempID < orders[j].TempID
	})
	return orders
}

// MarkPendingOrderSynced flips the synced flag, the only field that changes
// after an order is queued.
func (s *Store) MarkPendingOrderSynced(ctx context.Context, tempID string) error {
	order, ok, err := get[domain.PendingOrder](ctx, s, kv.PendingOrders, tempID)
	if err != nil {
		return s.writeFailed("mark pending order synced", err)
	}
	if !ok {
		return fmt.Errorf("pending order %s: %w", tempID, domain.ErrNotFound)
	}
	if order.Synced {
		return nil
	}
	order.Synced = true
	if err := put(ctx, s, kv.PendingOrders, tempID, order); err != nil {
		return s.writeFailed("mark pending order synced", err)
	}
	return nil
}

func (s *Store) RemovePendingOrder(ctx context.Context, tempID string) error {
	if err := remove(ctx, s, kv.PendingOrders, tempID); err != nil {
		return s.writeFailed("remove pending order", err)
	}
	return nil
}
