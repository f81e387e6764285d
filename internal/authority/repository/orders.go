package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

const orderColumns = `id, idempotency_key, contact, location, items, subtotal, shipping, total, currency, status, created_at, updated_at`

// CreateOrder stores order, decrements stock for every sku it carries and
// writes an order.created outbox event, all in one transaction. If an order
// with the same idempotency key already exists it is returned unchanged with
// created == false, and no stock is touched.
func (r *Repository) CreateOrder(ctx context.Context, order *Order) (stored *Order, created bool, err error) {
	err = r.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := getOrder(ctx, tx, `WHERE idempotency_key = $1`, order.IdempotencyKey)
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return err
		}

		// inserting first makes a concurrent request with the same key wait
		// on the unique index instead of racing for stock
		if err := insertOrder(ctx, tx, order); err != nil {
			return err
		}

		for _, item := range order.Items {
			if item.SKU == "" {
				continue
			}
			if err := decrementStock(ctx, tx, item); err != nil {
				return err
			}
		}

		payload, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("marshal order event: %w", err)
		}
		if err := insertEvent(ctx, tx, order.ID.String(), EventOrderCreated, payload); err != nil {
			return err
		}
		stored, created = order, true
		return nil
	})

	// a concurrent request with the same key won the insert
	if isUniqueViolation(err) {
		existing, getErr := getOrder(ctx, r.db, `WHERE idempotency_key = $1`, order.IdempotencyKey)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func decrementStock(ctx context.Context, q querier, item domain.OrderItem) error {
	res, err := q.ExecContext(ctx, `
		UPDATE variants SET stock = stock - $1
		WHERE sku = $2 AND product_id = $3 AND stock >= $1`,
		item.Quantity, item.SKU, item.ProductID)
	if err != nil {
		return fmt.Errorf("decrement stock of %s: %w", item.SKU, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock of %s: %w", item.SKU, err)
	}
	if n == 1 {
		return nil
	}

	var available int
	err = q.QueryRowContext(ctx,
		`SELECT stock FROM variants WHERE sku = $1 AND product_id = $2`,
		item.SKU, item.ProductID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrUnknownSKU, item.SKU)
	}
	if err != nil {
		return fmt.Errorf("read stock of %s: %w", item.SKU, err)
	}
	return &InsufficientStockError{SKU: item.SKU, Requested: item.Quantity, Available: available}
}

func restoreStock(ctx context.Context, q querier, items []domain.OrderItem) error {
	for _, item := range items {
		if item.SKU == "" {
			continue
		}
		_, err := q.ExecContext(ctx,
			`UPDATE variants SET stock = stock + $1 WHERE sku = $2 AND product_id = $3`,
			item.Quantity, item.SKU, item.ProductID)
		if err != nil {
			return fmt.Errorf("restore stock of %s: %w", item.SKU, err)
		}
	}
	return nil
}

func insertOrder(ctx context.Context, q querier, order *Order) error {
	contact, err := json.Marshal(order.Contact)
	if err != nil {
		return fmt.Errorf("failed to marshal contact: %w", err)
	}
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	_, err = q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		order.ID, order.IdempotencyKey, contact, order.Location, items,
		order.Subtotal, order.Shipping, order.Total, order.Currency, order.Status,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getOrder(ctx, r.db, `WHERE id = $1`, id)
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	return getOrder(ctx, r.db, `WHERE idempotency_key = $1`, key)
}

func getOrder(ctx context.Context, q querier, where string, arg any) (*Order, error) {
	var (
		order          Order
		contact, items []byte
	)
	err := q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg).Scan(
		&order.ID,
		&order.IdempotencyKey,
		&contact,
		&order.Location,
		&items,
		&order.Subtotal,
		&order.Shipping,
		&order.Total,
		&order.Currency,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if err := json.Unmarshal(contact, &order.Contact); err != nil {
		return nil, fmt.Errorf("unmarshal contact: %w", err)
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}

// UpdateOrderStatus moves an order to next. Setting the current status again
// is a no-op. Cancelling returns the order's stock.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*Order, error) {
	var updated *Order
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		order, err := getOrder(ctx, tx, `WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		if order.Status == next {
			updated = order
			return nil
		}
		if !order.Status.CanTransitionTo(next) {
			return &TransitionError{From: order.Status, To: next}
		}

		if next == domain.OrderStatusCancelled {
			if err := restoreStock(ctx, tx, order.Items); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
			next, now, id); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		payload, err := json.Marshal(statusChangedPayload{
			OrderID:   id.String(),
			From:      order.Status,
			To:        next,
			ChangedAt: now,
		})
		if err != nil {
			return fmt.Errorf("marshal status event: %w", err)
		}
		if err := insertEvent(ctx, tx, id.String(), EventOrderStatusChanged, payload); err != nil {
			return err
		}

		order.Status = next
		order.UpdatedAt = now
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
