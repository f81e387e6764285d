package store

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
)

func (s *Store) SaveCartLine(ctx context.Context, line domain.CartLine) error {
	if line.ID == "" {
		line.ID = line.Key()
	}
	if err := put(ctx, s, kv.Cart, line.ID, line); err != nil {
		return s.writeFailed("save cart line", err)
	}
	return nil
}

func (s *Store) RemoveCartLine(ctx context.Context, id string) error {
	if err := remove(ctx, s, kv.Cart, id); err != nil {
		return s.writeFailed("remove cart line", err)
	}
	return nil
}

func (s *Store) GetCartLines(ctx context.Context) []domain.CartLine {
	lines, err := s.LoadCartLines(ctx)
	if err != nil {
		s.readFailed("get cart lines", err)
		return []domain.CartLine{}
	}
	return lines
}

// LoadCartLines is GetCartLines without the degradation: an unavailable store
// is reported instead of looking like an empty cart.
func (s *Store) LoadCartLines(ctx context.Context) ([]domain.CartLine, error) {
	lines, err := list[domain.CartLine](ctx, s, kv.Cart)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart lines: %w", err)
	}
	return lines, nil
}

func (s *Store) ClearCart(ctx context.Context) error {
	if err := clearCollection(ctx, s, kv.Cart); err != nil {
		return s.writeFailed("clear cart", err)
	}
	return nil
}
