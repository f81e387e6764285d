package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
)

// SaveProducts upserts products by id. Re-saving an id overwrites it.
func (s *Store) SaveProducts(ctx context.Context, products []domain.Product) error {
	for _, p := range products {
		if err := put(ctx, s, kv.Products, p.ID, p); err != nil {
			return s.writeFailed("save product "+p.ID, err)
		}
	}
	return nil
}

// ReplaceProducts swaps the whole cached catalog for products in one step.
func (s *Store) ReplaceProducts(ctx context.Context, products []domain.Product) error {
	records := make([]kv.Record, 0, len(products))
	for _, p := range products {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode product %s: %w", p.ID, err)
		}
		records = append(records, kv.Record{Key: p.ID, Value: raw})
	}

	b, err := s.ready(ctx)
	if err == nil {
		err = b.Replace(ctx, kv.Products, records)
	}
	if err != nil {
		return s.writeFailed("replace catalog", err)
	}
	return nil
}

// GetProducts returns the cached catalog, or an empty list when the store is unavailable.
func (s *Store) GetProducts(ctx context.Context) []domain.Product {
	products, err := list[domain.Product](ctx, s, kv.Products)
	if err != nil {
		s.readFailed("get products", err)
		return []domain.Product{}
	}
	return products
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, bool) {
	p, ok, err := get[domain.Product](ctx, s, kv.Products, id)
	if err != nil {
		s.readFailed("get product", err)
		return domain.Product{}, false
	}
	return p, ok
}
