package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Seeder is implemented by the repository.
type Seeder interface {
	CountProducts(ctx context.Context) (int, error)
	UpsertProducts(ctx context.Context, products []domain.Product) error
}

// LoadSeed reads a JSON array of products.
func LoadSeed(path string) ([]domain.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("seed product %d has no id", i)
		}
		for _, v := range p.Variants {
			if v.SKU == "" {
				return nil, fmt.Errorf("seed product %s has a variant without sku", p.ID)
			}
			if v.Stock < 0 {
				return nil, fmt.Errorf("seed variant %s has negative stock", v.SKU)
			}
		}
	}
	return products, nil
}

// SeedIfEmpty loads the seed file into an empty catalog. A catalog that
// already has products is left alone so restarts keep current stock.
func SeedIfEmpty(ctx context.Context, repo Seeder, path string) (int, error) {
	n, err := repo.CountProducts(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	products, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}
	if err := repo.UpsertProducts(ctx, products); err != nil {
		return 0, fmt.Errorf("failed to seed catalog: %w", err)
	}
	return len(products), nil
}
