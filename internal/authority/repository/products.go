package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// UpsertProducts writes products and their variants. Variants no longer
// listed for a product are removed; stock of listed variants is overwritten.
func (r *Repository) UpsertProducts(ctx context.Context, products []domain.Product) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range products {
			if err := upsertProduct(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertProduct(ctx context.Context, q querier, p domain.Product) error {
	images, err := json.Marshal(nonNil(p.Images))
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	colors, err := json.Marshal(nonNil(p.Colors))
	if err != nil {
		return fmt.Errorf("marshal colors: %w", err)
	}
	sizes, err := json.Marshal(nonNil(p.Sizes))
	if err != nil {
		return fmt.Errorf("marshal sizes: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO products (id, title, description, base_price, category, images, colors, sizes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			base_price = EXCLUDED.base_price,
			category = EXCLUDED.category,
			images = EXCLUDED.images,
			colors = EXCLUDED.colors,
			sizes = EXCLUDED.sizes,
			updated_at = NOW()`,
		p.ID, p.Title, p.Description, p.BasePrice, p.Category, images, colors, sizes)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}

	skus := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		skus = append(skus, v.SKU)
		override := decimal.NullDecimal{}
		if v.PriceOverride != nil {
			override = decimal.NullDecimal{Decimal: *v.PriceOverride, Valid: true}
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO variants (sku, product_id, color, size, stock, price_override)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (sku) DO UPDATE SET
				product_id = EXCLUDED.product_id,
				color = EXCLUDED.color,
				size = EXCLUDED.size,
				stock = EXCLUDED.stock,
				price_override = EXCLUDED.price_override`,
			v.SKU, p.ID, v.Color, v.Size, v.Stock, override)
		if err != nil {
			return fmt.Errorf("upsert variant %s: %w", v.SKU, err)
		}
	}

	_, err = q.ExecContext(ctx,
		`DELETE FROM variants WHERE product_id = $1 AND NOT (sku = ANY($2))`,
		p.ID, pq.Array(skus))
	if err != nil {
		return fmt.Errorf("prune variants of %s: %w", p.ID, err)
	}
	return nil
}

func (r *Repository) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, base_price, category, images, colors, sizes
		FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	index := map[string]int{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	variants, err := queryVariants(ctx, r.db, `
		SELECT product_id, sku, color, size, stock, price_override
		FROM variants ORDER BY product_id, sku`)
	if err != nil {
		return nil, err
	}
	for productID, vs := range variants {
		if i, ok := index[productID]; ok {
			products[i].Variants = vs
		}
	}
	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, base_price, category, images, colors, sizes
		FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}

	variants, err := queryVariants(ctx, r.db, `
		SELECT product_id, sku, color, size, stock, price_override
		FROM variants WHERE product_id = $1 ORDER BY sku`, id)
	if err != nil {
		return domain.Product{}, err
	}
	p.Variants = variants[id]
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p                     domain.Product
		images, colors, sizes []byte
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.BasePrice, &p.Category, &images, &colors, &sizes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan product row: %w", err)
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return p, fmt.Errorf("unmarshal images of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(colors, &p.Colors); err != nil {
		return p, fmt.Errorf("unmarshal colors of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(sizes, &p.Sizes); err != nil {
		return p, fmt.Errorf("unmarshal sizes of %s: %w", p.ID, err)
	}
	if len(p.Colors) == 0 {
		p.Colors = nil
	}
	if len(p.Sizes) == 0 {
		p.Sizes = nil
	}
	return p, nil
}

func queryVariants(ctx context.Context, q querier, query string, args ...any) (map[string][]domain.Variant, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	out := map[string][]domain.Variant{}
	for rows.Next() {
		var (
			productID string
			v         domain.Variant
			override  decimal.NullDecimal
		)
		if err := rows.Scan(&productID, &v.SKU, &v.Color, &v.Size, &v.Stock, &override); err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}
		if override.Valid {
			price := override.Decimal
			v.PriceOverride = &price
		}
		out[productID] = append(out[productID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
