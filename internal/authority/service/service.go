// Package service holds the authority's order rules: catalog pricing,
// server-side totals and idempotent order creation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/authority/repository"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/shipping"
	"github.com/fjod/go_cart/storefront/internal/variant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	CreateOrder(ctx context.Context, order *repository.Order) (*repository.Order, bool, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*repository.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*repository.Order, error)
}

type Service struct {
	repo     Repository
	fees     *shipping.Table
	currency string
	log      *slog.Logger
	newID    func() uuid.UUID
}

func New(repo Repository, fees *shipping.Table, currency string, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		fees:     fees,
		currency: currency,
		log:      logger.OrNop(log),
		newID:    uuid.New,
	}
}

func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) Product(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// PlaceOrder prices payload against the catalog and stores it. headerKey wins
// over the key in the body; a request carrying two different keys is refused.
// created is false when the key was seen before and the earlier order is returned.
func (s *Service) PlaceOrder(ctx context.Context, headerKey string, payload domain.OrderPayload) (order *repository.Order, created bool, err error) {
	key, err := idempotencyKey(headerKey, payload.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if key == "" {
		key = uuid.NewString()
		s.log.WarnContext(ctx, "order without idempotency key, retries will not be deduplicated", "generated_key", key)
	}

	if err := validatePayload(payload); err != nil {
		return nil, false, err
	}
	if payload.Currency != "" && !strings.EqualFold(payload.Currency, s.currency) {
		return nil, false, &domain.ValidationError{Field: "currency", Message: fmt.Sprintf("orders are accepted in %s only", s.currency)}
	}

	items, subtotal, err := s.price(ctx, payload.Items)
	if err != nil {
		return nil, false, err
	}
	fee, known := s.fees.Fee(payload.Location)
	if !known {
		s.log.InfoContext(ctx, "unknown delivery location, using default fee", "location", payload.Location)
	}
	total := subtotal.Add(fee)

	if !payload.Total.IsZero() && !payload.Total.Equal(total) {
		s.log.InfoContext(ctx, "client totals differ from catalog, using catalog totals",
			"idempotency_key", key, "client_total", payload.Total.String(), "total", total.String())
	}

	order = &repository.Order{
		ID:             s.newID(),
		IdempotencyKey: key,
		Contact:        payload.Contact,
		Location:       strings.TrimSpace(payload.Location),
		Items:          items,
		Subtotal:       subtotal,
		Shipping:       fee,
		Total:          total,
		Currency:       strings.ToUpper(s.currency),
		Status:         domain.OrderStatusPending,
	}
	if !payload.CreatedAt.IsZero() {
		order.CreatedAt = payload.CreatedAt.UTC()
	}

	stored, created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}
	if created {
		s.log.InfoContext(ctx, "order created", "order_id", stored.ID, "idempotency_key", key, "total", stored.Total.String())
	} else {
		s.log.InfoContext(ctx, "duplicate order request", "order_id", stored.ID, "idempotency_key", key)
	}
	return stored, created, nil
}

func idempotencyKey(header, body string) (string, error) {
	header, body = strings.TrimSpace(header), strings.TrimSpace(body)
	if header != "" && body != "" && header != body {
		return "", &domain.ValidationError{Field: "idempotencyKey", Message: "header and body idempotency keys differ"}
	}
	if header != "" {
		return header, nil
	}
	return body, nil
}

func validatePayload(p domain.OrderPayload) error {
	switch {
	case len(p.Items) == 0:
		return &domain.ValidationError{Field: "cartItems", Message: "order has no items"}
	case strings.TrimSpace(p.Contact.Name) == "":
		return &domain.ValidationError{Field: "contact.name", Message: "name is required"}
	case strings.TrimSpace(p.Contact.Phone) == "":
		return &domain.ValidationError{Field: "contact.phone", Message: "phone is required"}
	case strings.TrimSpace(p.Location) == "":
		return &domain.ValidationError{Field: "location", Message: "delivery location is required"}
	}
	for _, item := range p.Items {
		if item.Quantity < 1 {
			return &domain.ValidationError{Field: "cartItems", Message: fmt.Sprintf("quantity for %s must be at least 1", item.ProductID)}
		}
	}
	return nil
}

// price replaces client-side titles and prices with catalog values.
func (s *Service) price(ctx context.Context, in []domain.OrderItem) ([]domain.OrderItem, decimal.Decimal, error) {
	products := map[string]domain.Product{}
	out := make([]domain.OrderItem, 0, len(in))
	subtotal := decimal.Zero

	for _, item := range in {
		p, ok := products[item.ProductID]
		if !ok {
			var err error
			p, err = s.repo.GetProduct(ctx, item.ProductID)
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, decimal.Zero, &domain.ValidationError{Field: "cartItems", Message: fmt.Sprintf("unknown product %s", item.ProductID)}
			}
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("failed to load product %s: %w", item.ProductID, err)
			}
			products[item.ProductID] = p
		}

		priced := item
		priced.Title = p.Title
		if priced.Image == "" {
			priced.Image = p.FirstImage()
		}
		if p.HasVariants() {
			v, ok := p.VariantBySKU(item.SKU)
			if !ok {
				return nil, decimal.Zero, &domain.ValidationError{Field: "cartItems", Message: fmt.Sprintf("product %s has no variant %q", p.ID, item.SKU)}
			}
			priced.Color, priced.Size = v.Color, v.Size
			priced.Price = variant.EffectivePrice(p, v)
		} else {
			priced.SKU = ""
			priced.Price = p.BasePrice
		}

		out = append(out, priced)
		subtotal = subtotal.Add(priced.Price.Mul(decimal.NewFromInt(int64(priced.Quantity))))
	}
	return out, subtotal, nil
}

func (s *Service) Order(ctx context.Context, id string) (*repository.Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.ErrOrderNotFound
	}
	return s.repo.GetOrderByID(ctx, orderID)
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*repository.Order, error) {
	if !status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.ErrOrderNotFound
	}
	order, err := s.repo.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order status updated", "order_id", order.ID, "status", order.Status)
	return order, nil
}
