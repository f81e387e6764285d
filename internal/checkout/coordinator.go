// Package checkout turns the cart into an order: it validates, prices
// shipping, and either submits online or queues the order for later sync.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/connectivity"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/shipping"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlaceholderPrefix marks references minted locally for queued orders. The
// authority never issues ids with this prefix.
const PlaceholderPrefix = "LOCAL-"

type Cart interface {
	Hydrate(ctx context.Context)
	Lines() []domain.CartLine
	Clear(ctx context.Context) error
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, bool)
}

type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, payload domain.OrderPayload) (domain.OrderReceipt, error)
}

type OrderQueue interface {
	EnqueuePendingOrder(ctx context.Context, payload domain.OrderPayload) (string, error)
}

type PushRequester interface {
	RequestPush()
}

type Request struct {
	Contact  domain.Contact `json:"contact"`
	Location string         `json:"location"`
}

type Confirmation struct {
	Reference   string          `json:"reference"`
	Placeholder bool            `json:"placeholder"`
	TempID      string          `json:"tempId,omitempty"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Shipping    decimal.Decimal `json:"shipping"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Status      Status          `json:"status"`
	Path        []Status        `json:"path"`
}

type Deps struct {
	Cart     Cart
	Catalog  Catalog
	Remote   OrderSubmitter
	Queue    OrderQueue
	Monitor  connectivity.Monitor
	Shipping *shipping.Table
	Push     PushRequester
	Currency string
}

type Coordinator struct {
	deps Deps
	log  *slog.Logger
	now  func() time.Time

	// one checkout at a time so a double submit cannot order the cart twice
	mu sync.Mutex
}

func NewCoordinator(deps Deps, log *slog.Logger) *Coordinator {
	if deps.Shipping == nil {
		deps.Shipping = shipping.NewTable(shipping.DefaultFee, nil)
	}
	return &Coordinator{deps: deps, log: logger.OrNop(log), now: time.Now}
}

// Checkout places an order for the current cart. Validation and stock
// problems are returned before anything is sent or stored. When the
// authority cannot be reached the order is queued and confirmed with a
// placeholder reference. Any other rejection is returned and the cart is kept.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (*Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deps.Cart.Hydrate(ctx)
	a := newAttempt()
	lines := c.deps.Cart.Lines()

	if err := validate(req, lines); err != nil {
		_ = a.to(StatusFailed)
		return nil, err
	}
	if err := c.checkStock(ctx, lines); err != nil {
		_ = a.to(StatusFailed)
		return nil, err
	}

	payload := c.buildPayload(req, lines)

	if c.deps.Monitor.IsOnline() {
		if err := a.to(StatusSubmitting); err != nil {
			return nil, err
		}
		receipt, err := c.deps.Remote.SubmitOrder(ctx, payload)
		switch {
		case err == nil:
			if err := a.to(StatusConfirmed); err != nil {
				return nil, err
			}
			c.clearCart(ctx)
			c.log.Info("order placed", "order_id", receipt.OrderID, "total", receipt.Total.String())
			return &Confirmation{
				Reference: receipt.OrderID,
				Subtotal:  receipt.Subtotal,
				Shipping:  receipt.Shipping,
				Total:     receipt.Total,
				Currency:  payload.Currency,
				Status:    a.current(),
				Path:      a.path,
			}, nil
		case !isNetwork(err):
			_ = a.to(StatusFailed)
			c.log.Warn("order rejected", "error", err)
			return nil, fmt.Errorf("failed to place order: %w", err)
		}
		c.log.Warn("authority unreachable, queueing order", "error", err)
	}

	return c.enqueue(ctx, a, payload)
}

func (c *Coordinator) enqueue(ctx context.Context, a *attempt, payload domain.OrderPayload) (*Confirmation, error) {
	if err := a.to(StatusQueued); err != nil {
		return nil, err
	}
	tempID, err := c.deps.Queue.EnqueuePendingOrder(ctx, payload)
	if err != nil {
		_ = a.to(StatusFailed)
		return nil, fmt.Errorf("failed to queue order: %w", err)
	}
	if err := a.to(StatusConfirmed); err != nil {
		return nil, err
	}
	c.clearCart(ctx)
	if c.deps.Push != nil {
		c.deps.Push.RequestPush()
	}

	ref := placeholderReference(payload.IdempotencyKey)
	c.log.Info("order queued", "temp_id", tempID, "reference", ref, "total", payload.Total.String())
	return &Confirmation{
		Reference:   ref,
		Placeholder: true,
		TempID:      tempID,
		Subtotal:    payload.Subtotal,
		Shipping:    payload.Shipping,
		Total:       payload.Total,
		Currency:    payload.Currency,
		Status:      a.current(),
		Path:        a.path,
	}, nil
}

func validate(req Request, lines []domain.CartLine) error {
	if len(lines) == 0 {
		return &domain.ValidationError{Field: "cart", Message: "cart is empty, nothing to checkout"}
	}
	if strings.TrimSpace(req.Contact.Name) == "" {
		return &domain.ValidationError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(req.Contact.Phone) == "" {
		return &domain.ValidationError{Field: "phone", Message: "phone number is required"}
	}
	if strings.TrimSpace(req.Location) == "" {
		return &domain.ValidationError{Field: "location", Message: "select a delivery location"}
	}
	return nil
}

// checkStock compares each line with the cached catalog. Lines whose product
// is not cached are let through; the authority has the final say on stock.
func (c *Coordinator) checkStock(ctx context.Context, lines []domain.CartLine) error {
	for _, l := range lines {
		if l.SKU == "" {
			continue
		}
		p, ok := c.deps.Catalog.GetProduct(ctx, l.ProductID)
		if !ok || !p.HasVariants() {
			continue
		}
		v, ok := p.VariantBySKU(l.SKU)
		if !ok {
			return &domain.StockConflictError{ProductID: l.ProductID, SKU: l.SKU, Requested: l.Quantity, Reason: "variant no longer available"}
		}
		if err := cart.CheckStock(p.ID, v, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) buildPayload(req Request, lines []domain.CartLine) domain.OrderPayload {
	fee, known := c.deps.Shipping.Fee(req.Location)
	if !known {
		c.log.Info("unknown delivery location, using default fee", "location", req.Location, "fee", fee.String())
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			SKU:       l.SKU,
			ProductID: l.ProductID,
			Title:     l.Title,
			Size:      l.Size,
			Color:     l.Color,
			Quantity:  l.Quantity,
			Price:     l.Price,
			Image:     l.Image,
		})
	}

	subtotal := cart.Total(lines)
	return domain.OrderPayload{
		IdempotencyKey: uuid.NewString(),
		Contact: domain.Contact{
			Name:  strings.TrimSpace(req.Contact.Name),
			Phone: strings.TrimSpace(req.Contact.Phone),
			Email: strings.TrimSpace(req.Contact.Email),
		},
		Location:  strings.TrimSpace(req.Location),
		Items:     items,
		Subtotal:  subtotal,
		Shipping:  fee,
		Total:     subtotal.Add(fee),
		Currency:  c.deps.Currency,
		CreatedAt: c.now().UTC(),
	}
}

func (c *Coordinator) clearCart(ctx context.Context) {
	if err := c.deps.Cart.Clear(ctx); err != nil {
		c.log.Warn("failed to clear cart after checkout", "error", err)
	}
}

func isNetwork(err error) bool {
	return errors.Is(err, domain.ErrNetwork) || errors.Is(err, context.DeadlineExceeded)
}

// placeholderReference derives a short display reference from the order's
// idempotency key.
func placeholderReference(key string) string {
	ref := strings.ToUpper(strings.ReplaceAll(key, "-", ""))
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return PlaceholderPrefix + ref
}

// IsPlaceholder reports whether ref was minted locally.
func IsPlaceholder(ref string) bool {
	return strings.HasPrefix(ref, PlaceholderPrefix)
}
