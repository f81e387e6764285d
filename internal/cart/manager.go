// Package cart holds the in-memory cart and mirrors every change to the local store.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/variant"
	"github.com/shopspring/decimal"
)

// LineStore is the durable mirror of the cart.
type LineStore interface {
	LoadCartLines(ctx context.Context) ([]domain.CartLine, error)
	SaveCartLine(ctx context.Context, line domain.CartLine) error
	RemoveCartLine(ctx context.Context, id string) error
	ClearCart(ctx context.Context) error
}

// Catalog supplies cached stock for quantity changes. Products it does not
// know are not checked.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, bool)
}

// Listener receives a snapshot of the lines after every change. Listeners run
// while the cart is locked and must not mutate it.
type Listener func(lines []domain.CartLine)

var errNotLoaded = errors.New("saved cart not loaded yet")

// Manager is the only writer of cart lines. Mutations are serialised, applied
// in memory and persisted before they return.
type Manager struct {
	store   LineStore
	catalog Catalog
	log     *slog.Logger

	hydrateMu sync.Mutex

	mu       sync.Mutex
	lines    []domain.CartLine
	hydrated bool
	degraded bool
	// changes made before the saved cart could be loaded, replayed on hydration
	dropped map[string]bool
	cleared bool

	listeners map[int]Listener
	nextID    int
}

// NewManager returns a cart mirrored to store. catalog may be nil, in which
// case quantity changes are not checked against stock.
func NewManager(store LineStore, catalog Catalog, log *slog.Logger) *Manager {
	return &Manager{
		store:     store,
		catalog:   catalog,
		log:       logger.OrNop(log),
		dropped:   make(map[string]bool),
		listeners: make(map[int]Listener),
	}
}

// Hydrate loads persisted lines into memory. Every mutation calls it first so
// early mutations cannot race the load. A failed load leaves the cart
// unhydrated: mutations stay memory-only until a later call loads the saved
// lines and merges them with what changed in the meantime.
func (m *Manager) Hydrate(ctx context.Context) {
	m.hydrateMu.Lock()
	defer m.hydrateMu.Unlock()

	m.mu.Lock()
	done := m.hydrated
	m.mu.Unlock()
	if done {
		return
	}

	persisted, err := m.store.LoadCartLines(ctx)
	if err != nil {
		m.log.Warn("failed to load saved cart, will retry", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hydrated = true
	m.degraded = false
	m.mergeLocked(ctx, persisted)
	m.log.Debug("cart hydrated", "lines", len(m.lines))
	m.notifyLocked()
}

// mergeLocked folds the saved lines under the in-memory ones. Quantities added
// before hydration are summed onto the saved line, and removals or a clear
// made before hydration are applied to the saved cart.
func (m *Manager) mergeLocked(ctx context.Context, persisted []domain.CartLine) {
	pending := m.lines
	if m.cleared && len(persisted) > 0 {
		m.recordLocked(m.store.ClearCart(ctx))
		persisted = nil
	}

	merged := make([]domain.CartLine, 0, len(persisted)+len(pending))
	for _, l := range persisted {
		if m.dropped[l.ID] {
			m.recordLocked(m.store.RemoveCartLine(ctx, l.ID))
			continue
		}
		merged = append(merged, l)
	}
	m.lines = merged

	for _, l := range pending {
		if i := m.indexLocked(l.ID); i >= 0 {
			m.lines[i].Quantity += l.Quantity
			l = m.lines[i]
		} else {
			m.lines = append(m.lines, l)
		}
		m.recordLocked(m.store.SaveCartLine(ctx, l))
	}

	m.dropped = make(map[string]bool)
	m.cleared = false
}

// AddLine merges line into the cart by identity key, summing quantities.
// A zero quantity counts as one.
func (m *Manager) AddLine(ctx context.Context, line domain.CartLine) error {
	if line.Quantity <= 0 {
		line.Quantity = 1
	}
	line.ID = line.Key()
	if line.ID == "" {
		return &domain.ValidationError{Field: "productId", Message: "is required"}
	}

	m.Hydrate(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(ctx, line)
	return nil
}

func (m *Manager) addLocked(ctx context.Context, line domain.CartLine) {
	if i := m.indexLocked(line.ID); i >= 0 {
		m.lines[i].Quantity += line.Quantity
		line = m.lines[i]
	} else {
		m.lines = append(m.lines, line)
	}
	m.saveLocked(ctx, line)
}

// saveLocked writes line through to the store once the saved cart is loaded.
func (m *Manager) saveLocked(ctx context.Context, line domain.CartLine) {
	if !m.hydrated {
		m.persistLocked(errNotLoaded)
		return
	}
	m.persistLocked(m.store.SaveCartLine(ctx, line))
}

// AddVariant resolves (color, size) on p and adds quantity of it. Unknown
// combinations, sold-out variants and quantities above the cached stock are
// rejected with a *domain.StockConflictError.
func (m *Manager) AddVariant(ctx context.Context, p domain.Product, color, size string, quantity int) error {
	if quantity <= 0 {
		quantity = 1
	}
	if !p.HasVariants() {
		return m.AddLine(ctx, domain.CartLine{
			ProductID: p.ID,
			Title:     p.Title,
			Price:     p.BasePrice,
			Image:     p.FirstImage(),
			Size:      size,
			Color:     color,
			Quantity:  quantity,
		})
	}

	v, ok := variant.Resolve(p, color, size)
	if !ok {
		return &domain.StockConflictError{
			ProductID: p.ID,
			Requested: quantity,
			Reason:    fmt.Sprintf("no variant for color %q and size %q", color, size),
		}
	}

	m.Hydrate(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	inCart := 0
	if i := m.indexLocked(domain.LineKey(v.SKU, p.ID)); i >= 0 {
		inCart = m.lines[i].Quantity
	}
	if err := CheckStock(p.ID, v, inCart+quantity); err != nil {
		return err
	}

	m.addLocked(ctx, domain.CartLine{
		ID:        domain.LineKey(v.SKU, p.ID),
		ProductID: p.ID,
		SKU:       v.SKU,
		Title:     p.Title,
		Price:     variant.EffectivePrice(p, v),
		Image:     p.FirstImage(),
		Size:      v.Size,
		Color:     v.Color,
		Quantity:  quantity,
	})
	return nil
}

// CheckStock validates a requested quantity against a cached variant.
func CheckStock(productID string, v domain.Variant, requested int) error {
	if variant.Status(v) == variant.OutOfStock {
		return &domain.StockConflictError{ProductID: productID, SKU: v.SKU, Requested: requested, Available: v.Stock, Reason: "out of stock"}
	}
	if requested > v.Stock {
		return &domain.StockConflictError{ProductID: productID, SKU: v.SKU, Requested: requested, Available: v.Stock, Reason: "quantity exceeds available stock"}
	}
	return nil
}

func (m *Manager) RemoveLine(ctx context.Context, id string) error {
	m.Hydrate(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(ctx, id)
	return nil
}

func (m *Manager) removeLocked(ctx context.Context, id string) {
	if i := m.indexLocked(id); i >= 0 {
		m.lines = append(m.lines[:i:i], m.lines[i+1:]...)
	}
	if !m.hydrated {
		m.dropped[id] = true
		m.persistLocked(errNotLoaded)
		return
	}
	m.persistLocked(m.store.RemoveCartLine(ctx, id))
}

// SetQuantity sets the quantity of a line, clamped to a floor of one.
// Raising it past the cached stock of the line's variant is rejected with a
// *domain.StockConflictError. Removal is only ever done through RemoveLine.
func (m *Manager) SetQuantity(ctx context.Context, id string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	m.Hydrate(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("cart line %s: %w", id, domain.ErrNotFound)
	}
	if quantity > m.lines[i].Quantity {
		if err := m.checkLineStock(ctx, m.lines[i], quantity); err != nil {
			return err
		}
	}
	m.setLocked(ctx, i, quantity)
	return nil
}

func (m *Manager) setLocked(ctx context.Context, i, quantity int) {
	m.lines[i].Quantity = quantity
	m.saveLocked(ctx, m.lines[i])
}

// checkLineStock looks the line's variant up in the cached catalog. Legacy
// lines and products missing from the cache pass; the authority has the final say.
func (m *Manager) checkLineStock(ctx context.Context, line domain.CartLine, quantity int) error {
	if m.catalog == nil || line.SKU == "" {
		return nil
	}
	p, ok := m.catalog.GetProduct(ctx, line.ProductID)
	if !ok {
		return nil
	}
	v, ok := p.VariantBySKU(line.SKU)
	if !ok {
		return nil
	}
	return CheckStock(p.ID, v, quantity)
}

// Decrement is the quantity stepper's minus button: a line at quantity one is
// removed, anything above goes down by one.
func (m *Manager) Decrement(ctx context.Context, id string) error {
	m.Hydrate(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("cart line %s: %w", id, domain.ErrNotFound)
	}
	if m.lines[i].Quantity <= 1 {
		m.removeLocked(ctx, id)
		return nil
	}
	m.setLocked(ctx, i, m.lines[i].Quantity-1)
	return nil
}

func (m *Manager) Clear(ctx context.Context) error {
	m.Hydrate(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lines = nil
	if !m.hydrated {
		m.cleared = true
		m.persistLocked(errNotLoaded)
		return nil
	}
	m.persistLocked(m.store.ClearCart(ctx))
	return nil
}

// Lines returns a copy of the current lines.
func (m *Manager) Lines() []domain.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) Line(id string) (domain.CartLine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.lines[i], true
	}
	return domain.CartLine{}, false
}

// Total is the sum of price times quantity. Shipping is added at checkout.
func (m *Manager) Total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Total(m.lines)
}

// Count is the number of items across all lines.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.lines {
		n += l.Quantity
	}
	return n
}

// Degraded reports whether a write to the local store has failed since the
// last successful one, meaning the cart is currently memory-only.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Subscribe registers l and immediately calls it with the current lines.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	l(m.snapshotLocked())
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

func Total(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (m *Manager) persistLocked(err error) {
	m.recordLocked(err)
	m.notifyLocked()
}

// recordLocked tracks the outcome of a store write without notifying listeners.
func (m *Manager) recordLocked(err error) {
	if err != nil {
		if !m.degraded {
			m.log.Warn("cart persistence failed, continuing memory-only", "error", err)
		}
		m.degraded = true
		return
	}
	m.degraded = false
}

func (m *Manager) notifyLocked() {
	if len(m.listeners) == 0 {
		return
	}
	snapshot := m.snapshotLocked()
	for id := 0; id < m.nextID; id++ {
		if l, ok := m.listeners[id]; ok {
			l(snapshot)
		}
	}
}

func (m *Manager) snapshotLocked() []domain.CartLine {
	out := make([]domain.CartLine, len(m.lines))
	copy(out, m.lines)
	return out
}

func (m *Manager) indexLocked(id string) int {
	for i, l := range m.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}
