package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%d user=testuser password=testpass dbname=testdb sslmode=disable", host, port.Int())
	repo, err := NewRepository(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.RunMigrations())
	return repo
}

func seedCatalog(t *testing.T, repo *Repository) {
	t.Helper()
	override := decimal.NewFromInt(2500)
	require.NoError(t, repo.UpsertProducts(context.Background(), []domain.Product{
		{
			ID:        "P1",
			Title:     "Runner",
			BasePrice: decimal.NewFromInt(2000),
			Images:    []string{"runner.jpg"},
			Variants: []domain.Variant{
				{SKU: "X", Color: "Blue", Size: "42", Stock: 2},
				{SKU: "Y", Color: "Red", Size: "43", Stock: 0, PriceOverride: &override},
			},
		},
		{
			ID:        "P2",
			Title:     "Scarf",
			BasePrice: decimal.NewFromInt(800),
			Colors:    []string{"Green"},
		},
	}))
}

func newOrder(key string, items ...domain.OrderItem) *Order {
	return &Order{
		ID:             uuid.New(),
		IdempotencyKey: key,
		Contact:        domain.Contact{Name: "Asha", Phone: "0700000000"},
		Location:       "Nairobi CBD",
		Items:          items,
		Subtotal:       decimal.NewFromInt(4000),
		Shipping:       decimal.NewFromInt(200),
		Total:          decimal.NewFromInt(4200),
		Currency:       "KES",
		Status:         domain.OrderStatusPending,
	}
}

func stockOf(t *testing.T, repo *Repository, productID, sku string) int {
	t.Helper()
	p, err := repo.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	v, ok := p.VariantBySKU(sku)
	require.True(t, ok)
	return v.Stock
}

func TestRepository_Catalog(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, repo)

	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "P1", products[0].ID)
	assert.Len(t, products[0].Variants, 2)
	assert.True(t, products[0].BasePrice.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, []string{"Green"}, products[1].Colors)
	assert.Empty(t, products[1].Variants)

	p, err := repo.GetProduct(ctx, "P1")
	require.NoError(t, err)
	y, ok := p.VariantBySKU("Y")
	require.True(t, ok)
	require.NotNil(t, y.PriceOverride)
	assert.True(t, y.PriceOverride.Equal(decimal.NewFromInt(2500)))

	_, err = repo.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)

	n, err := repo.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRepository_UpsertPrunesVariants(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, repo)

	require.NoError(t, repo.UpsertProducts(ctx, []domain.Product{{
		ID:        "P1",
		Title:     "Runner v2",
		BasePrice: decimal.NewFromInt(2100),
		Variants:  []domain.Variant{{SKU: "X", Color: "Blue", Size: "42", Stock: 9}},
	}}))

	p, err := repo.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Runner v2", p.Title)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, 9, p.Variants[0].Stock)
}

func TestRepository_MigrationsRerun(t *testing.T) {
	repo := setupTestDB(t)
	seedCatalog(t, repo)

	require.NoError(t, repo.RunMigrations())

	n, err := repo.CountProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRepository_CreateOrder(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, repo)

	order := newOrder("key-1", domain.OrderItem{SKU: "X", ProductID: "P1", Title: "Runner", Quantity: 2, Price: decimal.NewFromInt(2000)})
	stored, created, err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, order.ID, stored.ID)
	assert.Equal(t, 0, stockOf(t, repo, "P1", "X"))

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, "Asha", got.Contact.Name)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(4200)))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventOrderCreated, events[0].EventType)
	assert.Equal(t, order.ID.String(), events[0].AggregateID)
}

func TestRepository_CreateOrderIsIdempotent(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, repo)

	item := domain.OrderItem{SKU: "X", ProductID: "P1", Quantity: 1, Price: decimal.NewFromInt(2000)}
	first, created, err := repo.CreateOrder(ctx, newOrder("same-key", item))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := repo.CreateOrder(ctx, newOrder("same-key", item))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, stockOf(t, repo, "P1", "X"))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRepository_CreateOrderConcurrentSameKey(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, repo)

	item := domain.OrderItem{SKU: "X", ProductID: "P1", Quantity: 1, Price: decimal.NewFromInt(2000)}
	ids := make([]uuid.UUID, 4)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, _, err := repo.CreateOrder(ctx, newOrder("race-key", item))
			if assert.NoError(t, err) {
				ids[i] = stored.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, stockOf(t, repo, "P1", "X"))
}

func TestRepository_CreateOrderRefusesUnderflow(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, repo)

	order := newOrder("key-under",
		domain.OrderItem{SKU: "X", ProductID: "P1", Quantity: 1},
		domain.OrderItem{SKU: "Y", ProductID: "P1", Quantity: 1},
	)
	_, _, err := repo.CreateOrder(ctx, order)
	require.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Y", stockErr.SKU)
	assert.Equal(t, 0, stockErr.Available)

	// the whole order rolled back, including the first line
	assert.Equal(t, 2, stockOf(t, repo, "P1", "X"))
	_, err = repo.GetOrderByIdempotencyKey(ctx, "key-under")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, _, err = repo.CreateOrder(ctx, newOrder("key-unknown", domain.OrderItem{SKU: "Z", ProductID: "P1", Quantity: 1}))
	assert.ErrorIs(t, err, ErrUnknownSKU)
}

func TestRepository_UpdateOrderStatus(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, repo)

	order := newOrder("key-status", domain.OrderItem{SKU: "X", ProductID: "P1", Quantity: 2})
	_, _, err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)

	updated, err := repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, updated.Status)

	_, err = repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 2, stockOf(t, repo, "P1", "X"))

	_, err = repo.UpdateOrderStatus(ctx, uuid.New(), domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventOrderStatusChanged, events[2].EventType)

	var change statusChangedPayload
	require.NoError(t, json.Unmarshal(events[2].Payload, &change))
	assert.Equal(t, domain.OrderStatusConfirmed, change.From)
	assert.Equal(t, domain.OrderStatusCancelled, change.To)
}

func TestRepository_MarkEventAsProcessed(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, repo)

	_, _, err := repo.CreateOrder(ctx, newOrder("key-ev"))
	require.NoError(t, err)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
