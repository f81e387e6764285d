package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

// failingBackend wraps a memory backend and fails writes while failWrites is set.
type failingBackend struct {
	*kv.Memory
	failWrites atomic.Bool
	failReads  atomic.Bool
}

func (f *failingBackend) Put(ctx context.Context, collection, key string, value []byte) error {
	if f.failWrites.Load() {
		return errDiskFull
	}
	return f.Memory.Put(ctx, collection, key, value)
}

func (f *failingBackend) Replace(ctx context.Context, collection string, records []kv.Record) error {
	if f.failWrites.Load() {
		return errDiskFull
	}
	return f.Memory.Replace(ctx, collection, records)
}

func (f *failingBackend) GetAll(ctx context.Context, collection string) ([]kv.Record, error) {
	if f.failReads.Load() {
		return nil, errDiskFull
	}
	return f.Memory.GetAll(ctx, collection)
}

func memoryStore(t *testing.T) *Store {
	t.Helper()
	s := New(func(context.Context) (kv.Backend, error) { return kv.NewMemory(), nil }, nil)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func fakeProduct(id string) domain.Product {
	return domain.Product{
		ID:        id,
		Title:     gofakeit.ProductName(),
		BasePrice: decimal.NewFromInt(int64(gofakeit.IntRange(100, 9000))),
		Category:  gofakeit.ProductCategory(),
		Images:    []string{gofakeit.URL()},
		Variants: []domain.Variant{
			{SKU: id + "-1", Color: gofakeit.Color(), Size: "42", Stock: gofakeit.IntRange(0, 20)},
		},
	}
}

func TestOpen_ConcurrentCallersShareOneOpening(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s := New(func(context.Context) (kv.Backend, error) {
		calls.Add(1)
		<-release
		return kv.NewMemory(), nil
	}, nil)
	defer s.Close()

	assert.Equal(t, StateUnopened, s.State())

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Open(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return s.State() == StateOpening }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateReady, s.State())
}

func TestOpen_FirstWriteOpensLazily(t *testing.T) {
	s := New(func(context.Context) (kv.Backend, error) { return kv.NewMemory(), nil }, nil)
	defer s.Close()

	require.NoError(t, s.SaveProducts(context.Background(), []domain.Product{fakeProduct("p1")}))
	assert.Equal(t, StateReady, s.State())
}

func TestOpen_FailureDegradesAndRetries(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	fail.Store(true)
	s := New(func(context.Context) (kv.Backend, error) {
		if fail.Load() {
			return nil, errors.New("quota exceeded")
		}
		return kv.NewMemory(), nil
	}, nil)
	defer s.Close()

	assert.Error(t, s.Open(ctx))
	assert.Equal(t, StateFailed, s.State())

	assert.Empty(t, s.GetProducts(ctx))
	assert.Empty(t, s.GetCartLines(ctx))
	_, err := s.LoadCartLines(ctx)
	assert.Error(t, err)
	_, ok := s.GetProduct(ctx, "p1")
	assert.False(t, ok)

	err = s.SaveCartLine(ctx, domain.CartLine{ProductID: "p1", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	fail.Store(false)
	require.NoError(t, s.Open(ctx))
	assert.Equal(t, StateReady, s.State())
}

func TestWithMemoryFallback(t *testing.T) {
	s := New(WithMemoryFallback(func(context.Context) (kv.Backend, error) {
		return nil, errors.New("sqlite unavailable")
	}, nil), nil)
	defer s.Close()

	require.NoError(t, s.Open(context.Background()))
	require.NoError(t, s.SaveCartLine(context.Background(), domain.CartLine{ProductID: "p1", Quantity: 1}))
	assert.Len(t, s.GetCartLines(context.Background()), 1)
}

func TestClose(t *testing.T) {
	s := memoryStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, StateClosed, s.State())
	assert.ErrorIs(t, s.Open(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.ClearCart(context.Background()), domain.ErrPersistence)
}

func TestSaveProducts_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memoryStore(t)

	first := fakeProduct("p1")
	second := first
	second.Title = "Renamed"

	require.NoError(t, s.SaveProducts(ctx, []domain.Product{first}))
	require.NoError(t, s.SaveProducts(ctx, []domain.Product{second}))

	products := s.GetProducts(ctx)
	require.Len(t, products, 1)
	assert.Equal(t, "Renamed", products[0].Title)
}

func TestReplaceProducts(t *testing.T) {
	ctx := context.Background()
	s := memoryStore(t)

	require.NoError(t, s.SaveProducts(ctx, []domain.Product{fakeProduct("old")}))
	require.NoError(t, s.ReplaceProducts(ctx, []domain.Product{fakeProduct("a"), fakeProduct("b")}))

	_, ok := s.GetProduct(ctx, "old")
	assert.False(t, ok)

	p, ok := s.GetProduct(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "a", p.ID)
	assert.Len(t, s.GetProducts(ctx), 2)
}

func TestWrites_FailWithPersistenceError(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{Memory: kv.NewMemory()}
	s := New(func(context.Context) (kv.Backend, error) { return backend, nil }, nil)
	defer s.Close()

	require.NoError(t, s.SaveProducts(ctx, []domain.Product{fakeProduct("p1")}))
	backend.failWrites.Store(true)

	err := s.ReplaceProducts(ctx, []domain.Product{fakeProduct("p2")})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)

	_, err = s.EnqueuePendingOrder(ctx, domain.OrderPayload{Location: "Westlands"})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	// the previous snapshot survives a failed replace
	products := s.GetProducts(ctx)
	require.Len(t, products, 1)
	assert.Equal(t, "p1", products[0].ID)
}

func TestReads_DegradeToEmpty(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{Memory: kv.NewMemory()}
	s := New(func(context.Context) (kv.Backend, error) { return backend, nil }, nil)
	defer s.Close()

	require.NoError(t, s.SaveProducts(ctx, []domain.Product{fakeProduct("p1")}))
	backend.failReads.Store(true)

	assert.NotNil(t, s.GetProducts(ctx))
	assert.Empty(t, s.GetProducts(ctx))
	assert.Empty(t, s.GetPendingOrders(ctx))
	assert.Empty(t, s.GetWishlist(ctx))
}

func TestList_SkipsUndecodableRecords(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := New(func(context.Context) (kv.Backend, error) { return backend, nil }, nil)
	defer s.Close()

	require.NoError(t, s.SaveProducts(ctx, []domain.Product{fakeProduct("p1")}))
	require.NoError(t, backend.Put(ctx, kv.Products, "broken", []byte("{not json")))

	products := s.GetProducts(ctx)
	require.Len(t, products, 1)
	assert.Equal(t, "p1", products[0].ID)
}

func TestCartLines(t *testing.T) {
	ctx := context.Background()
	s := memoryStore(t)

	line := domain.CartLine{ProductID: "p1", SKU: "COV-RUN-BLU-42", Price: decimal.NewFromInt(4500), Quantity: 1}
	require.NoError(t, s.SaveCartLine(ctx, line))
	line.Quantity = 3
	require.NoError(t, s.SaveCartLine(ctx, line))

	lines := s.GetCartLines(ctx)
	require.Len(t, lines, 1)
	assert.Equal(t, "COV-RUN-BLU-42", lines[0].ID)
	assert.Equal(t, 3, lines[0].Quantity)

	require.NoError(t, s.RemoveCartLine(ctx, "COV-RUN-BLU-42"))
	assert.Empty(t, s.GetCartLines(ctx))

	require.NoError(t, s.SaveCartLine(ctx, domain.CartLine{ProductID: "legacy", Quantity: 1}))
	require.NoError(t, s.ClearCart(ctx))
	assert.Empty(t, s.GetCartLines(ctx))
}

func TestWishlist(t *testing.T) {
	ctx := context.Background()
	s := memoryStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddWishlistEntry(ctx, domain.WishlistEntry{ProductID: "b", AddedAt: base.Add(time.Hour)}))
	require.NoError(t, s.AddWishlistEntry(ctx, domain.WishlistEntry{ProductID: "a", AddedAt: base}))

	entries := s.GetWishlist(ctx)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ProductID)
	assert.Equal(t, "b", entries[1].ProductID)

	require.NoError(t, s.RemoveWishlistEntry(ctx, "a"))
	assert.Len(t, s.GetWishlist(ctx), 1)
}

func TestPendingOrders_CreationOrder(t *testing.T) {
	ctx := context.Background()
	s := memoryStore(t)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ids.now = func() time.Time { return clock }
	// ids deliberately sort opposite to creation time
	ids := []string{"ffffffff-0000-7000-8000-000000000000", "00000000-0000-7000-8000-000000000000"}
	n := 0
	s.ids.newID = func() (uuid.UUID, error) {
		id := uuid.MustParse(ids[n])
		n++
		return id, nil
	}

	first, err := s.EnqueuePendingOrder(ctx, domain.OrderPayload{Location: "A"})
	require.NoError(t, err)
	clock = clock.Add(time.Second)
	second, err := s.EnqueuePendingOrder(ctx, domain.OrderPayload{Location: "B"})
	require.NoError(t, err)

	assert.Equal(t, TempIDPrefix+ids[0], first)

	orders := s.GetPendingOrders(ctx)
	require.Len(t, orders, 2)
	assert.Equal(t, first, orders[0].TempID)
	assert.Equal(t, second, orders[1].TempID)
	assert.Equal(t, "A", orders[0].Payload.Location)
	assert.False(t, orders[0].Synced)
}

func TestPendingOrders_MarkSyncedAndRemove(t *testing.T) {
	ctx := context.Background()
	s := memoryStore(t)

	tempID, err := s.EnqueuePendingOrder(ctx, domain.OrderPayload{Location: "Westlands", Total: decimal.NewFromInt(4750)})
	require.NoError(t, err)

	require.NoError(t, s.MarkPendingOrderSynced(ctx, tempID))
	orders := s.GetPendingOrders(ctx)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Synced)
	assert.True(t, orders[0].Payload.Total.Equal(decimal.NewFromInt(4750)))

	require.NoError(t, s.RemovePendingOrder(ctx, tempID))
	assert.Empty(t, s.GetPendingOrders(ctx))

	assert.ErrorIs(t, s.MarkPendingOrderSynced(ctx, tempID), domain.ErrNotFound)
}
