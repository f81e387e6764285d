package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/fjod/go_cart/storefront/internal/remote"
	"github.com/fjod/go_cart/storefront/internal/shipping"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/fjod/go_cart/storefront/internal/syncer"
	"github.com/shopspring/decimal"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

type checkoutMock struct {
	conf *checkout.Confirmation
	err  error
	got  checkout.Request
}

func (m *checkoutMock) Checkout(_ context.Context, req checkout.Request) (*checkout.Confirmation, error) {
	m.got = req
	return m.conf, m.err
}

type syncMock struct {
	resets  int
	push    syncer.PushResult
	pending []domain.PendingOrder
	dropped []string
}

func (m *syncMock) Status(context.Context) syncer.Status {
	return syncer.Status{Online: true, Pending: 2, Stalled: []syncer.StalledOrder{}}
}

func (m *syncMock) PullCatalog(context.Context) syncer.PullResult {
	return syncer.PullResult{Products: 3, Refreshed: true}
}

func (m *syncMock) PushOrders(context.Context) syncer.PushResult {
	return m.push
}

func (m *syncMock) ResetStalled() {
	m.resets++
}

func (m *syncMock) Pending(context.Context) []domain.PendingOrder {
	return m.pending
}

func (m *syncMock) DropPending(_ context.Context, tempID string) error {
	for i, o := range m.pending {
		if o.TempID == tempID {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			m.dropped = append(m.dropped, tempID)
			return nil
		}
	}
	return fmt.Errorf("pending order %s: %w", tempID, domain.ErrNotFound)
}

type testServer struct {
	handler  http.Handler
	store    *store.Store
	cart     *cart.Manager
	checkout *checkoutMock
	sync     *syncMock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := store.New(func(context.Context) (kv.Backend, error) { return kv.NewMemory(), nil }, nil)
	t.Cleanup(func() { s.Close() })

	runner := domain.Product{
		ID:        "cov-run",
		Title:     "Covenant Runner",
		BasePrice: decimal.NewFromInt(4500),
		Images:    []string{"runner.jpg"},
		Variants: []domain.Variant{
			{SKU: "COV-RUN-BLU-42", Color: "Blue", Size: "42", Stock: 3},
			{SKU: "COV-RUN-BLU-9", Color: "Blue", Size: "9", Stock: 10},
			{SKU: "COV-RUN-RED-40", Color: "Red", Size: "40", Stock: 0},
		},
	}
	assert.NilError(t, s.SaveProducts(context.Background(), []domain.Product{runner}))

	ts := &testServer{
		store:    s,
		cart:     cart.NewManager(s, s, nil),
		checkout: &checkoutMock{},
		sync:     &syncMock{},
	}
	table := shipping.NewTable(shipping.DefaultFee, nil)
	ts.handler = NewRouter(Handlers{
		Products: NewProductHandler(s, time.Second),
		Cart:     NewCartHandler(ts.cart, s, time.Second),
		Wishlist: NewWishlistHandler(s, s, time.Second),
		Checkout: NewCheckoutHandler(ts.checkout, table, time.Second),
		Sync:     NewSyncHandler(ts.sync, time.Second),
	}, 5*time.Second, nil)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		assert.NilError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProducts(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/products", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	list := decode[ProductsResponse](t, rec)
	assert.Assert(t, is.Len(list.Products, 1))

	rec = ts.do(t, http.MethodGet, "/api/v1/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/products/cov-run/colors", nil)
	assert.DeepEqual(t, map[string][]string{"colors": {"Blue", "Red"}}, decode[map[string][]string](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/v1/products/cov-run/sizes?color=Blue", nil)
	assert.DeepEqual(t, map[string][]string{"sizes": {"9", "42"}}, decode[map[string][]string](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/v1/products/cov-run/variant?color=Blue&size=42", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	v := decode[VariantResponse](t, rec)
	assert.Equal(t, "COV-RUN-BLU-42", v.Variant.SKU)
	assert.Equal(t, "low-stock", string(v.Status))

	rec = ts.do(t, http.MethodGet, "/api/v1/products/cov-run/variant?color=Blue&size=99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartFlow(t *testing.T) {
	ts := newTestServer(t)
	add := AddItemRequestDTO{ProductID: "cov-run", Color: "Blue", Size: "42", Quantity: 1}

	rec := ts.do(t, http.MethodPost, "/api/v1/cart/items", add)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/v1/cart/items", add)
	assert.Equal(t, http.StatusCreated, rec.Code)

	c := decode[CartResponse](t, rec)
	assert.Assert(t, is.Len(c.Lines, 1))
	assert.Equal(t, 2, c.Lines[0].Quantity)
	assert.Equal(t, "9000", c.Total.String())

	rec = ts.do(t, http.MethodPut, "/api/v1/cart/items/COV-RUN-BLU-42", UpdateQuantityRequestDTO{Quantity: 0})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[CartResponse](t, rec).Count)

	rec = ts.do(t, http.MethodPost, "/api/v1/cart/items/COV-RUN-BLU-42/decrement", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[CartResponse](t, rec).Count)

	rec = ts.do(t, http.MethodPut, "/api/v1/cart/items/COV-RUN-BLU-42", UpdateQuantityRequestDTO{Quantity: 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// request fields use the same camelCase as the responses
	rec = ts.do(t, http.MethodPost, "/api/v1/cart/items", json.RawMessage(`{"productId":"cov-run","color":"Blue","size":"42","quantity":1}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "cov-run", decode[CartResponse](t, rec).Lines[0].ProductID)

	rec = ts.do(t, http.MethodDelete, "/api/v1/cart", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Assert(t, is.Len(ts.store.GetCartLines(context.Background()), 0))
}

func TestCart_UpdateQuantityChecksStock(t *testing.T) {
	ts := newTestServer(t)
	add := AddItemRequestDTO{ProductID: "cov-run", Color: "Blue", Size: "42", Quantity: 1}
	rec := ts.do(t, http.MethodPost, "/api/v1/cart/items", add)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/cart/items/COV-RUN-BLU-42", UpdateQuantityRequestDTO{Quantity: 50})
	assert.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "stock_conflict", errResp.Code)
	assert.Equal(t, "COV-RUN-BLU-42", errResp.Details)

	rec = ts.do(t, http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, 1, decode[CartResponse](t, rec).Count)

	rec = ts.do(t, http.MethodPut, "/api/v1/cart/items/COV-RUN-BLU-42", UpdateQuantityRequestDTO{Quantity: 3})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[CartResponse](t, rec).Count)
}

func TestCart_AddErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown combination", AddItemRequestDTO{ProductID: "cov-run", Color: "Blue", Size: "99"}, http.StatusConflict, "stock_conflict"},
		{"out of stock", AddItemRequestDTO{ProductID: "cov-run", Color: "Red", Size: "40"}, http.StatusConflict, "stock_conflict"},
		{"above stock", AddItemRequestDTO{ProductID: "cov-run", Color: "Blue", Size: "42", Quantity: 4}, http.StatusConflict, "stock_conflict"},
		{"unknown product", AddItemRequestDTO{ProductID: "nope"}, http.StatusNotFound, "not_found"},
		{"missing product", AddItemRequestDTO{}, http.StatusBadRequest, "invalid_product_id"},
		{"bad quantity", AddItemRequestDTO{ProductID: "cov-run", Quantity: 100}, http.StatusBadRequest, "invalid_quantity"},
		{"bad json", "{", http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/cart/items", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestWishlist(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/wishlist", AddWishlistRequestDTO{ProductID: "cov-run"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/wishlist", nil)
	entries := decode[map[string][]domain.WishlistEntry](t, rec)["entries"]
	assert.Assert(t, is.Len(entries, 1))
	assert.Equal(t, "Covenant Runner", entries[0].Title)

	rec = ts.do(t, http.MethodDelete, "/api/v1/wishlist/cov-run", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Assert(t, is.Len(ts.store.GetWishlist(context.Background()), 0))
}

func TestCheckout(t *testing.T) {
	req := checkout.Request{Contact: domain.Contact{Name: "Wanjiku", Phone: "0712"}, Location: "Nairobi CBD"}

	t.Run("confirmed", func(t *testing.T) {
		ts := newTestServer(t)
		ts.checkout.conf = &checkout.Confirmation{Reference: "R1", Total: decimal.NewFromInt(4700), Status: checkout.StatusConfirmed}

		rec := ts.do(t, http.MethodPost, "/api/v1/checkout", req)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "R1", decode[checkout.Confirmation](t, rec).Reference)
		assert.Equal(t, "Nairobi CBD", ts.checkout.got.Location)
	})

	t.Run("queued", func(t *testing.T) {
		ts := newTestServer(t)
		ts.checkout.conf = &checkout.Confirmation{Reference: "LOCAL-0A1B2C3D", Placeholder: true}

		rec := ts.do(t, http.MethodPost, "/api/v1/checkout", req)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	errorCases := []struct {
		err    error
		status int
	}{
		{&domain.ValidationError{Field: "phone", Message: "phone number is required"}, http.StatusBadRequest},
		{&domain.StockConflictError{SKU: "X", Reason: "out of stock"}, http.StatusConflict},
		{fmt.Errorf("failed to place order: %w", &remote.RejectedError{StatusCode: 409, Message: "sold out"}), http.StatusUnprocessableEntity},
		{fmt.Errorf("failed to queue order: %w", domain.ErrPersistence), http.StatusServiceUnavailable},
	}
	for _, tc := range errorCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			ts := newTestServer(t)
			ts.checkout.err = tc.err
			rec := ts.do(t, http.MethodPost, "/api/v1/checkout", req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestCheckoutLocations(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/checkout/locations", nil)
	locations := decode[map[string][]LocationResponse](t, rec)["locations"]
	assert.Assert(t, len(locations) > 0)

	found := false
	for _, l := range locations {
		if l.Name == "Nairobi CBD" {
			found = true
			assert.Equal(t, "200", l.Fee)
		}
	}
	assert.Assert(t, found)
}

func TestSync(t *testing.T) {
	ts := newTestServer(t)
	ts.sync.push = syncer.PushResult{Pushed: []syncer.Pushed{{TempID: "local-1", OrderID: "R9"}}}

	rec := ts.do(t, http.MethodPost, "/api/v1/sync", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SyncResponse](t, rec)
	assert.Equal(t, 3, resp.Products)
	assert.Equal(t, 1, resp.Pushed)
	assert.Equal(t, 2, resp.Status.Pending)

	rec = ts.do(t, http.MethodGet, "/api/v1/sync/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/sync/reset", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.sync.resets)
}

func TestSync_PendingQueue(t *testing.T) {
	ts := newTestServer(t)
	ts.sync.pending = []domain.PendingOrder{{TempID: "local-1"}, {TempID: "local-2"}}

	rec := ts.do(t, http.MethodGet, "/api/v1/sync/pending", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Assert(t, is.Len(decode[map[string][]domain.PendingOrder](t, rec)["orders"], 2))

	rec = ts.do(t, http.MethodDelete, "/api/v1/sync/pending/local-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.DeepEqual(t, []string{"local-1"}, ts.sync.dropped)

	rec = ts.do(t, http.MethodDelete, "/api/v1/sync/pending/local-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
