package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/variant"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Catalog interface {
	GetProducts(ctx context.Context) []domain.Product
	GetProduct(ctx context.Context, id string) (domain.Product, bool)
}

type ProductHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewProductHandler(catalog Catalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

type VariantResponse struct {
	Variant domain.Variant      `json:"variant"`
	Price   decimal.Decimal     `json:"price"`
	Status  variant.StockStatus `json:"status"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: h.catalog.GetProducts(ctx)})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.product(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Colors(w http.ResponseWriter, r *http.Request) {
	p, ok := h.product(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"colors": variant.AvailableColors(p)})
}

func (h *ProductHandler) Sizes(w http.ResponseWriter, r *http.Request) {
	p, ok := h.product(w, r)
	if !ok {
		return
	}
	color := r.URL.Query().Get("color")
	respondJSON(w, http.StatusOK, map[string][]string{"sizes": variant.AvailableSizes(p, color)})
}

func (h *ProductHandler) Variant(w http.ResponseWriter, r *http.Request) {
	p, ok := h.product(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v, found := variant.Resolve(p, q.Get("color"), q.Get("size"))
	if !found {
		respondError(w, http.StatusNotFound, "variant_not_found", "no variant for this color and size")
		return
	}
	respondJSON(w, http.StatusOK, VariantResponse{
		Variant: v,
		Price:   variant.EffectivePrice(p, v),
		Status:  variant.Status(v),
	})
}

func (h *ProductHandler) product(w http.ResponseWriter, r *http.Request) (domain.Product, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, ok := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
	}
	return p, ok
}
