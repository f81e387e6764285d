package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type Wishlist interface {
	AddWishlistEntry(ctx context.Context, entry domain.WishlistEntry) error
	RemoveWishlistEntry(ctx context.Context, productID string) error
	GetWishlist(ctx context.Context) []domain.WishlistEntry
}

type WishlistHandler struct {
	wishlist Wishlist
	catalog  Catalog
	timeout  time.Duration
}

func NewWishlistHandler(wishlist Wishlist, catalog Catalog, timeout time.Duration) *WishlistHandler {
	return &WishlistHandler{
		wishlist: wishlist,
		catalog:  catalog,
		timeout:  timeout,
	}
}

type AddWishlistRequestDTO struct {
	ProductID string `json:"productId"`
}

func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, map[string][]domain.WishlistEntry{"entries": h.wishlist.GetWishlist(ctx)})
}

func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddWishlistRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	p, ok := h.catalog.GetProduct(ctx, req.ProductID)
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}

	entry := domain.WishlistEntry{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     p.BasePrice,
		Image:     p.FirstImage(),
	}
	if err := h.wishlist.AddWishlistEntry(ctx, entry); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.wishlist.RemoveWishlistEntry(ctx, chi.URLParam(r, "productID")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
