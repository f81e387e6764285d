// Package http is the local API that UI collaborators use to browse the
// cached catalog, edit the cart and check out.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Products *ProductHandler
	Cart     *CartHandler
	Wishlist *WishlistHandler
	Checkout *CheckoutHandler
	Sync     *SyncHandler
}

func NewRouter(h Handlers, requestTimeout time.Duration, log *slog.Logger) http.Handler {
	log = logger.OrNop(log)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/{id}", h.Products.Get)
			r.Get("/{id}/colors", h.Products.Colors)
			r.Get("/{id}/sizes", h.Products.Sizes)
			r.Get("/{id}/variant", h.Products.Variant)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.Get)
			r.Delete("/", h.Cart.Clear)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{id}", h.Cart.UpdateQuantity)
			r.Post("/items/{id}/decrement", h.Cart.Decrement)
			r.Delete("/items/{id}", h.Cart.RemoveItem)
		})
		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", h.Wishlist.List)
			r.Post("/", h.Wishlist.Add)
			r.Delete("/{productID}", h.Wishlist.Remove)
		})
		r.Post("/checkout", h.Checkout.Checkout)
		r.Get("/checkout/locations", h.Checkout.Locations)
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", h.Sync.Status)
			r.Post("/", h.Sync.Trigger)
			r.Post("/reset", h.Sync.Reset)
			r.Get("/pending", h.Sync.Pending)
			r.Delete("/pending/{tempID}", h.Sync.DropPending)
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	)
}
