// Package api is the authority's HTTP surface consumed by storefront devices.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/authority/repository"
	"github.com/fjod/go_cart/storefront/internal/domain"
	storehttp "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/remote"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type OrderService interface {
	Products(ctx context.Context) ([]domain.Product, error)
	Product(ctx context.Context, id string) (domain.Product, error)
	PlaceOrder(ctx context.Context, headerKey string, payload domain.OrderPayload) (*repository.Order, bool, error)
	Order(ctx context.Context, id string) (*repository.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*repository.Order, error)
}

// HealthChecker reports whether the backing database answers.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc     OrderService
	health  HealthChecker
	timeout time.Duration
	log     *slog.Logger
}

func NewHandler(svc OrderService, health HealthChecker, timeout time.Duration, log *slog.Logger) *Handler {
	return &Handler{svc: svc, health: health, timeout: timeout, log: logger.OrNop(log)}
}

// Router mounts the authority routes. Error bodies use the same shape the
// storefront's remote client decodes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(storehttp.RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout + time.Second))

	r.Get("/health", h.Health)
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{id}", h.GetOrder)
	r.Put("/orders/{id}/status", h.UpdateStatus)

	return otelhttp.NewHandler(r, "authority",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if h.health != nil {
		if err := h.health.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.svc.Products(ctx)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.svc.Product(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// CreateOrder answers 201 for a new order and 200 when the idempotency key
// was already used; both carry the same receipt.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var payload domain.OrderPayload
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}

	order, created, err := h.svc.PlaceOrder(ctx, r.Header.Get(remote.IdempotencyKeyHeader), payload)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, order.Receipt())
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.svc.Order(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}

	order, err := h.svc.UpdateStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	var stock *repository.InsufficientStockError

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, remote.ErrorResponse{Error: validation.Message, Code: "VALIDATION_ERROR", Details: validation.Field})
	case errors.As(err, &stock):
		respondJSON(w, http.StatusConflict, remote.ErrorResponse{Error: stock.Error(), Code: "INSUFFICIENT_STOCK", Details: stock.SKU})
	case errors.Is(err, repository.ErrUnknownSKU):
		respondError(w, http.StatusUnprocessableEntity, "UNKNOWN_SKU", err.Error())
	case errors.Is(err, repository.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "ILLEGAL_TRANSITION", err.Error())
	case errors.Is(err, repository.ErrProductNotFound), errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, remote.ErrorResponse{Error: message, Code: code})
}
