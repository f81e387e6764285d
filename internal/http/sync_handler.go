package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/syncer"
	"github.com/go-chi/chi/v5"
)

type Syncer interface {
	Status(ctx context.Context) syncer.Status
	PullCatalog(ctx context.Context) syncer.PullResult
	PushOrders(ctx context.Context) syncer.PushResult
	ResetStalled()
	Pending(ctx context.Context) []domain.PendingOrder
	DropPending(ctx context.Context, tempID string) error
}

type SyncHandler struct {
	engine  Syncer
	timeout time.Duration
}

func NewSyncHandler(engine Syncer, timeout time.Duration) *SyncHandler {
	return &SyncHandler{
		engine:  engine,
		timeout: timeout,
	}
}

type SyncResponse struct {
	Products  int           `json:"products"`
	Refreshed bool          `json:"refreshed"`
	Pushed    int           `json:"pushed"`
	PushError string        `json:"pushError,omitempty"`
	Status    syncer.Status `json:"status"`
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, h.engine.Status(ctx))
}

// Trigger runs both flows now and reports what they did.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	pull := h.engine.PullCatalog(ctx)
	push := h.engine.PushOrders(ctx)

	resp := SyncResponse{
		Products:  pull.Products,
		Refreshed: pull.Refreshed,
		Pushed:    len(push.Pushed),
		Status:    h.engine.Status(ctx),
	}
	if push.Err != nil {
		resp.PushError = push.Err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *SyncHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.engine.ResetStalled()
	respondJSON(w, http.StatusOK, h.engine.Status(ctx))
}

func (h *SyncHandler) Pending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, map[string][]domain.PendingOrder{"orders": h.engine.Pending(ctx)})
}

// DropPending discards a queued order, typically one the authority rejected.
func (h *SyncHandler) DropPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.engine.DropPending(ctx, chi.URLParam(r, "tempID")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
