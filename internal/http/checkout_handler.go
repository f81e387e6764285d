package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/shipping"
)

type Checkouter interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Confirmation, error)
}

type CheckoutHandler struct {
	checkout Checkouter
	shipping *shipping.Table
	timeout  time.Duration
}

func NewCheckoutHandler(c Checkouter, table *shipping.Table, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: c,
		shipping: table,
		timeout:  timeout,
	}
}

type LocationResponse struct {
	Name string `json:"name"`
	Fee  string `json:"fee"`
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req checkout.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	conf, err := h.checkout.Checkout(ctx, req)
	if err != nil {
		handleError(w, err)
		return
	}

	status := http.StatusCreated
	if conf.Placeholder {
		status = http.StatusAccepted
	}
	respondJSON(w, status, conf)
}

func (h *CheckoutHandler) Locations(w http.ResponseWriter, r *http.Request) {
	names := h.shipping.Locations()
	out := make([]LocationResponse, 0, len(names))
	for _, name := range names {
		fee, _ := h.shipping.Fee(name)
		out = append(out, LocationResponse{Name: name, Fee: fee.String()})
	}
	respondJSON(w, http.StatusOK, map[string][]LocationResponse{"locations": out})
}
