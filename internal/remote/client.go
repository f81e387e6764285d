// Package remote talks to the catalog and order authority over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// IdempotencyKeyHeader carries the order's idempotency key on POST /orders.
const IdempotencyKeyHeader = "Idempotency-Key"

var ErrRejected = errors.New("request rejected by authority")

// RejectedError is a 4xx answer other than 404. Resending the same request
// will not help.
type RejectedError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("authority rejected request (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("authority rejected request (%d): %s", e.StatusCode, e.Message)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// ErrorResponse is the authority's error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[[]byte]
	log     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithBreakerSettings overrides the circuit breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(cl *Client) { cl.cb = cl.newBreaker(st) }
}

// New creates a client. timeout bounds every single call.
func New(baseURL string, timeout time.Duration, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: timeout,
		log:     logger.OrNop(log),
	}
	c.cb = c.newBreaker(gobreaker.Settings{
		Name:        "authority",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker[[]byte] {
	// only transport-level failures trip the breaker
	st.IsSuccessful = func(err error) bool {
		return err == nil || !errors.Is(err, domain.ErrNetwork)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		c.log.Info("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	}
	return gobreaker.NewCircuitBreaker[[]byte](st)
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/products", nil, nil)
	if err != nil {
		return nil, err
	}
	var products []domain.Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("failed to decode product list: %w", err)
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return domain.Product{}, err
	}
	var p domain.Product
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.Product{}, fmt.Errorf("failed to decode product %s: %w", id, err)
	}
	return p, nil
}

// SubmitOrder posts an order. The payload's idempotency key is also sent as a
// header so that retries of the same order are deduplicated by the authority.
func (c *Client) SubmitOrder(ctx context.Context, payload domain.OrderPayload) (domain.OrderReceipt, error) {
	headers := map[string]string{}
	if payload.IdempotencyKey != "" {
		headers[IdempotencyKeyHeader] = payload.IdempotencyKey
	}
	body, err := c.do(ctx, http.MethodPost, "/orders", payload, headers)
	if err != nil {
		return domain.OrderReceipt{}, err
	}
	var receipt domain.OrderReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("failed to decode order receipt: %w", err)
	}
	if receipt.OrderID == "" {
		return domain.OrderReceipt{}, fmt.Errorf("order receipt without order id: %w", domain.ErrNetwork)
	}
	return receipt, nil
}

type statusUpdate struct {
	Status domain.OrderStatus `json:"status"`
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	_, err := c.do(ctx, http.MethodPut, "/orders/"+url.PathEscape(orderID)+"/status", statusUpdate{Status: status}, nil)
	return err
}

// Ping checks the authority's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in any, headers map[string]string) ([]byte, error) {
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, in, headers)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrNetwork, err)
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in any, headers map[string]string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w: %w", method, path, domain.ErrNetwork, err)
	}

	return body, classify(method, path, resp.StatusCode, body)
}

func classify(method, path string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrNotFound)
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return fmt.Errorf("%s %s: status %d: %w", method, path, status, domain.ErrNetwork)
	}

	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error == "" {
		er.Error = strings.TrimSpace(string(body))
	}
	return &RejectedError{StatusCode: status, Code: er.Code, Message: er.Error}
}

// IsNetwork reports whether err means the authority could not be reached.
func IsNetwork(err error) bool {
	return errors.Is(err, domain.ErrNetwork) || errors.Is(err, context.DeadlineExceeded)
}
