package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrOffline = errors.New("offline")
	ErrStalled = errors.New("pending order stalled")
)

// Pushed is one queued order the authority accepted.
type Pushed struct {
	TempID  string
	OrderID string
}

type PushResult struct {
	Pushed []Pushed
	// Failed is the temp id that stopped the pass, if any.
	Failed string
	Err    error
	// Coalesced means another pass was running; it will run once more
	// after it finishes instead of this call.
	Coalesced bool
}

// PushOrders submits queued orders oldest first. The first order that cannot
// be delivered ends the pass; nothing behind it is attempted. A call made
// while a pass is running returns at once and schedules exactly one
// follow-up pass.
func (e *Engine) PushOrders(ctx context.Context) PushResult {
	e.mu.Lock()
	if e.pushing {
		e.pushAgain = true
		e.mu.Unlock()
		return PushResult{Coalesced: true}
	}
	e.pushing = true
	e.mu.Unlock()

	var total PushResult
	for {
		res := e.pushPass(ctx)
		total.Pushed = append(total.Pushed, res.Pushed...)
		total.Failed, total.Err = res.Failed, res.Err

		e.mu.Lock()
		again := e.pushAgain && ctx.Err() == nil
		e.pushAgain = false
		if !again {
			e.pushing = false
			e.lastPush = flowStatus{at: time.Now()}
			if total.Err != nil {
				e.lastPush.err = total.Err.Error()
			}
			e.mu.Unlock()
			return total
		}
		e.mu.Unlock()
	}
}

func (e *Engine) pushPass(ctx context.Context) PushResult {
	var res PushResult
	if !e.monitor.IsOnline() {
		res.Err = ErrOffline
		return res
	}

	for _, order := range e.store.GetPendingOrders(ctx) {
		if order.Synced {
			// accepted earlier but not deleted; never resubmit
			if err := e.store.RemovePendingOrder(ctx, order.TempID); err != nil {
				e.log.Warn("failed to remove synced pending order", "temp_id", order.TempID, "error", err)
			}
			continue
		}

		if e.isStalled(order.TempID) {
			res.Failed = order.TempID
			res.Err = fmt.Errorf("%s: %w", order.TempID, ErrStalled)
			return res
		}

		receipt, err := e.submit(ctx, order)
		if err != nil {
			if ctx.Err() == nil {
				e.recordFailure(order.TempID, err)
			}
			res.Failed = order.TempID
			res.Err = err
			return res
		}

		e.clearFailure(order.TempID)
		e.log.Info("pending order accepted", "temp_id", order.TempID, "order_id", receipt.OrderID)
		res.Pushed = append(res.Pushed, Pushed{TempID: order.TempID, OrderID: receipt.OrderID})

		if err := e.store.MarkPendingOrderSynced(ctx, order.TempID); err != nil {
			e.log.Warn("failed to mark pending order synced", "temp_id", order.TempID, "error", err)
		}
		if err := e.store.RemovePendingOrder(ctx, order.TempID); err != nil {
			e.log.Warn("failed to remove pending order", "temp_id", order.TempID, "error", err)
		}
	}
	return res
}

func (e *Engine) submit(ctx context.Context, order domain.PendingOrder) (domain.OrderReceipt, error) {
	bo := &backoff.ExponentialBackOff{
		InitialInterval:     e.cfg.InitialBackoff,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         e.cfg.MaxBackoff,
	}
	return backoff.Retry(ctx, func() (domain.OrderReceipt, error) {
		receipt, err := e.remote.SubmitOrder(ctx, order.Payload)
		if err != nil && !isTransient(err) {
			return receipt, backoff.Permanent(err)
		}
		return receipt, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(e.cfg.TriesPerPass),
		backoff.WithNotify(func(err error, next time.Duration) {
			e.log.Debug("order submission failed, retrying", "temp_id", order.TempID, "error", err, "next", next)
		}),
	)
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrNetwork) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) isStalled(tempID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.failures[tempID]
	return ok && f.stalled
}

// recordFailure counts a failed pass. Orders the authority rejects outright
// are stalled at once since resending the same payload cannot succeed.
func (e *Engine) recordFailure(tempID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.failures[tempID]
	if !ok {
		f = &failure{}
		e.failures[tempID] = f
	}
	f.attempts++
	f.lastError = err.Error()
	if f.attempts >= e.cfg.MaxAttempts || !isTransient(err) {
		if !f.stalled {
			e.log.Error("pending order stalled", "temp_id", tempID, "attempts", f.attempts, "error", err)
		}
		f.stalled = true
		return
	}
	e.log.Warn("pending order push failed", "temp_id", tempID, "attempts", f.attempts, "error", err)
}

func (e *Engine) clearFailure(tempID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.failures, tempID)
}

// ResetStalled forgets all failure counts so the queue is retried from the
// head, and requests a push.
func (e *Engine) ResetStalled() {
	e.mu.Lock()
	e.failures = make(map[string]*failure)
	e.mu.Unlock()
	e.RequestPush()
}

// Pending returns the queue in push order.
func (e *Engine) Pending(ctx context.Context) []domain.PendingOrder {
	return e.store.GetPendingOrders(ctx)
}

// DropPending discards a queued order for good, typically one the authority
// rejected. It is never submitted again and the queue behind it is retried.
func (e *Engine) DropPending(ctx context.Context, tempID string) error {
	found := false
	for _, o := range e.store.GetPendingOrders(ctx) {
		if o.TempID == tempID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("pending order %s: %w", tempID, domain.ErrNotFound)
	}
	if err := e.store.RemovePendingOrder(ctx, tempID); err != nil {
		return err
	}

	e.clearFailure(tempID)
	e.log.Warn("pending order dropped", "temp_id", tempID)
	e.RequestPush()
	return nil
}
