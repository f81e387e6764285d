// Package syncer reconciles the local store with the authority: it pulls the
// catalog and pushes queued orders whenever the device is online.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/connectivity"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"golang.org/x/sync/singleflight"
)

type Remote interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SubmitOrder(ctx context.Context, payload domain.OrderPayload) (domain.OrderReceipt, error)
}

type LocalStore interface {
	GetProducts(ctx context.Context) []domain.Product
	ReplaceProducts(ctx context.Context, products []domain.Product) error
	GetPendingOrders(ctx context.Context) []domain.PendingOrder
	MarkPendingOrderSynced(ctx context.Context, tempID string) error
	RemovePendingOrder(ctx context.Context, tempID string) error
}

type Config struct {
	// Interval re-triggers both flows periodically. Zero disables the ticker.
	Interval time.Duration
	// TriesPerPass bounds the submissions of one order within a single pass.
	TriesPerPass   uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxAttempts is the number of failed passes after which an order is
	// stalled and the queue stops until ResetStalled.
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.TriesPerPass == 0 {
		c.TriesPerPass = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	return c
}

type Engine struct {
	remote  Remote
	store   LocalStore
	monitor connectivity.Monitor
	cfg     Config
	log     *slog.Logger

	pullGroup singleflight.Group
	pushReq   chan struct{}

	mu        sync.Mutex
	pushing   bool
	pushAgain bool
	failures  map[string]*failure
	lastPull  flowStatus
	lastPush  flowStatus
}

type failure struct {
	attempts  int
	lastError string
	stalled   bool
}

type flowStatus struct {
	at  time.Time
	err string
}

func NewEngine(remote Remote, store LocalStore, monitor connectivity.Monitor, cfg Config, log *slog.Logger) *Engine {
	return &Engine{
		remote:   remote,
		store:    store,
		monitor:  monitor,
		cfg:      cfg.withDefaults(),
		log:      logger.OrNop(log),
		pushReq:  make(chan struct{}, 1),
		failures: make(map[string]*failure),
	}
}

// Run drives both flows until ctx is done: once at startup, on every
// transition to online, on the ticker, and on RequestPush.
func (e *Engine) Run(ctx context.Context) {
	online := make(chan struct{}, 1)
	unsubscribe := e.monitor.Subscribe(func(ev connectivity.Event) {
		if ev.Online {
			signal(online)
		}
	})
	defer unsubscribe()

	var tick <-chan time.Time
	if e.cfg.Interval > 0 {
		ticker := time.NewTicker(e.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	e.syncAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-online:
			e.log.Info("connectivity restored, syncing")
			e.syncAll(ctx)
		case <-tick:
			e.syncAll(ctx)
		case <-e.pushReq:
			e.PushOrders(ctx)
		}
	}
}

// RequestPush asks the running engine for an order push without waiting for it.
func (e *Engine) RequestPush() {
	signal(e.pushReq)
}

func (e *Engine) syncAll(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.PullCatalog(ctx)
	}()
	go func() {
		defer wg.Done()
		e.PushOrders(ctx)
	}()
	wg.Wait()
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
