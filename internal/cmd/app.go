package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/connectivity"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/remote"
	"github.com/fjod/go_cart/storefront/internal/shipping"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/fjod/go_cart/storefront/internal/syncer"
)

// app is the wired component graph shared by all commands.
type app struct {
	cfg         *config.Config
	log         *slog.Logger
	store       *store.Store
	remote      *remote.Client
	monitor     *connectivity.Prober
	engine      *syncer.Engine
	cart        *cart.Manager
	fees        *shipping.Table
	coordinator *checkout.Coordinator
}

func newApp(cfg *config.Config) *app {
	log := logger.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)

	st := store.New(store.WithMemoryFallback(backendOpener(cfg.Data), log), log)
	client := remote.New(cfg.Remote.BaseURL, cfg.Remote.Timeout, log)
	monitor := connectivity.NewProber(cfg.ProbeURL(), cfg.Connectivity.Interval, cfg.Connectivity.Timeout, nil, log)
	engine := syncer.NewEngine(client, st, monitor, syncer.Config{
		Interval:       cfg.Sync.Interval,
		TriesPerPass:   cfg.Sync.PushTriesPerPass,
		InitialBackoff: cfg.Sync.PushInitialBackoff,
		MaxBackoff:     cfg.Sync.PushMaxBackoff,
		MaxAttempts:    cfg.Sync.PushMaxAttempts,
	}, log)
	cartManager := cart.NewManager(st, st, log)
	fees := shipping.NewTable(cfg.Checkout.DefaultShippingFee, cfg.Checkout.ShippingFees)
	coordinator := checkout.NewCoordinator(checkout.Deps{
		Cart:     cartManager,
		Catalog:  st,
		Remote:   client,
		Queue:    st,
		Monitor:  monitor,
		Shipping: fees,
		Push:     engine,
		Currency: cfg.Checkout.Currency,
	}, log)

	return &app{
		cfg:         cfg,
		log:         log,
		store:       st,
		remote:      client,
		monitor:     monitor,
		engine:      engine,
		cart:        cartManager,
		fees:        fees,
		coordinator: coordinator,
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close local store", "error", err)
	}
}

// backendOpener picks the storage engine named by data.backend.
func backendOpener(cfg config.DataConfig) store.Opener {
	switch cfg.Backend {
	case "redis":
		return func(ctx context.Context) (kv.Backend, error) {
			r, err := kv.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
			if err != nil {
				return nil, err
			}
			return r, nil
		}
	case "mongo":
		return func(ctx context.Context) (kv.Backend, error) {
			db, err := kv.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
			if err != nil {
				return nil, err
			}
			return kv.NewMongo(db), nil
		}
	case "memory":
		return func(ctx context.Context) (kv.Backend, error) {
			return kv.NewMemory(), nil
		}
	default:
		return func(ctx context.Context) (kv.Backend, error) {
			s, err := kv.OpenSQLite(ctx, cfg.SQLitePath)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
}
