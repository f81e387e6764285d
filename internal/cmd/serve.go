package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	storehttp "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API with background sync",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	// carry trace context from UI requests through to the authority
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.store.Open(ctx); err != nil {
		// reads degrade to empty results; the next operation retries the open
		a.log.Warn("local store not ready", "error", err)
	}
	a.cart.Hydrate(ctx)

	timeout := a.cfg.HTTP.RequestTimeout
	router := storehttp.NewRouter(storehttp.Handlers{
		Products: storehttp.NewProductHandler(a.store, timeout),
		Cart:     storehttp.NewCartHandler(a.cart, a.store, timeout),
		Wishlist: storehttp.NewWishlistHandler(a.store, a.store, timeout),
		Checkout: storehttp.NewCheckoutHandler(a.coordinator, a.fees, timeout),
		Sync:     storehttp.NewSyncHandler(a.engine, timeout),
	}, timeout, a.log)

	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.engine.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("storefront listening", "addr", a.cfg.HTTP.Addr, "backend", a.cfg.Data.Backend, "authority", a.cfg.Remote.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
	}

	a.log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server forced to shutdown", "error", err)
	}
	wg.Wait()
	a.log.Info("storefront stopped")
	return nil
}
