package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/authority/api"
	"github.com/fjod/go_cart/storefront/internal/authority/publisher"
	"github.com/fjod/go_cart/storefront/internal/authority/repository"
	"github.com/fjod/go_cart/storefront/internal/authority/service"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/shipping"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	requestTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to authority.yaml")
	flag.Parse()

	cfg, err := config.LoadAuthority(*configPath)
	if err != nil {
		logger.New(os.Stderr, "json", "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	log.Info("authority starting", "addr", cfg.Addr)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewRepository(ctx, cfg.DB.DSN())
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("database migrations completed")

	if cfg.SeedFile != "" {
		n, err := service.SeedIfEmpty(ctx, repo, cfg.SeedFile)
		if err != nil {
			log.Error("failed to seed catalog", "path", cfg.SeedFile, "error", err)
			os.Exit(1)
		}
		if n > 0 {
			log.Info("catalog seeded", "products", n)
		}
	}

	fees := shipping.NewTable(cfg.Checkout.DefaultShippingFee, cfg.Checkout.ShippingFees)
	svc := service.New(repo, fees, cfg.Checkout.Currency, log)
	handler := api.NewHandler(svc, repo, requestTimeout, log)

	var wg sync.WaitGroup
	if len(cfg.Kafka.Brokers) > 0 {
		writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		poller := publisher.NewOutboxPoller(repo, writer, cfg.Outbox.Interval, cfg.Outbox.BatchSize, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
		log.Info("outbox publisher started", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		log.Warn("no kafka brokers configured, outbox events stay unpublished")
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * requestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("authority listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	wg.Wait()
	log.Info("authority stopped")
}
