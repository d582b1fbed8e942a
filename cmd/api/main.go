package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"printstore/internal/client/coupon"
	"printstore/internal/client/orders"
	"printstore/internal/config"
	"printstore/internal/db"
	"printstore/internal/httpserver"
	"printstore/internal/logging"
	"printstore/internal/metrics"
	cartrepo "printstore/internal/repository/cart"
	productrepo "printstore/internal/repository/product"
	anonymoussvc "printstore/internal/service/anonymous"
	cartsvc "printstore/internal/service/cart"
	checkoutsvc "printstore/internal/service/checkout"
	productsvc "printstore/internal/service/product"
	"printstore/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{ServiceName: "printstore-api", Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := run(cfg, logger); err != nil {
		logger.Error(context.Background(), "api exited", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer dbpool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storefront := metrics.NewStorefront(reg)

	backend, closeBackend, err := cartBackend(ctx, cfg, dbpool, logger)
	if err != nil {
		return err
	}
	defer closeBackend()
	slots := storage.NewSlots(backend)

	productRepo := productrepo.NewPostgres(dbpool, logger)
	productService := productsvc.New(productRepo)

	coupons, err := coupon.New(cfg.Coupon.BaseURL, cfg.Coupon.Timeout)
	if err != nil {
		return fmt.Errorf("coupon client: %w", err)
	}
	orderClient, err := orders.New(cfg.Checkout.OrdersURL)
	if err != nil {
		return fmt.Errorf("orders client: %w", err)
	}

	registry := cartsvc.NewRegistry(
		cartsvc.SlotProviderFunc(func(sessionID string) cartsvc.Persister { return slots.Slot(sessionID) }),
		cartsvc.Deps{
			Coupons: coupons,
			Prices:  productService,
			Logger:  logger,
			Metrics: storefront,
		},
	)
	cartService := cartsvc.New(registry, productService, productService)
	sessions := anonymoussvc.New(cfg.Cart.TTL, anonymoussvc.WithStore(backend))
	go evictIdle(ctx, sessions, registry, cfg.Cart.IdleEvict, logger)
	checkoutService := checkoutsvc.New(cartService, productService, orderClient, checkoutsvc.Options{
		Timeout:        cfg.Checkout.Timeout,
		MaxDesignBytes: cfg.Checkout.MaxDesignBytes,
		Logger:         logger,
		Metrics:        storefront,
	})

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		DB:             dbpool,
		Sessions:       sessions,
		Products:       productService,
		Carts:          cartService,
		Checkout:       checkoutService,
		Metrics:        reg,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: 4 * cfg.Checkout.MaxDesignBytes,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(logger.WithField(ctx, "addr", cfg.HTTPAddr), "starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "received signal, shutting down")
	case err := <-serverErr:
		logger.Error(context.Background(), "server error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info(shutdownCtx, "server stopped")
	return nil
}

// cartBackend opens the configured cart slot store. The returned func
// releases it.
func cartBackend(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *logging.Logger) (storage.Backend, func(), error) {
	ctx = logger.WithField(ctx, "cart_storage", cfg.Cart.Storage)
	switch cfg.Cart.Storage {
	case config.StorageMemory:
		logger.Warn(ctx, "carts and sessions are kept in memory and lost on restart", nil)
		return storage.NewMemory(), func() {}, nil
	case config.StorageFile:
		backend, err := storage.NewFile(cfg.Cart.FileDir)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() {}, nil
	case config.StorageRedis:
		client, err := storage.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewRedis(client, cfg.Cart.TTL), func() { client.Close() }, nil
	case config.StoragePostgres:
		repo := cartrepo.NewPostgres(pool)
		janitorCtx, cancel := context.WithCancel(ctx)
		go purgeStaleCarts(janitorCtx, repo, cfg.Cart.TTL, logger)
		return repo, cancel, nil
	default:
		return nil, nil, fmt.Errorf("unknown cart storage %q", cfg.Cart.Storage)
	}
}

// purgeStaleCarts drops saved carts untouched for longer than ttl.
func purgeStaleCarts(ctx context.Context, repo cartrepo.Repository, ttl time.Duration, logger *logging.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		removed, err := repo.PurgeOlderThan(ctx, time.Now().Add(-ttl))
		if err != nil && ctx.Err() == nil {
			logger.Warn(ctx, "purge stale carts failed", err)
		} else if removed > 0 {
			logger.Info(logger.WithField(ctx, "removed", removed), "purged stale carts")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// evictIdle releases in-memory session tokens and cart stores that have not
// been used for idle. Anything evicted reloads from the backend on next use.
func evictIdle(ctx context.Context, sessions *anonymoussvc.Service, registry *cartsvc.Registry, idle time.Duration, logger *logging.Logger) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		released := sessions.Sweep(idle)
		registry.Forget(released...)
		if dropped := registry.SweepIdle(idle); dropped > 0 || len(released) > 0 {
			logger.Debug(logger.WithField(logger.WithField(ctx, "sessions", len(released)), "carts", dropped), "evicted idle session state")
		}
	}
}
