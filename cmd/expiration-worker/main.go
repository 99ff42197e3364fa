package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	cartsvc "github.com/trolleylabs/trolley-backend/internal/cart"
	checkoutsvc "github.com/trolleylabs/trolley-backend/internal/checkout"
	"github.com/trolleylabs/trolley-backend/internal/cron"
	productsvc "github.com/trolleylabs/trolley-backend/internal/product"
	"github.com/trolleylabs/trolley-backend/internal/projection"
	"github.com/trolleylabs/trolley-backend/pkg/config"
	"github.com/trolleylabs/trolley-backend/pkg/db"
	"github.com/trolleylabs/trolley-backend/pkg/eventbus"
	"github.com/trolleylabs/trolley-backend/pkg/instance"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
	"github.com/trolleylabs/trolley-backend/pkg/redis"
)

const lockKey = "trolley:lock:cart-expiration"

func main() {
	logg := logger.New(logger.Options{ServiceName: "expiration-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "expiration-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	bus := eventbus.New(logg, nil)

	cartStore, err := cartsvc.NewStore(dbClient.DB())
	if err != nil {
		logg.Error(ctx, "failed to build cart event store", err)
		os.Exit(1)
	}
	productStore, err := productsvc.NewStore(dbClient.DB())
	if err != nil {
		logg.Error(ctx, "failed to build product event store", err)
		os.Exit(1)
	}

	cartRepo := projection.NewCartRepo(dbClient.DB())

	carts, err := cartsvc.NewService(cartsvc.ServiceParams{
		Logger:        logg,
		DB:            dbClient,
		Store:         cartStore,
		Projections:   cartRepo,
		Bus:           bus,
		RetryAttempts: cfg.Cart.RetryAttempts,
	})
	if err != nil {
		logg.Error(ctx, "failed to build cart service", err)
		os.Exit(1)
	}

	products, err := productsvc.NewService(productsvc.ServiceParams{
		Logger:         logg,
		DB:             dbClient,
		Store:          productStore,
		Projections:    projection.NewProductRepo(dbClient.DB()),
		Bus:            bus,
		RetryAttempts:  cfg.Cart.RetryAttempts,
		ReservationTTL: cfg.Cart.ReservationTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to build product service", err)
		os.Exit(1)
	}

	coordinator, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Logger:   logg,
		Carts:    carts,
		Products: products,
	})
	if err != nil {
		logg.Error(ctx, "failed to build checkout coordinator", err)
		os.Exit(1)
	}

	expirationJob, err := cron.NewCartExpirationJob(cron.CartExpirationJobParams{
		Logger:      logg,
		Projections: cartRepo,
		Coordinator: coordinator,
		Timeout:     cfg.Expiration.Timeout,
		BatchSize:   cfg.Expiration.BatchSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to build cart expiration job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey, cfg.Expiration.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to build cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expirationJob),
		Lock:     lock,
		Interval: cfg.Expiration.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to build cron service", err)
		os.Exit(1)
	}

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"interval": cfg.Expiration.Interval.String(),
	})
	logg.Info(runCtx, "starting expiration worker")

	if err := service.Run(ctx); err != nil && err != context.Canceled {
		logg.Error(runCtx, "expiration worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "expiration worker stopped")
}
