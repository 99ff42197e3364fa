package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trolleylabs/trolley-backend/api"
	"github.com/trolleylabs/trolley-backend/api/routes"
	"github.com/trolleylabs/trolley-backend/internal/analytics"
	cartsvc "github.com/trolleylabs/trolley-backend/internal/cart"
	checkoutsvc "github.com/trolleylabs/trolley-backend/internal/checkout"
	productsvc "github.com/trolleylabs/trolley-backend/internal/product"
	"github.com/trolleylabs/trolley-backend/internal/projection"
	"github.com/trolleylabs/trolley-backend/pkg/bigquery"
	"github.com/trolleylabs/trolley-backend/pkg/config"
	"github.com/trolleylabs/trolley-backend/pkg/db"
	"github.com/trolleylabs/trolley-backend/pkg/eventbus"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
	"github.com/trolleylabs/trolley-backend/pkg/metrics"
	"github.com/trolleylabs/trolley-backend/pkg/migrate"
	"github.com/trolleylabs/trolley-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	registry := prometheus.NewRegistry()
	bus := eventbus.New(logg, metrics.NewBusMetrics(registry))

	if cfg.Analytics.Enabled {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()

		writer, err := analytics.NewWriter(bqClient, analytics.WriterConfig{
			EventsTable: cfg.BigQuery.EventsTable,
			BatchSize:   cfg.Analytics.BatchSize,
		})
		if err != nil {
			logg.Error(ctx, "failed to build analytics writer", err)
			os.Exit(1)
		}
		bus.Subscribe(analytics.SubscriberName, analytics.NewSubscriber(logg, writer).Handle)
	}

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

	productRepo := projection.NewProductRepo(dbClient.DB())

	carts, err := cartsvc.NewService(cartsvc.ServiceParams{
		Logger:        logg,
		DB:            dbClient,
		Store:         cartStore,
		Projections:   projection.NewCartRepo(dbClient.DB()),
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
		Projections:    productRepo,
		Bus:            bus,
		RetryAttempts:  cfg.Cart.RetryAttempts,
		ReservationTTL: cfg.Cart.ReservationTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to build product service", err)
		os.Exit(1)
	}

	if err := productsvc.MaybeSeedDev(ctx, cfg, logg, products, productRepo); err != nil {
		logg.Error(ctx, "failed to seed products", err)
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

	handler := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Carts:       carts,
		Products:    products,
		Coordinator: coordinator,
		Registry:    registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := api.NewServer(addr, handler, logg)
	if err := server.Run(ctx); err != nil {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "api server stopped")
}
