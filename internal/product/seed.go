package product

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/trolleylabs/trolley-backend/internal/projection"
	"github.com/trolleylabs/trolley-backend/pkg/config"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
)

type seedProduct struct {
	id          string
	name        string
	price       string
	stock       int
	description string
}

var seedProducts = []seedProduct{
	{"P001", "Laptop Dell XPS 13", "4999.99", 10, "13-inch ultrabook with Intel i7"},
	{"P002", "Klawiatura mechaniczna Logitech", "399.99", 25, "Mechanical keyboard with RGB lighting"},
	{"P003", "Mysz bezprzewodowa Logitech MX Master", "349.99", 50, "Wireless ergonomic mouse"},
	{"P004", "Monitor 27 cali 4K Dell", "1999.99", 15, "27-inch 4K IPS monitor"},
	{"P005", "Sluchawki Sony WH-1000XM5", "1499.99", 30, "Noise-cancelling wireless headphones"},
}

// MaybeSeedDev loads sample products in dev environments. Skips entirely
// when the flag is off, the environment is not dev, or any product already
// exists, so restarts never duplicate streams.
func MaybeSeedDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, svc *Service, products *projection.ProductRepo) error {
	if cfg == nil || !cfg.FeatureFlags.SeedProducts || !cfg.App.IsDev() {
		return nil
	}

	existing, err := products.List(ctx, false, 1, 0)
	if err != nil {
		return fmt.Errorf("checking existing products before seed: %w", err)
	}
	if len(existing) > 0 {
		logg.Info(ctx, "products already present, skipping seed")
		return nil
	}

	for _, seed := range seedProducts {
		price, err := decimal.NewFromString(seed.price)
		if err != nil {
			return fmt.Errorf("parsing seed price for %s: %w", seed.id, err)
		}
		if err := svc.CreateProduct(ctx, seed.id, seed.name, price, seed.stock, seed.description); err != nil {
			return fmt.Errorf("seeding product %s: %w", seed.id, err)
		}
	}
	logg.Info(ctx, fmt.Sprintf("seeded %d sample products", len(seedProducts)))
	return nil
}
