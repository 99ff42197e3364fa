package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
)

const (
	defaultExpirationTimeout = 15 * time.Minute
	defaultExpirationBatch   = 100
)

type expiredCartReader interface {
	ExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CartProjection, error)
}

type cartExpirer interface {
	ExpireCart(ctx context.Context, cartID uuid.UUID, reason string) error
}

// CartExpirationJobParams configure the idle-cart sweep.
type CartExpirationJobParams struct {
	Logger      *logger.Logger
	Projections expiredCartReader
	Coordinator cartExpirer
	Timeout     time.Duration
	BatchSize   int
}

// NewCartExpirationJob builds the job that expires idle pending carts and
// releases their stock reservations.
func NewCartExpirationJob(params CartExpirationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Projections == nil {
		return nil, fmt.Errorf("cart projections reader required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("checkout coordinator required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultExpirationTimeout
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpirationBatch
	}
	return &cartExpirationJob{
		logg:        params.Logger,
		projections: params.Projections,
		coordinator: params.Coordinator,
		timeout:     timeout,
		batch:       batch,
		now:         time.Now,
	}, nil
}

type cartExpirationJob struct {
	logg        *logger.Logger
	projections expiredCartReader
	coordinator cartExpirer
	timeout     time.Duration
	batch       int
	now         func() time.Time
}

func (j *cartExpirationJob) Name() string { return "cart-expiration" }

// Run sweeps one batch of idle carts. Each cart is expired independently;
// a failing cart is recorded and the sweep moves on.
func (j *cartExpirationJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.timeout)
	rows, err := j.projections.ExpiredBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query expired carts: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	j.logg.Info(ctx, fmt.Sprintf("expiring %d idle carts", len(rows)))
	var errs []error
	for _, row := range rows {
		cartCtx := j.logg.WithCartID(ctx, row.CartID.String())
		if err := j.coordinator.ExpireCart(cartCtx, row.CartID, "timeout"); err != nil {
			j.logg.Error(cartCtx, "failed to expire cart", err)
			errs = append(errs, fmt.Errorf("cart %s: %w", row.CartID, err))
		}
	}
	return multierr.Combine(errs...)
}
