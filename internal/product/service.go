package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/trolleylabs/trolley-backend/internal/eventstore"
	"github.com/trolleylabs/trolley-backend/internal/projection"
	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/enums"
	"github.com/trolleylabs/trolley-backend/pkg/eventbus"
	pkgerrors "github.com/trolleylabs/trolley-backend/pkg/errors"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
)

const (
	defaultRetryAttempts  = 3
	defaultReservationTTL = 15 * time.Minute
	retryBaseDelay        = 25 * time.Millisecond
	retryJitter           = 10 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the product service dependencies.
type ServiceParams struct {
	Logger         *logger.Logger
	DB             txRunner
	Store          *Store
	Projections    *projection.ProductRepo
	Bus            *eventbus.Bus
	RetryAttempts  int
	ReservationTTL time.Duration
	Now            func() time.Time
}

// Service owns the product write path, mirroring the cart service shape:
// one transaction per attempt covering event append and projection write,
// retried only on version conflicts.
type Service struct {
	logg     *logger.Logger
	db       txRunner
	store    *Store
	products *projection.ProductRepo
	bus      *eventbus.Bus
	attempts int
	ttl      time.Duration
	now      func() time.Time
}

// NewService validates dependencies and builds the product service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("product event store required")
	}
	if params.Projections == nil {
		return nil, fmt.Errorf("product projection repo required")
	}
	if params.Bus == nil {
		return nil, fmt.Errorf("event bus required")
	}
	attempts := params.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	ttl := params.ReservationTTL
	if ttl <= 0 {
		ttl = defaultReservationTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		store:    params.Store,
		products: params.Projections,
		bus:      params.Bus,
		attempts: attempts,
		ttl:      ttl,
		now:      now,
	}, nil
}

// CreateProduct registers a product. A duplicate id is a validation error.
func (s *Service) CreateProduct(ctx context.Context, productID, name string, price decimal.Decimal, initialStock int, description string) error {
	var published []eventbus.Envelope

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)
		existing, err := store.Events(ctx, productID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s already exists", productID))
		}

		agg := NewAggregate(productID)
		if err := agg.Create(name, price, initialStock, description); err != nil {
			return err
		}
		events := agg.Uncommitted()
		if err := store.Save(ctx, productID, 0, events); err != nil {
			return err
		}
		if err := s.products.WithTx(tx).Create(ctx, Snapshot(agg, s.now().UTC())); err != nil {
			return err
		}
		published, err = envelopes(events)
		return err
	})
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, published)
	return nil
}

// GetProduct reads the catalog projection.
func (s *Service) GetProduct(ctx context.Context, productID string) (*models.ProductProjection, error) {
	row, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
	}
	return row, nil
}

// ListProducts reads catalog rows, optionally only those currently in stock.
func (s *Service) ListProducts(ctx context.Context, availableOnly bool, limit, offset int) ([]models.ProductProjection, error) {
	return s.products.List(ctx, availableOnly, limit, offset)
}

// IncreaseStock restocks a product and returns the new total.
func (s *Service) IncreaseStock(ctx context.Context, productID string, quantity int) (int, error) {
	newTotal := 0
	err := s.mutate(ctx, productID, func(agg *Aggregate) error {
		if err := agg.IncreaseStock(quantity); err != nil {
			return err
		}
		newTotal = agg.TotalStock
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newTotal, nil
}

// ChangePrice sets a new price. Equal prices write nothing.
func (s *Service) ChangePrice(ctx context.Context, productID string, newPrice decimal.Decimal) error {
	return s.mutate(ctx, productID, func(agg *Aggregate) error {
		return agg.ChangePrice(newPrice)
	})
}

// UpdateDetails edits name or description.
func (s *Service) UpdateDetails(ctx context.Context, productID string, name, description *string) error {
	return s.mutate(ctx, productID, func(agg *Aggregate) error {
		return agg.UpdateDetails(name, description)
	})
}

// ReserveStock places a hold for a cart under the configured TTL.
func (s *Service) ReserveStock(ctx context.Context, productID string, cartID uuid.UUID, quantity int) error {
	return s.mutate(ctx, productID, func(agg *Aggregate) error {
		return agg.ReserveStock(cartID, quantity, s.ttl, s.now().UTC())
	})
}

// ReleaseReservation gives a cart's hold back; absent holds are a no-op.
func (s *Service) ReleaseReservation(ctx context.Context, productID string, cartID uuid.UUID, reason enums.ReleaseReason) error {
	return s.mutate(ctx, productID, func(agg *Aggregate) error {
		return agg.ReleaseReservation(cartID, reason)
	})
}

// CheckoutReservation converts a cart's hold into a sale.
func (s *Service) CheckoutReservation(ctx context.Context, productID string, cartID uuid.UUID, orderID uuid.UUID) error {
	return s.mutate(ctx, productID, func(agg *Aggregate) error {
		return agg.CheckoutReservation(cartID, orderID)
	})
}

func (s *Service) mutate(ctx context.Context, productID string, command func(*Aggregate) error) error {
	backoff := retry.WithJitter(retryJitter,
		retry.WithMaxRetries(uint64(s.attempts-1), retry.NewFibonacci(retryBaseDelay)))

	var published []eventbus.Envelope
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		published = nil
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			store := s.store.WithTx(tx)
			agg, err := store.Load(ctx, productID)
			if err != nil {
				return err
			}
			if agg == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
			}

			base := agg.Version
			if err := command(agg); err != nil {
				return err
			}
			events := agg.Uncommitted()
			if len(events) == 0 {
				return nil
			}

			if err := store.Save(ctx, productID, base, events); err != nil {
				return err
			}
			if err := s.products.WithTx(tx).Update(ctx, Snapshot(agg, s.now().UTC())); err != nil {
				return err
			}
			published, err = envelopes(events)
			return err
		})
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			s.logg.Warn(s.logg.WithProductID(ctx, productID), "product version conflict, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err,
				fmt.Sprintf("product %s is being modified concurrently", productID))
		}
		return err
	}

	s.bus.Publish(ctx, published)
	return nil
}

func envelopes(events []Event) ([]eventbus.Envelope, error) {
	out := make([]eventbus.Envelope, 0, len(events))
	for _, event := range events {
		payload, err := EncodeEvent(event)
		if err != nil {
			return nil, fmt.Errorf("encoding product event for publish: %w", err)
		}
		header := event.Header()
		out = append(out, eventbus.Envelope{
			EventID:          header.EventID.String(),
			AggregateType:    enums.AggregateProduct,
			AggregateID:      header.AggregateID,
			AggregateVersion: header.AggregateVersion,
			EventType:        header.EventType.String(),
			OccurredAt:       header.OccurredAt,
			Payload:          payload,
		})
	}
	return out, nil
}
