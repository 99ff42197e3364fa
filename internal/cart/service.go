package cart

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
	"github.com/trolleylabs/trolley-backend/pkg/pagination"
)

const (
	defaultRetryAttempts = 3
	retryBaseDelay       = 25 * time.Millisecond
	retryJitter          = 10 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CheckoutResult is what a successful checkout hands back to the caller.
// Items lists the cart lines the committed checkout event covered; the
// coordinator converts exactly those reservations into sales.
type CheckoutResult struct {
	OrderID     uuid.UUID
	CartID      uuid.UUID
	TotalAmount decimal.Decimal
	Items       []ReleasedItem
}

// ReleasedItem names a product line captured when a cart leaves the pending
// state; the coordinator releases the matching reservations.
type ReleasedItem struct {
	ProductID string
	Quantity  int
}

// ServiceParams wires the cart service dependencies.
type ServiceParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Store         *Store
	Projections   *projection.CartRepo
	Bus           *eventbus.Bus
	RetryAttempts int
}

// Service owns the cart write path. Every mutation runs as load, command,
// save, project inside one transaction, retried on version conflicts, with
// committed events published to the bus afterwards.
type Service struct {
	logg     *logger.Logger
	db       txRunner
	store    *Store
	carts    *projection.CartRepo
	bus      *eventbus.Bus
	attempts int
}

// NewService validates dependencies and builds the cart service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("cart event store required")
	}
	if params.Projections == nil {
		return nil, fmt.Errorf("cart projection repo required")
	}
	if params.Bus == nil {
		return nil, fmt.Errorf("event bus required")
	}
	attempts := params.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		store:    params.Store,
		carts:    params.Projections,
		bus:      params.Bus,
		attempts: attempts,
	}, nil
}

// CreateCart opens a new cart for a user and returns its id.
func (s *Service) CreateCart(ctx context.Context, userID string) (uuid.UUID, error) {
	cartID := uuid.New()
	var published []eventbus.Envelope

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)
		agg := NewAggregate(cartID)
		if err := agg.Create(userID); err != nil {
			return err
		}
		events := agg.Uncommitted()
		if err := store.Save(ctx, cartID, 0, events); err != nil {
			return err
		}
		if err := s.carts.WithTx(tx).Create(ctx, Snapshot(agg)); err != nil {
			return err
		}
		var err error
		published, err = envelopes(events)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.bus.Publish(ctx, published)
	return cartID, nil
}

// AddItem puts quantity units of a product into the cart. Name and price
// come from the caller; the coordinator resolves them from the catalog.
func (s *Service) AddItem(ctx context.Context, cartID uuid.UUID, productID, productName string, price decimal.Decimal, quantity int) error {
	return s.mutate(ctx, cartID, func(agg *Aggregate) error {
		return agg.AddItem(productID, productName, price, quantity)
	})
}

// RemoveItem drops a product from the cart and reports how many units were
// held so the matching reservation can be released.
func (s *Service) RemoveItem(ctx context.Context, cartID uuid.UUID, productID string) (int, error) {
	removed := 0
	err := s.mutate(ctx, cartID, func(agg *Aggregate) error {
		if item, ok := agg.Items[productID]; ok {
			removed = item.Quantity
		}
		return agg.RemoveItem(productID)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ChangeQuantity overrides the quantity of an existing cart line.
func (s *Service) ChangeQuantity(ctx context.Context, cartID uuid.UUID, productID string, quantity int) error {
	return s.mutate(ctx, cartID, func(agg *Aggregate) error {
		return agg.ChangeQuantity(productID, quantity)
	})
}

// Checkout finalizes the cart. When orderID is nil a fresh order id is
// generated; the same id lands in the emitted event and the result. The
// result's item list is captured from the aggregate state the checkout
// commits, never from the projection, so lines added by a writer racing the
// checkout are either in the order and the list, or in neither.
func (s *Service) Checkout(ctx context.Context, cartID uuid.UUID, orderID *uuid.UUID) (*CheckoutResult, error) {
	id := uuid.New()
	if orderID != nil {
		id = *orderID
	}

	var result *CheckoutResult
	err := s.mutate(ctx, cartID, func(agg *Aggregate) error {
		lines := make([]ReleasedItem, 0, len(agg.Items))
		for _, item := range agg.Items {
			lines = append(lines, ReleasedItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if err := agg.Checkout(id); err != nil {
			return err
		}
		result = &CheckoutResult{
			OrderID:     id,
			CartID:      cartID,
			TotalAmount: agg.TotalAmount(),
			Items:       lines,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Expire closes an idle cart and reports the lines that were held when it
// closed. Expiring a cart that already left the pending state is a silent
// no-op returning no items, so concurrent sweeps stay safe.
func (s *Service) Expire(ctx context.Context, cartID uuid.UUID, reason string) ([]ReleasedItem, error) {
	var released []ReleasedItem
	err := s.mutate(ctx, cartID, func(agg *Aggregate) error {
		released = nil
		if agg.Status != enums.CartStatusPending {
			return nil
		}
		for _, item := range agg.Items {
			released = append(released, ReleasedItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		return agg.Expire(reason)
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// GetCart reads the cart projection.
func (s *Service) GetCart(ctx context.Context, cartID uuid.UUID) (*models.CartProjection, error) {
	row, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("cart %s not found", cartID))
	}
	return row, nil
}

// ListUserCarts pages through a user's carts from the projection.
func (s *Service) ListUserCarts(ctx context.Context, userID string, status *enums.CartStatus, params pagination.Params) ([]models.CartProjection, string, error) {
	if status != nil && !status.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cart status %q", *status))
	}
	return s.carts.ListByUser(ctx, userID, status, params)
}

// mutate runs one command against a loaded cart inside a transaction that
// covers both the event append and the projection write. The pre-command
// version is captured explicitly and handed to Save as the concurrency
// check. Only version conflicts are retried; the backoff stays inside the
// request budget.
func (s *Service) mutate(ctx context.Context, cartID uuid.UUID, command func(*Aggregate) error) error {
	backoff := retry.WithJitter(retryJitter,
		retry.WithMaxRetries(uint64(s.attempts-1), retry.NewFibonacci(retryBaseDelay)))

	var published []eventbus.Envelope
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		published = nil
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			store := s.store.WithTx(tx)
			agg, err := store.Load(ctx, cartID)
			if err != nil {
				return err
			}
			if agg == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("cart %s not found", cartID))
			}

			base := agg.Version
			if err := command(agg); err != nil {
				return err
			}
			events := agg.Uncommitted()
			if len(events) == 0 {
				return nil
			}

			if err := store.Save(ctx, cartID, base, events); err != nil {
				return err
			}
			if err := s.carts.WithTx(tx).Update(ctx, Snapshot(agg)); err != nil {
				return err
			}
			published, err = envelopes(events)
			return err
		})
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			s.logg.Warn(s.logg.WithCartID(ctx, cartID.String()), "cart version conflict, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err,
				fmt.Sprintf("cart %s is being modified concurrently", cartID))
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
			return nil, fmt.Errorf("encoding cart event for publish: %w", err)
		}
		header := event.Header()
		out = append(out, eventbus.Envelope{
			EventID:          header.EventID.String(),
			AggregateType:    enums.AggregateCart,
			AggregateID:      header.AggregateID.String(),
			AggregateVersion: header.AggregateVersion,
			EventType:        header.EventType.String(),
			OccurredAt:       header.OccurredAt,
			Payload:          payload,
		})
	}
	return out, nil
}
