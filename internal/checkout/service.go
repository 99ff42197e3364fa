package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/trolleylabs/trolley-backend/internal/cart"
	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/enums"
	pkgerrors "github.com/trolleylabs/trolley-backend/pkg/errors"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
)

type cartService interface {
	AddItem(ctx context.Context, cartID uuid.UUID, productID, productName string, price decimal.Decimal, quantity int) error
	RemoveItem(ctx context.Context, cartID uuid.UUID, productID string) (int, error)
	Checkout(ctx context.Context, cartID uuid.UUID, orderID *uuid.UUID) (*cart.CheckoutResult, error)
	Expire(ctx context.Context, cartID uuid.UUID, reason string) ([]cart.ReleasedItem, error)
}

type productService interface {
	GetProduct(ctx context.Context, productID string) (*models.ProductProjection, error)
	ReserveStock(ctx context.Context, productID string, cartID uuid.UUID, quantity int) error
	ReleaseReservation(ctx context.Context, productID string, cartID uuid.UUID, reason enums.ReleaseReason) error
	CheckoutReservation(ctx context.Context, productID string, cartID uuid.UUID, orderID uuid.UUID) error
}

// ServiceParams wires the coordinator dependencies.
type ServiceParams struct {
	Logger   *logger.Logger
	Carts    cartService
	Products productService
}

// Service coordinates cart and product aggregates across their separate
// streams. There is no transaction spanning both; ordering plus compensation
// keeps them consistent, and what compensation cannot fix the reservation
// TTL sweep eventually does.
type Service struct {
	logg     *logger.Logger
	carts    cartService
	products productService
}

// NewService validates dependencies and builds the coordinator.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product service required")
	}
	return &Service{
		logg:     params.Logger,
		carts:    params.Carts,
		products: params.Products,
	}, nil
}

// AddItemToCart reserves stock first, then writes the cart line with the
// catalog's current name and price. A cart failure after a successful
// reserve is compensated by releasing the hold; the compensation error is
// logged but never masks the primary one.
func (s *Service) AddItemToCart(ctx context.Context, cartID uuid.UUID, productID string, quantity int) error {
	ctx = s.logg.WithCartID(ctx, cartID.String())
	ctx = s.logg.WithProductID(ctx, productID)

	row, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	if err := s.products.ReserveStock(ctx, productID, cartID, quantity); err != nil {
		return err
	}

	if err := s.carts.AddItem(ctx, cartID, productID, row.Name, row.Price, quantity); err != nil {
		if releaseErr := s.products.ReleaseReservation(ctx, productID, cartID, enums.ReleaseReasonCartFailed); releaseErr != nil {
			s.logg.Error(ctx, "failed to release reservation after cart write failure", releaseErr)
		}
		return err
	}
	return nil
}

// RemoveItemFromCart drops the cart line, then releases the matching hold.
// A release failure after the cart write succeeded is logged and left to
// the reservation TTL; the item is already gone from the cart.
func (s *Service) RemoveItemFromCart(ctx context.Context, cartID uuid.UUID, productID string) error {
	ctx = s.logg.WithCartID(ctx, cartID.String())
	ctx = s.logg.WithProductID(ctx, productID)

	if _, err := s.carts.RemoveItem(ctx, cartID, productID); err != nil {
		return err
	}

	if err := s.products.ReleaseReservation(ctx, productID, cartID, enums.ReleaseReasonItemRemoved); err != nil {
		s.logg.Error(ctx, "failed to release reservation after item removal", err)
	}
	return nil
}

// CheckoutCart finalizes the cart, then converts each held reservation into
// a sale. The item list comes from the checkout result, which the cart
// service captured from the committed aggregate state, so every line in the
// order gets its reservation converted even when a writer raced the
// checkout. Product-side failures after the cart committed are logged and do
// not undo the order; the TTL sweep bounds the divergence.
func (s *Service) CheckoutCart(ctx context.Context, cartID uuid.UUID) (*cart.CheckoutResult, error) {
	ctx = s.logg.WithCartID(ctx, cartID.String())

	result, err := s.carts.Checkout(ctx, cartID, nil)
	if err != nil {
		return nil, err
	}

	for _, item := range result.Items {
		if err := s.products.CheckoutReservation(ctx, item.ProductID, cartID, result.OrderID); err != nil {
			s.logg.Error(s.logg.WithProductID(ctx, item.ProductID),
				"failed to checkout reservation, leaving to reconciliation", err)
		}
	}
	return result, nil
}

// ExpireCart closes an idle cart and releases every hold it had. Expiring a
// cart that already left the pending state does nothing, so concurrent
// sweeps and races with checkout stay safe. Release failures are combined
// and reported without aborting the remaining items.
func (s *Service) ExpireCart(ctx context.Context, cartID uuid.UUID, reason string) error {
	ctx = s.logg.WithCartID(ctx, cartID.String())

	released, err := s.carts.Expire(ctx, cartID, reason)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return err
		}
		return fmt.Errorf("expiring cart %s: %w", cartID, err)
	}

	var errs []error
	for _, item := range released {
		if err := s.products.ReleaseReservation(ctx, item.ProductID, cartID, enums.ReleaseReasonCartExpired); err != nil {
			s.logg.Error(s.logg.WithProductID(ctx, item.ProductID),
				"failed to release reservation for expired cart", err)
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}
