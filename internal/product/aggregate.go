package product

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trolleylabs/trolley-backend/pkg/enums"
	pkgerrors "github.com/trolleylabs/trolley-backend/pkg/errors"
)

// Reservation is a hold on stock for one cart. One reservation per cart; a
// newer reserve replaces the hold.
type Reservation struct {
	CartID        uuid.UUID
	Quantity      int
	ReservedUntil time.Time
}

// Expired reports whether the hold has lapsed at the given instant.
func (r Reservation) Expired(now time.Time) bool {
	return now.After(r.ReservedUntil)
}

// Aggregate is the product write model. TotalStock tracks inventory on hand;
// reservations are soft holds that only become real stock movement at
// checkout. Derived stock getters are pure, expired holds are excluded by
// reading, never by mutating.
type Aggregate struct {
	ProductID    string
	Name         string
	Price        decimal.Decimal
	Description  string
	TotalStock   int
	Reservations map[uuid.UUID]Reservation
	Version      int
	CreatedAt    time.Time

	uncommitted []Event
}

// NewAggregate returns an empty product aggregate ready for replay or Create.
func NewAggregate(productID string) *Aggregate {
	return &Aggregate{
		ProductID:    productID,
		Price:        decimal.Zero,
		Reservations: map[uuid.UUID]Reservation{},
	}
}

// Create registers the product in the catalog. Valid only once per stream.
func (a *Aggregate) Create(name string, price decimal.Decimal, initialStock int, description string) error {
	if a.Name != "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product already created")
	}
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if initialStock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	return a.record(Created{
		EventHeader:  newHeader(a.ProductID, a.Version+1, enums.ProductEventCreated),
		Name:         name,
		Price:        price,
		InitialStock: initialStock,
		Description:  description,
	})
}

// ReserveStock places a hold for a cart. Expired holds are released first so
// their quantity counts as available again; the release events are part of
// the same uncommitted batch. Re-reserving for a cart replaces its hold.
func (a *Aggregate) ReserveStock(cartID uuid.UUID, quantity int, ttl time.Duration, now time.Time) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if err := a.releaseExpired(now); err != nil {
		return err
	}

	available := a.AvailableStock(now)
	if quantity > available {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(
			"insufficient stock for product %s: requested %d, available %d (total %d, reserved %d)",
			a.ProductID, quantity, available, a.TotalStock, a.ReservedStock(now)))
	}

	return a.record(StockReserved{
		EventHeader:   newHeader(a.ProductID, a.Version+1, enums.ProductEventStockReserved),
		CartID:        cartID,
		Quantity:      quantity,
		ReservedUntil: now.Add(ttl),
	})
}

// ReleaseReservation gives a cart's hold back. Releasing an absent hold is a
// no-op so callers can retry and compensate freely.
func (a *Aggregate) ReleaseReservation(cartID uuid.UUID, reason enums.ReleaseReason) error {
	reservation, ok := a.Reservations[cartID]
	if !ok {
		return nil
	}
	return a.record(ReservationReleased{
		EventHeader: newHeader(a.ProductID, a.Version+1, enums.ProductEventReservationReleased),
		CartID:      cartID,
		Quantity:    reservation.Quantity,
		Reason:      reason,
	})
}

// CheckoutReservation converts a cart's hold into a sale: the hold is
// released and total stock drops by the held quantity.
func (a *Aggregate) CheckoutReservation(cartID uuid.UUID, orderID uuid.UUID) error {
	reservation, ok := a.Reservations[cartID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("no reservation for cart %s on product %s", cartID, a.ProductID))
	}
	if err := a.ReleaseReservation(cartID, enums.ReleaseReasonCheckout); err != nil {
		return err
	}
	return a.record(StockDecreased{
		EventHeader: newHeader(a.ProductID, a.Version+1, enums.ProductEventStockDecreased),
		Quantity:    reservation.Quantity,
		OrderID:     orderID,
	})
}

// IncreaseStock restocks inventory.
func (a *Aggregate) IncreaseStock(quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return a.record(StockIncreased{
		EventHeader: newHeader(a.ProductID, a.Version+1, enums.ProductEventStockIncreased),
		Quantity:    quantity,
	})
}

// ChangePrice sets a new price. Setting the current price emits nothing.
func (a *Aggregate) ChangePrice(newPrice decimal.Decimal) error {
	if newPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if newPrice.Equal(a.Price) {
		return nil
	}
	return a.record(PriceChanged{
		EventHeader: newHeader(a.ProductID, a.Version+1, enums.ProductEventPriceChanged),
		OldPrice:    a.Price,
		NewPrice:    newPrice,
	})
}

// UpdateDetails edits name or description. Both nil emits nothing.
func (a *Aggregate) UpdateDetails(name, description *string) error {
	if name == nil && description == nil {
		return nil
	}
	if name != nil && *name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}
	return a.record(Updated{
		EventHeader: newHeader(a.ProductID, a.Version+1, enums.ProductEventUpdated),
		Name:        name,
		Description: description,
	})
}

func (a *Aggregate) releaseExpired(now time.Time) error {
	var expired []uuid.UUID
	for cartID, reservation := range a.Reservations {
		if reservation.Expired(now) {
			expired = append(expired, cartID)
		}
	}
	for _, cartID := range expired {
		if err := a.ReleaseReservation(cartID, enums.ReleaseReasonTimeout); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregate) record(event Event) error {
	if err := a.apply(event); err != nil {
		return err
	}
	a.uncommitted = append(a.uncommitted, event)
	return nil
}

// Replay rebuilds state from stored events without buffering them as
// uncommitted.
func (a *Aggregate) Replay(events []Event) error {
	for _, event := range events {
		if err := a.apply(event); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregate) apply(event Event) error {
	switch e := event.(type) {
	case Created:
		a.Name = e.Name
		a.Price = e.Price
		a.TotalStock = e.InitialStock
		a.Description = e.Description
		a.CreatedAt = e.OccurredAt
	case StockReserved:
		a.Reservations[e.CartID] = Reservation{
			CartID:        e.CartID,
			Quantity:      e.Quantity,
			ReservedUntil: e.ReservedUntil,
		}
	case ReservationReleased:
		delete(a.Reservations, e.CartID)
	case StockIncreased:
		a.TotalStock += e.Quantity
	case StockDecreased:
		a.TotalStock -= e.Quantity
	case PriceChanged:
		a.Price = e.NewPrice
	case Updated:
		if e.Name != nil {
			a.Name = *e.Name
		}
		if e.Description != nil {
			a.Description = *e.Description
		}
	default:
		return fmt.Errorf("no applier for product event %T", event)
	}

	a.Version = event.Header().AggregateVersion
	return nil
}

// ReservedStock sums live holds at the given instant. Expired holds are
// excluded without being mutated away; the next reserve or the TTL sweep
// emits their release events.
func (a *Aggregate) ReservedStock(now time.Time) int {
	total := 0
	for _, reservation := range a.Reservations {
		if !reservation.Expired(now) {
			total += reservation.Quantity
		}
	}
	return total
}

// AvailableStock is inventory on hand minus live holds.
func (a *Aggregate) AvailableStock(now time.Time) int {
	return a.TotalStock - a.ReservedStock(now)
}

// Reservation returns the hold for a cart, if any.
func (a *Aggregate) Reservation(cartID uuid.UUID) (Reservation, bool) {
	reservation, ok := a.Reservations[cartID]
	return reservation, ok
}

// Uncommitted returns events emitted since the last successful save.
func (a *Aggregate) Uncommitted() []Event {
	out := make([]Event, len(a.uncommitted))
	copy(out, a.uncommitted)
	return out
}

// MarkCommitted clears the uncommitted buffer after persistence.
func (a *Aggregate) MarkCommitted() {
	a.uncommitted = nil
}
