package cart

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trolleylabs/trolley-backend/pkg/enums"
	pkgerrors "github.com/trolleylabs/trolley-backend/pkg/errors"
)

// Item is one line in the cart keyed by product id.
type Item struct {
	ProductID   string
	ProductName string
	Price       decimal.Decimal
	Quantity    int
}

// TotalPrice returns price multiplied by quantity.
func (i Item) TotalPrice() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Aggregate is the cart write model. State is only mutated through apply;
// command methods validate invariants, emit events, and apply them. Replayed
// events reconstruct a state indistinguishable from the live one.
type Aggregate struct {
	CartID       uuid.UUID
	UserID       string
	Status       enums.CartStatus
	Items        map[string]Item
	Version      int
	CreatedAt    time.Time
	LastActivity time.Time

	uncommitted []Event
}

// NewAggregate returns an empty cart aggregate ready for replay or Create.
func NewAggregate(cartID uuid.UUID) *Aggregate {
	return &Aggregate{
		CartID: cartID,
		Items:  map[string]Item{},
	}
}

// Create opens the cart for a user. Valid only on an uninitialized aggregate.
func (a *Aggregate) Create(userID string) error {
	if a.UserID != "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart already created")
	}
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return a.record(Created{
		EventHeader: newHeader(a.CartID, a.Version+1, enums.CartEventCreated),
		UserID:      userID,
	})
}

// AddItem puts quantity units of a product into the cart. Quantities merge
// when the product is already present.
func (a *Aggregate) AddItem(productID, productName string, price decimal.Decimal, quantity int) error {
	if err := a.requirePending("add items to"); err != nil {
		return err
	}
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return a.record(ItemAdded{
		EventHeader: newHeader(a.CartID, a.Version+1, enums.CartEventItemAdded),
		ProductID:   productID,
		ProductName: productName,
		Price:       price,
		Quantity:    quantity,
	})
}

// RemoveItem drops a product from the cart entirely.
func (a *Aggregate) RemoveItem(productID string) error {
	if err := a.requirePending("remove items from"); err != nil {
		return err
	}
	if _, ok := a.Items[productID]; !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s not found in cart", productID))
	}
	return a.record(ItemRemoved{
		EventHeader: newHeader(a.CartID, a.Version+1, enums.CartEventItemRemoved),
		ProductID:   productID,
	})
}

// ChangeQuantity overrides the quantity of an existing line.
func (a *Aggregate) ChangeQuantity(productID string, newQuantity int) error {
	if err := a.requirePending("change quantities in"); err != nil {
		return err
	}
	item, ok := a.Items[productID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s not found in cart", productID))
	}
	if newQuantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return a.record(QuantityChanged{
		EventHeader: newHeader(a.CartID, a.Version+1, enums.CartEventQuantityChanged),
		ProductID:   productID,
		NewQuantity: newQuantity,
		OldQuantity: item.Quantity,
	})
}

// Checkout finalizes a non-empty pending cart into an order.
func (a *Aggregate) Checkout(orderID uuid.UUID) error {
	if err := a.requirePending("checkout"); err != nil {
		return err
	}
	if len(a.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot checkout empty cart")
	}
	return a.record(CheckedOut{
		EventHeader: newHeader(a.CartID, a.Version+1, enums.CartEventCheckedOut),
		OrderID:     orderID,
		TotalAmount: a.TotalAmount(),
	})
}

// Expire closes a pending cart after inactivity.
func (a *Aggregate) Expire(reason string) error {
	if err := a.requirePending("expire"); err != nil {
		return err
	}
	return a.record(Expired{
		EventHeader: newHeader(a.CartID, a.Version+1, enums.CartEventExpired),
		Reason:      reason,
	})
}

func (a *Aggregate) requirePending(action string) error {
	if a.Status != enums.CartStatusPending {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("cannot %s cart with status %s", action, a.Status))
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

// apply mutates state for one event. It is total over the closed event set;
// invariants are enforced by the command methods, never here.
func (a *Aggregate) apply(event Event) error {
	switch e := event.(type) {
	case Created:
		a.UserID = e.UserID
		a.Status = enums.CartStatusPending
		a.CreatedAt = e.OccurredAt
	case ItemAdded:
		if existing, ok := a.Items[e.ProductID]; ok {
			existing.Quantity += e.Quantity
			existing.ProductName = e.ProductName
			existing.Price = e.Price
			a.Items[e.ProductID] = existing
		} else {
			a.Items[e.ProductID] = Item{
				ProductID:   e.ProductID,
				ProductName: e.ProductName,
				Price:       e.Price,
				Quantity:    e.Quantity,
			}
		}
	case ItemRemoved:
		delete(a.Items, e.ProductID)
	case QuantityChanged:
		if existing, ok := a.Items[e.ProductID]; ok {
			existing.Quantity = e.NewQuantity
			a.Items[e.ProductID] = existing
		}
	case CheckedOut:
		a.Status = enums.CartStatusCheckedOut
	case Expired:
		a.Status = enums.CartStatusExpired
	default:
		return fmt.Errorf("no applier for cart event %T", event)
	}

	header := event.Header()
	a.LastActivity = header.OccurredAt
	a.Version = header.AggregateVersion
	return nil
}

// TotalAmount sums price times quantity over every line.
func (a *Aggregate) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range a.Items {
		total = total.Add(item.TotalPrice())
	}
	return total
}

// ItemCount sums quantities over every line.
func (a *Aggregate) ItemCount() int {
	count := 0
	for _, item := range a.Items {
		count += item.Quantity
	}
	return count
}

// IsExpired reports whether the cart is pending and idle past the timeout.
// Status only changes through an Expired event; this predicate merely tells
// the sweep the cart is due.
func (a *Aggregate) IsExpired(timeout time.Duration, now time.Time) bool {
	if a.Status != enums.CartStatusPending || a.LastActivity.IsZero() {
		return false
	}
	return a.LastActivity.Before(now.Add(-timeout))
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
