package enums

import "fmt"

// ProductEventType tags every event persisted to the product event log.
type ProductEventType string

const (
	ProductEventCreated             ProductEventType = "product.created"
	ProductEventStockReserved       ProductEventType = "product.stock_reserved"
	ProductEventReservationReleased ProductEventType = "product.reservation_released"
	ProductEventStockIncreased      ProductEventType = "product.stock_increased"
	ProductEventStockDecreased      ProductEventType = "product.stock_decreased"
	ProductEventPriceChanged        ProductEventType = "product.price_changed"
	ProductEventUpdated             ProductEventType = "product.updated"
)

var validProductEventTypes = []ProductEventType{
	ProductEventCreated,
	ProductEventStockReserved,
	ProductEventReservationReleased,
	ProductEventStockIncreased,
	ProductEventStockDecreased,
	ProductEventPriceChanged,
	ProductEventUpdated,
}

// String implements fmt.Stringer.
func (p ProductEventType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductEventType.
func (p ProductEventType) IsValid() bool {
	for _, candidate := range validProductEventTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ProductEventTypes returns the closed set of product event tags.
func ProductEventTypes() []ProductEventType {
	out := make([]ProductEventType, len(validProductEventTypes))
	copy(out, validProductEventTypes)
	return out
}

// ParseProductEventType converts raw input into a ProductEventType.
func ParseProductEventType(value string) (ProductEventType, error) {
	for _, candidate := range validProductEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product event type %q", value)
}
