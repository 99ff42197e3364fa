package enums

import "fmt"

// CartEventType tags every event persisted to the cart event log.
type CartEventType string

const (
	CartEventCreated         CartEventType = "cart.created"
	CartEventItemAdded       CartEventType = "cart.item_added"
	CartEventItemRemoved     CartEventType = "cart.item_removed"
	CartEventQuantityChanged CartEventType = "cart.item_quantity_changed"
	CartEventCheckedOut      CartEventType = "cart.checked_out"
	CartEventExpired         CartEventType = "cart.expired"
)

var validCartEventTypes = []CartEventType{
	CartEventCreated,
	CartEventItemAdded,
	CartEventItemRemoved,
	CartEventQuantityChanged,
	CartEventCheckedOut,
	CartEventExpired,
}

// String implements fmt.Stringer.
func (c CartEventType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartEventType.
func (c CartEventType) IsValid() bool {
	for _, candidate := range validCartEventTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// CartEventTypes returns the closed set of cart event tags. Stores validate
// their decode registries against this list at construction.
func CartEventTypes() []CartEventType {
	out := make([]CartEventType, len(validCartEventTypes))
	copy(out, validCartEventTypes)
	return out
}

// ParseCartEventType converts raw input into a CartEventType.
func ParseCartEventType(value string) (CartEventType, error) {
	for _, candidate := range validCartEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart event type %q", value)
}
