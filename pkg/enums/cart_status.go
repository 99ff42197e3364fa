package enums

import "fmt"

// CartStatus tracks the lifecycle of a cart aggregate.
type CartStatus string

const (
	CartStatusPending    CartStatus = "PENDING"
	CartStatusCheckedOut CartStatus = "CHECKED_OUT"
	CartStatusExpired    CartStatus = "EXPIRED"
)

var validCartStatuses = []CartStatus{
	CartStatusPending,
	CartStatusCheckedOut,
	CartStatusExpired,
}

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	for _, candidate := range validCartStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the cart can no longer be mutated.
func (c CartStatus) IsTerminal() bool {
	return c == CartStatusCheckedOut || c == CartStatusExpired
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for _, candidate := range validCartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}
