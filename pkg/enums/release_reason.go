package enums

// ReleaseReason records why a stock reservation was released.
type ReleaseReason string

const (
	ReleaseReasonCheckout    ReleaseReason = "checkout"
	ReleaseReasonItemRemoved ReleaseReason = "item_removed"
	ReleaseReasonCartExpired ReleaseReason = "cart_expired"
	ReleaseReasonCartFailed  ReleaseReason = "cart_operation_failed"
	ReleaseReasonTimeout     ReleaseReason = "timeout"
	ReleaseReasonManual      ReleaseReason = "manual"
)

var validReleaseReasons = []ReleaseReason{
	ReleaseReasonCheckout,
	ReleaseReasonItemRemoved,
	ReleaseReasonCartExpired,
	ReleaseReasonCartFailed,
	ReleaseReasonTimeout,
	ReleaseReasonManual,
}

// String implements fmt.Stringer.
func (r ReleaseReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReleaseReason.
func (r ReleaseReason) IsValid() bool {
	for _, candidate := range validReleaseReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
