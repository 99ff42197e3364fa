package enums

// AggregateType identifies which event stream an envelope belongs to.
type AggregateType string

const (
	AggregateCart    AggregateType = "cart"
	AggregateProduct AggregateType = "product"
)

// String implements fmt.Stringer.
func (a AggregateType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AggregateType.
func (a AggregateType) IsValid() bool {
	return a == AggregateCart || a == AggregateProduct
}
