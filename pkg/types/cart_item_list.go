package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// CartItemSnapshot is one denormalized line in the cart projection's items
// column.
type CartItemSnapshot struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// CartItemList stores cart items as a JSON array column.
type CartItemList []CartItemSnapshot

// Value implements driver.Valuer. An empty list serializes as [] rather than
// NULL so readers never deal with a missing column.
func (l CartItemList) Value() (driver.Value, error) {
	if l == nil {
		l = CartItemList{}
	}
	payload, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal cart items: %w", err)
	}
	return string(payload), nil
}

// Scan implements sql.Scanner.
func (l *CartItemList) Scan(value any) error {
	if value == nil {
		*l = CartItemList{}
		return nil
	}

	var payload []byte
	switch v := value.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	default:
		return fmt.Errorf("unsupported cart items column type %T", value)
	}

	if len(payload) == 0 {
		*l = CartItemList{}
		return nil
	}

	var items CartItemList
	if err := json.Unmarshal(payload, &items); err != nil {
		return fmt.Errorf("unmarshal cart items: %w", err)
	}
	*l = items
	return nil
}
