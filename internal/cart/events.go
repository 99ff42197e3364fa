package cart

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trolleylabs/trolley-backend/pkg/enums"
)

// EventHeader carries the fields shared by every cart event. Header fields
// are flattened into the stored JSON payload alongside the domain fields.
type EventHeader struct {
	EventID          uuid.UUID           `json:"event_id"`
	AggregateID      uuid.UUID           `json:"aggregate_id"`
	AggregateVersion int                 `json:"aggregate_version"`
	EventType        enums.CartEventType `json:"event_type"`
	OccurredAt       time.Time           `json:"occurred_at"`
}

// Header returns the shared event fields.
func (h EventHeader) Header() EventHeader { return h }

// Event is the closed set of facts recorded against a cart aggregate.
// Adding a variant requires extending the aggregate's apply switch and the
// decode registry below; the event stores verify the registry covers every
// tag in enums.CartEventTypes at construction.
type Event interface {
	Header() EventHeader
}

func newHeader(aggregateID uuid.UUID, version int, eventType enums.CartEventType) EventHeader {
	return EventHeader{
		EventID:          uuid.New(),
		AggregateID:      aggregateID,
		AggregateVersion: version,
		EventType:        eventType,
		OccurredAt:       time.Now().UTC(),
	}
}

// Created records that a cart was opened for a user.
type Created struct {
	EventHeader
	UserID string `json:"user_id"`
}

// ItemAdded records one add-to-cart. Re-adding a product merges quantities
// during apply; the latest name and price win.
type ItemAdded struct {
	EventHeader
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// ItemRemoved records that a product left the cart entirely.
type ItemRemoved struct {
	EventHeader
	ProductID string `json:"product_id"`
}

// QuantityChanged records an explicit quantity override for a line.
type QuantityChanged struct {
	EventHeader
	ProductID   string `json:"product_id"`
	NewQuantity int    `json:"new_quantity"`
	OldQuantity int    `json:"old_quantity"`
}

// CheckedOut finalizes the cart into an order.
type CheckedOut struct {
	EventHeader
	OrderID     uuid.UUID       `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Expired closes the cart after inactivity.
type Expired struct {
	EventHeader
	Reason string `json:"reason"`
}

type decodeFunc func([]byte) (Event, error)

var decodeRegistry = map[enums.CartEventType]decodeFunc{
	enums.CartEventCreated:         decodeCreated,
	enums.CartEventItemAdded:       decodeItemAdded,
	enums.CartEventItemRemoved:     decodeItemRemoved,
	enums.CartEventQuantityChanged: decodeQuantityChanged,
	enums.CartEventCheckedOut:      decodeCheckedOut,
	enums.CartEventExpired:         decodeExpired,
}

func decodeCreated(payload []byte) (Event, error) {
	var event Created
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodeItemAdded(payload []byte) (Event, error) {
	var event ItemAdded
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodeItemRemoved(payload []byte) (Event, error) {
	var event ItemRemoved
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodeQuantityChanged(payload []byte) (Event, error) {
	var event QuantityChanged
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodeCheckedOut(payload []byte) (Event, error) {
	var event CheckedOut
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodeExpired(payload []byte) (Event, error) {
	var event Expired
	err := json.Unmarshal(payload, &event)
	return event, err
}

// EncodeEvent serializes an event into the stored JSON payload. Header
// fields land flattened next to the domain fields.
func EncodeEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeEvent deserializes a stored payload by its event-type tag.
func DecodeEvent(eventType enums.CartEventType, payload []byte) (Event, error) {
	decode, ok := decodeRegistry[eventType]
	if ok {
		return decode(payload)
	}
	return nil, fmt.Errorf("no decoder for cart event type %q", eventType)
}

// RegisteredEventTypes lists the tags the decode registry can handle.
func RegisteredEventTypes() []enums.CartEventType {
	types := make([]enums.CartEventType, 0, len(decodeRegistry))
	for eventType := range decodeRegistry {
		types = append(types, eventType)
	}
	return types
}
