package product

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trolleylabs/trolley-backend/pkg/enums"
)

// EventHeader carries the fields shared by every product event. Product
// aggregates key on a merchant-assigned string id, not a uuid.
type EventHeader struct {
	EventID          uuid.UUID              `json:"event_id"`
	AggregateID      string                 `json:"aggregate_id"`
	AggregateVersion int                    `json:"aggregate_version"`
	EventType        enums.ProductEventType `json:"event_type"`
	OccurredAt       time.Time              `json:"occurred_at"`
}

// Header returns the shared event fields.
func (h EventHeader) Header() EventHeader { return h }

// Event is the closed set of facts recorded against a product aggregate.
type Event interface {
	Header() EventHeader
}

func newHeader(aggregateID string, version int, eventType enums.ProductEventType) EventHeader {
	return EventHeader{
		EventID:          uuid.New(),
		AggregateID:      aggregateID,
		AggregateVersion: version,
		EventType:        eventType,
		OccurredAt:       time.Now().UTC(),
	}
}

// Created records that a product entered the catalog.
type Created struct {
	EventHeader
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock"`
	Description  string          `json:"description"`
}

// StockReserved records a hold on stock for a cart. A later reservation for
// the same cart replaces the hold during apply.
type StockReserved struct {
	EventHeader
	CartID        uuid.UUID `json:"cart_id"`
	Quantity      int       `json:"quantity"`
	ReservedUntil time.Time `json:"reserved_until"`
}

// ReservationReleased records that a cart's hold was given back. Quantity is
// the amount that was held when the release happened.
type ReservationReleased struct {
	EventHeader
	CartID   uuid.UUID           `json:"cart_id"`
	Quantity int                 `json:"quantity"`
	Reason   enums.ReleaseReason `json:"reason"`
}

// StockIncreased records a restock.
type StockIncreased struct {
	EventHeader
	Quantity int `json:"quantity"`
}

// StockDecreased records stock leaving inventory for a completed order.
type StockDecreased struct {
	EventHeader
	Quantity int       `json:"quantity"`
	OrderID  uuid.UUID `json:"order_id"`
}

// PriceChanged records a price override.
type PriceChanged struct {
	EventHeader
	OldPrice decimal.Decimal `json:"old_price"`
	NewPrice decimal.Decimal `json:"new_price"`
}

// Updated records a partial edit of name or description. Nil means the field
// was left untouched.
type Updated struct {
	EventHeader
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type decodeFunc func([]byte) (Event, error)

var decodeRegistry = map[enums.ProductEventType]decodeFunc{
	enums.ProductEventCreated:             decodeCreated,
	enums.ProductEventStockReserved:       decodeStockReserved,
	enums.ProductEventReservationReleased: decodeReservationReleased,
	enums.ProductEventStockIncreased:      decodeStockIncreased,
	enums.ProductEventStockDecreased:      decodeStockDecreased,
	enums.ProductEventPriceChanged:        decodePriceChanged,
	enums.ProductEventUpdated:             decodeUpdated,
}

func decodeCreated(payload []byte) (Event, error) {
	var event Created
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodeStockReserved(payload []byte) (Event, error) {
	var event StockReserved
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodeReservationReleased(payload []byte) (Event, error) {
	var event ReservationReleased
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodeStockIncreased(payload []byte) (Event, error) {
	var event StockIncreased
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodeStockDecreased(payload []byte) (Event, error) {
	var event StockDecreased
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodePriceChanged(payload []byte) (Event, error) {
	var event PriceChanged
	err := json.Unmarshal(payload, &event)
	return event, err
}

func decodeUpdated(payload []byte) (Event, error) {
	var event Updated
	err := json.Unmarshal(payload, &event)
	return event, err
}

// EncodeEvent serializes an event into the stored JSON payload.
func EncodeEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeEvent deserializes a stored payload by its event-type tag.
func DecodeEvent(eventType enums.ProductEventType, payload []byte) (Event, error) {
	decode, ok := decodeRegistry[eventType]
	if ok {
		return decode(payload)
	}
	return nil, fmt.Errorf("no decoder for product event type %q", eventType)
}

// RegisteredEventTypes lists the tags the decode registry can handle.
func RegisteredEventTypes() []enums.ProductEventType {
	types := make([]enums.ProductEventType, 0, len(decodeRegistry))
	for eventType := range decodeRegistry {
		types = append(types, eventType)
	}
	return types
}
