package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/trolleylabs/trolley-backend/pkg/enums"
)

// CartEvent is one appended row in the cart event log. The unique index on
// (aggregate_id, aggregate_version) is the optimistic-concurrency guard.
type CartEvent struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	AggregateID      uuid.UUID           `gorm:"column:aggregate_id;type:uuid;not null;index:ix_cart_events_aggregate;uniqueIndex:ux_cart_events_aggregate_version"`
	AggregateVersion int                 `gorm:"column:aggregate_version;not null;uniqueIndex:ux_cart_events_aggregate_version"`
	EventType        enums.CartEventType `gorm:"column:event_type;type:text;not null"`
	EventData        json.RawMessage     `gorm:"column:event_data;type:jsonb;not null"`
	OccurredAt       time.Time           `gorm:"column:occurred_at;not null"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}
