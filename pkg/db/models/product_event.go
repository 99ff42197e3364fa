package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/trolleylabs/trolley-backend/pkg/enums"
)

// ProductEvent is one appended row in the product event log. Product
// aggregates key on a short merchant-assigned identifier rather than a uuid.
type ProductEvent struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	AggregateID      string                 `gorm:"column:aggregate_id;type:text;not null;index:ix_product_events_aggregate;uniqueIndex:ux_product_events_aggregate_version"`
	AggregateVersion int                    `gorm:"column:aggregate_version;not null;uniqueIndex:ux_product_events_aggregate_version"`
	EventType        enums.ProductEventType `gorm:"column:event_type;type:text;not null"`
	EventData        json.RawMessage        `gorm:"column:event_data;type:jsonb;not null"`
	OccurredAt       time.Time              `gorm:"column:occurred_at;not null"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
}
