package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trolleylabs/trolley-backend/pkg/enums"
	"github.com/trolleylabs/trolley-backend/pkg/types"
)

// CartProjection is the denormalized read model for one cart aggregate.
type CartProjection struct {
	CartID       uuid.UUID          `gorm:"column:cart_id;type:uuid;primaryKey"`
	UserID       string             `gorm:"column:user_id;type:text;not null;index:ix_cart_projections_user_status"`
	Status       enums.CartStatus   `gorm:"column:status;type:text;not null;index:ix_cart_projections_user_status;index:ix_cart_projections_status_activity"`
	Items        types.CartItemList `gorm:"column:items;type:jsonb;not null"`
	TotalAmount  decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ItemCount    int                `gorm:"column:item_count;not null"`
	Version      int                `gorm:"column:version;not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;not null"`
	LastActivity time.Time          `gorm:"column:last_activity;not null;index:ix_cart_projections_status_activity"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
