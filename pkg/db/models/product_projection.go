package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductProjection is the denormalized read model for one product aggregate.
// ReservedStock and AvailableStock are stored precomputed so listings never
// touch the event log.
type ProductProjection struct {
	ProductID      string          `gorm:"column:product_id;type:text;primaryKey"`
	Name           string          `gorm:"column:name;type:text;not null"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Description    string          `gorm:"column:description;type:text;not null;default:''"`
	TotalStock     int             `gorm:"column:total_stock;not null"`
	ReservedStock  int             `gorm:"column:reserved_stock;not null"`
	AvailableStock int             `gorm:"column:available_stock;not null;index:ix_product_projections_available"`
	Version        int             `gorm:"column:version;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
