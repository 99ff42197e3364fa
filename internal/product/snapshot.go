package product

import (
	"time"

	"github.com/trolleylabs/trolley-backend/pkg/db/models"
)

// Snapshot flattens a product aggregate into its projection row. Reserved
// and available stock are evaluated at the given instant so expired holds
// stop counting without any event being written.
func Snapshot(agg *Aggregate, now time.Time) *models.ProductProjection {
	reserved := agg.ReservedStock(now)
	return &models.ProductProjection{
		ProductID:      agg.ProductID,
		Name:           agg.Name,
		Price:          agg.Price,
		Description:    agg.Description,
		TotalStock:     agg.TotalStock,
		ReservedStock:  reserved,
		AvailableStock: agg.TotalStock - reserved,
		Version:        agg.Version,
		CreatedAt:      agg.CreatedAt,
	}
}
