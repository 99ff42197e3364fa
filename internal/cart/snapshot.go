package cart

import (
	"sort"

	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/types"
)

// Snapshot flattens a cart aggregate into its projection row. Items are
// sorted by product id so snapshots are stable across runs.
func Snapshot(agg *Aggregate) *models.CartProjection {
	items := make(types.CartItemList, 0, len(agg.Items))
	for _, item := range agg.Items {
		items = append(items, types.CartItemSnapshot{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			TotalPrice:  item.TotalPrice(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	return &models.CartProjection{
		CartID:       agg.CartID,
		UserID:       agg.UserID,
		Status:       agg.Status,
		Items:        items,
		TotalAmount:  agg.TotalAmount(),
		ItemCount:    agg.ItemCount(),
		Version:      agg.Version,
		CreatedAt:    agg.CreatedAt,
		LastActivity: agg.LastActivity,
	}
}
