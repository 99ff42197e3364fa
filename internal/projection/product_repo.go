package projection

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/trolleylabs/trolley-backend/internal/repo"
	"github.com/trolleylabs/trolley-backend/pkg/db/models"
)

// ProductRepo maintains the denormalized product read model.
type ProductRepo struct {
	repo.Base
}

// NewProductRepo builds the repository.
func NewProductRepo(gdb *gorm.DB) *ProductRepo {
	return &ProductRepo{Base: repo.NewBase(gdb)}
}

// WithTx rebinds the repository to a transaction.
func (r *ProductRepo) WithTx(tx *gorm.DB) *ProductRepo {
	if tx == nil {
		return r
	}
	return &ProductRepo{Base: repo.NewBase(tx)}
}

// Create inserts the initial projection row for a new product.
func (r *ProductRepo) Create(ctx context.Context, row *models.ProductProjection) error {
	if err := r.DB(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("creating product projection: %w", err)
	}
	return nil
}

// Update writes the full snapshot under the version non-regression guard.
func (r *ProductRepo) Update(ctx context.Context, row *models.ProductProjection) error {
	err := r.DB(ctx).
		Model(&models.ProductProjection{}).
		Where("product_id = ? AND version <= ?", row.ProductID, row.Version).
		Updates(map[string]any{
			"name":            row.Name,
			"price":           row.Price,
			"description":     row.Description,
			"total_stock":     row.TotalStock,
			"reserved_stock":  row.ReservedStock,
			"available_stock": row.AvailableStock,
			"version":         row.Version,
		}).Error
	if err != nil {
		return fmt.Errorf("updating product projection: %w", err)
	}
	return nil
}

// Get returns a product snapshot, or nil when the product is unknown.
func (r *ProductRepo) Get(ctx context.Context, productID string) (*models.ProductProjection, error) {
	var row models.ProductProjection
	err := r.DB(ctx).Where("product_id = ?", productID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading product projection: %w", err)
	}
	return &row, nil
}

// List returns catalog rows ordered by product id, optionally only those
// with stock available right now.
func (r *ProductRepo) List(ctx context.Context, availableOnly bool, limit, offset int) ([]models.ProductProjection, error) {
	query := r.DB(ctx).Model(&models.ProductProjection{})
	if availableOnly {
		query = query.Where("available_stock > 0")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []models.ProductProjection
	if err := query.Order("product_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing product projections: %w", err)
	}
	return rows, nil
}
