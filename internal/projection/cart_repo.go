package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trolleylabs/trolley-backend/internal/repo"
	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/enums"
	"github.com/trolleylabs/trolley-backend/pkg/pagination"
)

// CartRepo maintains the denormalized cart read model. Writers run inside
// the same transaction as the event append; readers hit the projection only.
type CartRepo struct {
	repo.Base
}

// NewCartRepo builds the repository.
func NewCartRepo(gdb *gorm.DB) *CartRepo {
	return &CartRepo{Base: repo.NewBase(gdb)}
}

// WithTx rebinds the repository to a transaction.
func (r *CartRepo) WithTx(tx *gorm.DB) *CartRepo {
	if tx == nil {
		return r
	}
	return &CartRepo{Base: repo.NewBase(tx)}
}

// Create inserts the initial projection row for a new cart.
func (r *CartRepo) Create(ctx context.Context, row *models.CartProjection) error {
	if err := r.DB(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("creating cart projection: %w", err)
	}
	return nil
}

// Update writes the full snapshot, guarded so an older snapshot never
// overwrites a newer one. Stale writes are dropped silently.
func (r *CartRepo) Update(ctx context.Context, row *models.CartProjection) error {
	err := r.DB(ctx).
		Model(&models.CartProjection{}).
		Where("cart_id = ? AND version <= ?", row.CartID, row.Version).
		Updates(map[string]any{
			"status":        row.Status,
			"items":         row.Items,
			"total_amount":  row.TotalAmount,
			"item_count":    row.ItemCount,
			"version":       row.Version,
			"last_activity": row.LastActivity,
		}).Error
	if err != nil {
		return fmt.Errorf("updating cart projection: %w", err)
	}
	return nil
}

// Get returns a cart snapshot, or nil when the cart is unknown.
func (r *CartRepo) Get(ctx context.Context, cartID uuid.UUID) (*models.CartProjection, error) {
	var row models.CartProjection
	err := r.DB(ctx).Where("cart_id = ?", cartID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading cart projection: %w", err)
	}
	return &row, nil
}

// ListByUser pages through a user's carts, newest first, optionally filtered
// by status. The returned cursor is empty on the last page.
func (r *CartRepo) ListByUser(ctx context.Context, userID string, status *enums.CartStatus, params pagination.Params) ([]models.CartProjection, string, error) {
	query := r.DB(ctx).
		Model(&models.CartProjection{}).
		Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND cart_id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.CartProjection
	err = query.
		Order("created_at DESC").
		Order("cart_id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", fmt.Errorf("listing cart projections: %w", err)
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.CartID,
		})
	}
	return rows, next, nil
}

// ExpiredBefore returns pending carts idle since before the cutoff, oldest
// first, capped at limit. The sweep drains in batches.
func (r *CartRepo) ExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CartProjection, error) {
	var rows []models.CartProjection
	err := r.DB(ctx).
		Where("status = ? AND last_activity < ?", enums.CartStatusPending, cutoff).
		Order("last_activity ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing expired carts: %w", err)
	}
	return rows, nil
}
