package product

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/trolleylabs/trolley-backend/internal/eventstore"
	"github.com/trolleylabs/trolley-backend/internal/repo"
	"github.com/trolleylabs/trolley-backend/pkg/db"
	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/enums"
)

// Store is the append-only persistence for product event streams. Same
// contract as the cart store, keyed by the merchant-assigned product id.
type Store struct {
	repo.Base
}

// NewStore builds the store and verifies the decode registry covers every
// product event tag.
func NewStore(gdb *gorm.DB) (*Store, error) {
	if gdb == nil {
		return nil, fmt.Errorf("db connection required")
	}
	registered := map[enums.ProductEventType]bool{}
	for _, eventType := range RegisteredEventTypes() {
		registered[eventType] = true
	}
	for _, eventType := range enums.ProductEventTypes() {
		if !registered[eventType] {
			return nil, fmt.Errorf("no decoder registered for product event type %q", eventType)
		}
	}
	return &Store{Base: repo.NewBase(gdb)}, nil
}

// WithTx rebinds the store to a transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	if tx == nil {
		return s
	}
	return &Store{Base: repo.NewBase(tx)}
}

// Save appends events to a product stream under the optimistic concurrency
// contract. Saving zero events is a no-op.
func (s *Store) Save(ctx context.Context, aggregateID string, expectedVersion int, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	current, err := s.currentVersion(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("reading product stream version: %w", err)
	}
	if current != expectedVersion {
		return fmt.Errorf("product %s at version %d, expected %d: %w",
			aggregateID, current, expectedVersion, eventstore.ErrConcurrencyConflict)
	}

	for _, event := range events {
		header := event.Header()
		payload, err := EncodeEvent(event)
		if err != nil {
			return fmt.Errorf("encoding product event %s: %w", header.EventType, err)
		}
		row := models.ProductEvent{
			ID:               header.EventID,
			AggregateID:      aggregateID,
			AggregateVersion: header.AggregateVersion,
			EventType:        header.EventType,
			EventData:        payload,
			OccurredAt:       header.OccurredAt,
		}
		if err := s.DB(ctx).Create(&row).Error; err != nil {
			if db.IsUniqueViolation(err, "") {
				return fmt.Errorf("product %s version %d already written: %w",
					aggregateID, header.AggregateVersion, eventstore.ErrConcurrencyConflict)
			}
			return fmt.Errorf("appending product event: %w", err)
		}
	}
	return nil
}

func (s *Store) currentVersion(ctx context.Context, aggregateID string) (int, error) {
	var version int
	err := s.DB(ctx).
		Model(&models.ProductEvent{}).
		Where("aggregate_id = ?", aggregateID).
		Select("COALESCE(MAX(aggregate_version), 0)").
		Scan(&version).Error
	return version, err
}

// Events returns the full stream for a product in version order.
func (s *Store) Events(ctx context.Context, aggregateID string) ([]Event, error) {
	var rows []models.ProductEvent
	err := s.DB(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("aggregate_version ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("reading product stream: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		event, err := DecodeEvent(row.EventType, row.EventData)
		if err != nil {
			return nil, fmt.Errorf("decoding product event %s v%d (%s): %w",
				aggregateID, row.AggregateVersion, row.EventType, eventstore.ErrUnknownEventType)
		}
		events = append(events, event)
	}
	return events, nil
}

// Load replays a product aggregate from its stream. A missing stream returns
// (nil, nil).
func (s *Store) Load(ctx context.Context, aggregateID string) (*Aggregate, error) {
	events, err := s.Events(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	agg := NewAggregate(aggregateID)
	if err := agg.Replay(events); err != nil {
		return nil, fmt.Errorf("replaying product %s: %w", aggregateID, err)
	}
	return agg, nil
}
