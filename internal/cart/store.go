package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trolleylabs/trolley-backend/internal/eventstore"
	"github.com/trolleylabs/trolley-backend/internal/repo"
	"github.com/trolleylabs/trolley-backend/pkg/db"
	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/enums"
)

// Store is the append-only persistence for cart event streams. One row per
// event; the unique (aggregate_id, aggregate_version) index is the
// optimistic concurrency check of last resort.
type Store struct {
	repo.Base
}

// NewStore builds the store and verifies the decode registry covers every
// cart event tag. A missing decoder would otherwise only surface when an
// affected stream is first read back.
func NewStore(gdb *gorm.DB) (*Store, error) {
	if gdb == nil {
		return nil, fmt.Errorf("db connection required")
	}
	registered := map[enums.CartEventType]bool{}
	for _, eventType := range RegisteredEventTypes() {
		registered[eventType] = true
	}
	for _, eventType := range enums.CartEventTypes() {
		if !registered[eventType] {
			return nil, fmt.Errorf("no decoder registered for cart event type %q", eventType)
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

// Save appends events to a cart stream. expectedVersion is the stream
// version the caller loaded before issuing commands; a mismatch, or a
// concurrent insert hitting the unique index, yields
// eventstore.ErrConcurrencyConflict. Saving zero events is a no-op.
func (s *Store) Save(ctx context.Context, aggregateID uuid.UUID, expectedVersion int, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	current, err := s.currentVersion(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("reading cart stream version: %w", err)
	}
	if current != expectedVersion {
		return fmt.Errorf("cart %s at version %d, expected %d: %w",
			aggregateID, current, expectedVersion, eventstore.ErrConcurrencyConflict)
	}

	for _, event := range events {
		header := event.Header()
		payload, err := EncodeEvent(event)
		if err != nil {
			return fmt.Errorf("encoding cart event %s: %w", header.EventType, err)
		}
		row := models.CartEvent{
			ID:               header.EventID,
			AggregateID:      aggregateID,
			AggregateVersion: header.AggregateVersion,
			EventType:        header.EventType,
			EventData:        payload,
			OccurredAt:       header.OccurredAt,
		}
		if err := s.DB(ctx).Create(&row).Error; err != nil {
			if db.IsUniqueViolation(err, "") {
				return fmt.Errorf("cart %s version %d already written: %w",
					aggregateID, header.AggregateVersion, eventstore.ErrConcurrencyConflict)
			}
			return fmt.Errorf("appending cart event: %w", err)
		}
	}
	return nil
}

func (s *Store) currentVersion(ctx context.Context, aggregateID uuid.UUID) (int, error) {
	var version int
	err := s.DB(ctx).
		Model(&models.CartEvent{}).
		Where("aggregate_id = ?", aggregateID).
		Select("COALESCE(MAX(aggregate_version), 0)").
		Scan(&version).Error
	return version, err
}

// Events returns the full stream for a cart in version order. An empty slice
// means the cart does not exist.
func (s *Store) Events(ctx context.Context, aggregateID uuid.UUID) ([]Event, error) {
	var rows []models.CartEvent
	err := s.DB(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("aggregate_version ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("reading cart stream: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		event, err := DecodeEvent(row.EventType, row.EventData)
		if err != nil {
			return nil, fmt.Errorf("decoding cart event %s v%d (%s): %w",
				aggregateID, row.AggregateVersion, row.EventType, eventstore.ErrUnknownEventType)
		}
		events = append(events, event)
	}
	return events, nil
}

// Load replays a cart aggregate from its stream. A missing stream returns
// (nil, nil); callers decide whether absence is an error.
func (s *Store) Load(ctx context.Context, aggregateID uuid.UUID) (*Aggregate, error) {
	events, err := s.Events(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	agg := NewAggregate(aggregateID)
	if err := agg.Replay(events); err != nil {
		return nil, fmt.Errorf("replaying cart %s: %w", aggregateID, err)
	}
	return agg, nil
}
