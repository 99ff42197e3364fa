package cart

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trolleylabs/trolley-backend/internal/eventstore"
	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/enums"
)

func newStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:cartstore_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.CartEvent{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func newStore(t *testing.T, conn *gorm.DB) *Store {
	t.Helper()
	store, err := NewStore(conn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func buildCart(t *testing.T) *Aggregate {
	t.Helper()
	agg := NewAggregate(uuid.New())
	if err := agg.Create("user-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := agg.AddItem("prod-1", "Widget", price("9.99"), 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	return agg
}

func TestCartSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, newStoreDB(t))
	agg := buildCart(t)

	if err := store.Save(ctx, agg.CartID, 0, agg.Uncommitted()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	agg.MarkCommitted()

	loaded, err := store.Load(ctx, agg.CartID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a loaded aggregate")
	}
	if loaded.Version != agg.Version {
		t.Fatalf("version = %d, want %d", loaded.Version, agg.Version)
	}
	if loaded.Status != enums.CartStatusPending {
		t.Fatalf("status = %s, want %s", loaded.Status, enums.CartStatusPending)
	}
	if !loaded.TotalAmount().Equal(agg.TotalAmount()) {
		t.Fatalf("total = %s, want %s", loaded.TotalAmount(), agg.TotalAmount())
	}
}

func TestCartLoadMissingStream(t *testing.T) {
	store := newStore(t, newStoreDB(t))

	loaded, err := store.Load(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Fatal("missing stream must load as nil")
	}
}

func TestCartSaveEmptyIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, newStoreDB(t))

	if err := store.Save(ctx, uuid.New(), 0, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestCartSaveStaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, newStoreDB(t))
	agg := buildCart(t)

	if err := store.Save(ctx, agg.CartID, 0, agg.Uncommitted()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	err := store.Save(ctx, agg.CartID, 0, agg.Uncommitted())
	if !errors.Is(err, eventstore.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}

func TestCartConcurrentWritersOneLoses(t *testing.T) {
	ctx := context.Background()
	conn := newStoreDB(t)
	store := newStore(t, conn)

	cartID := uuid.New()
	seed := NewAggregate(cartID)
	if err := seed.Create("user-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Save(ctx, cartID, 0, seed.Uncommitted()); err != nil {
		t.Fatalf("seed Save: %v", err)
	}

	first, err := store.Load(ctx, cartID)
	if err != nil {
		t.Fatalf("Load first: %v", err)
	}
	second, err := store.Load(ctx, cartID)
	if err != nil {
		t.Fatalf("Load second: %v", err)
	}

	expected := first.Version
	if err := first.AddItem("prod-1", "Widget", price("5.00"), 1); err != nil {
		t.Fatalf("AddItem first: %v", err)
	}
	if err := second.AddItem("prod-2", "Gadget", price("5.00"), 1); err != nil {
		t.Fatalf("AddItem second: %v", err)
	}

	if err := store.Save(ctx, cartID, expected, first.Uncommitted()); err != nil {
		t.Fatalf("first writer must win: %v", err)
	}
	err = store.Save(ctx, cartID, expected, second.Uncommitted())
	if !errors.Is(err, eventstore.ErrConcurrencyConflict) {
		t.Fatalf("second writer must lose with ErrConcurrencyConflict, got %v", err)
	}

	events, err := store.Events(ctx, cartID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	for i, event := range events {
		if got := event.Header().AggregateVersion; got != i+1 {
			t.Fatalf("event %d has version %d, want %d", i, got, i+1)
		}
	}
}

func TestCartEventsUnknownTagFails(t *testing.T) {
	ctx := context.Background()
	conn := newStoreDB(t)
	store := newStore(t, conn)
	cartID := uuid.New()

	row := models.CartEvent{
		ID:               uuid.New(),
		AggregateID:      cartID,
		AggregateVersion: 1,
		EventType:        enums.CartEventType("cart.bogus"),
		EventData:        []byte(`{}`),
		OccurredAt:       time.Now().UTC(),
	}
	if err := conn.Create(&row).Error; err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	_, err := store.Events(ctx, cartID)
	if !errors.Is(err, eventstore.ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}
