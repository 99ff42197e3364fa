package product

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
)

func newStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:productstore_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.ProductEvent{}); err != nil {
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

func TestProductSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, newStoreDB(t))
	now := time.Now().UTC()

	agg := NewAggregate("prod-1")
	if err := agg.Create("Widget", price("9.99"), 10, "a widget"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	cartID := uuid.New()
	if err := agg.ReserveStock(cartID, 3, 15*time.Minute, now); err != nil {
		t.Fatalf("ReserveStock: %v", err)
	}

	if err := store.Save(ctx, agg.ProductID, 0, agg.Uncommitted()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, agg.ProductID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a loaded aggregate")
	}
	if loaded.TotalStock != 10 {
		t.Fatalf("total = %d, want 10", loaded.TotalStock)
	}
	if got := loaded.ReservedStock(now); got != 3 {
		t.Fatalf("reserved = %d, want 3", got)
	}
	if _, ok := loaded.Reservation(cartID); !ok {
		t.Fatal("reservation lost in round trip")
	}
}

func TestProductSaveStaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, newStoreDB(t))

	agg := NewAggregate("prod-1")
	if err := agg.Create("Widget", price("1.00"), 5, ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Save(ctx, agg.ProductID, 0, agg.Uncommitted()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	err := store.Save(ctx, agg.ProductID, 0, agg.Uncommitted())
	if !errors.Is(err, eventstore.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}
