package cart

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trolleylabs/trolley-backend/internal/projection"
	"github.com/trolleylabs/trolley-backend/pkg/db"
	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/enums"
	"github.com/trolleylabs/trolley-backend/pkg/eventbus"
	pkgerrors "github.com/trolleylabs/trolley-backend/pkg/errors"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
	"github.com/trolleylabs/trolley-backend/pkg/pagination"
)

func newTestService(t *testing.T) (*Service, *eventbus.Bus) {
	t.Helper()
	dsn := fmt.Sprintf("file:cartsvc_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.CartEvent{}, &models.CartProjection{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	store, err := NewStore(conn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	bus := eventbus.New(logg, nil)

	svc, err := NewService(ServiceParams{
		Logger:      logg,
		DB:          db.NewWithConn(conn),
		Store:       store,
		Projections: projection.NewCartRepo(conn),
		Bus:         bus,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, bus
}

func TestCreateCartWritesProjectionAndPublishes(t *testing.T) {
	ctx := context.Background()
	svc, bus := newTestService(t)

	var seen []eventbus.Envelope
	bus.Subscribe("capture", func(_ context.Context, e eventbus.Envelope) { seen = append(seen, e) })

	cartID, err := svc.CreateCart(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateCart: %v", err)
	}

	row, err := svc.GetCart(ctx, cartID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if row.Status != enums.CartStatusPending {
		t.Fatalf("status = %s, want %s", row.Status, enums.CartStatusPending)
	}
	if row.Version != 1 {
		t.Fatalf("version = %d, want 1", row.Version)
	}
	if len(seen) != 1 || seen[0].EventType != enums.CartEventCreated.String() {
		t.Fatalf("published envelopes = %+v", seen)
	}
}

func TestAddItemUpdatesProjection(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	cartID, err := svc.CreateCart(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateCart: %v", err)
	}

	unit := decimal.RequireFromString("9.99")
	if err := svc.AddItem(ctx, cartID, "P001", "Widget", unit, 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := svc.AddItem(ctx, cartID, "P001", "Widget", unit, 1); err != nil {
		t.Fatalf("AddItem again: %v", err)
	}

	row, err := svc.GetCart(ctx, cartID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if row.ItemCount != 3 {
		t.Fatalf("item count = %d, want 3", row.ItemCount)
	}
	if len(row.Items) != 1 {
		t.Fatalf("lines = %d, want 1", len(row.Items))
	}
	if !row.TotalAmount.Equal(decimal.RequireFromString("29.97")) {
		t.Fatalf("total = %s, want 29.97", row.TotalAmount)
	}
	if row.Version != 3 {
		t.Fatalf("version = %d, want 3", row.Version)
	}
}

func TestAddItemUnknownCart(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.AddItem(context.Background(), uuid.New(), "P001", "Widget", decimal.RequireFromString("1.00"), 1)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestRemoveItemReturnsQuantity(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	cartID, _ := svc.CreateCart(ctx, "user-1")
	if err := svc.AddItem(ctx, cartID, "P001", "Widget", decimal.RequireFromString("2.00"), 4); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	removed, err := svc.RemoveItem(ctx, cartID, "P001")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if removed != 4 {
		t.Fatalf("removed = %d, want 4", removed)
	}

	row, err := svc.GetCart(ctx, cartID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if row.ItemCount != 0 || len(row.Items) != 0 {
		t.Fatalf("cart not emptied: count=%d lines=%d", row.ItemCount, len(row.Items))
	}
}

func TestCheckoutProducesOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	cartID, _ := svc.CreateCart(ctx, "user-1")
	if err := svc.AddItem(ctx, cartID, "P001", "Widget", decimal.RequireFromString("5.00"), 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	result, err := svc.Checkout(ctx, cartID, nil)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if result.OrderID == uuid.Nil {
		t.Fatal("expected a generated order id")
	}
	if !result.TotalAmount.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("total = %s, want 10.00", result.TotalAmount)
	}
	if len(result.Items) != 1 {
		t.Fatalf("result lines = %d, want 1", len(result.Items))
	}
	if result.Items[0].ProductID != "P001" || result.Items[0].Quantity != 2 {
		t.Fatalf("result line = %+v, want P001 x2", result.Items[0])
	}

	row, err := svc.GetCart(ctx, cartID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if row.Status != enums.CartStatusCheckedOut {
		t.Fatalf("status = %s, want %s", row.Status, enums.CartStatusCheckedOut)
	}

	if err := svc.AddItem(ctx, cartID, "P002", "Gadget", decimal.RequireFromString("1.00"), 1); err == nil {
		t.Fatal("expected error adding to checked-out cart")
	}
}

func TestCheckoutEmptyCartFails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	cartID, _ := svc.CreateCart(ctx, "user-1")
	_, err := svc.Checkout(ctx, cartID, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestExpireIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	cartID, _ := svc.CreateCart(ctx, "user-1")
	if err := svc.AddItem(ctx, cartID, "P001", "Widget", decimal.RequireFromString("1.00"), 3); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	released, err := svc.Expire(ctx, cartID, "timeout")
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if len(released) != 1 || released[0].ProductID != "P001" || released[0].Quantity != 3 {
		t.Fatalf("released = %+v", released)
	}

	again, err := svc.Expire(ctx, cartID, "timeout")
	if err != nil {
		t.Fatalf("second Expire must not error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second expire released %+v, want nothing", again)
	}

	row, err := svc.GetCart(ctx, cartID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if row.Status != enums.CartStatusExpired {
		t.Fatalf("status = %s, want %s", row.Status, enums.CartStatusExpired)
	}
}

func TestListUserCartsValidatesStatus(t *testing.T) {
	svc, _ := newTestService(t)

	bad := enums.CartStatus("NOPE")
	_, _, err := svc.ListUserCarts(context.Background(), "user-1", &bad, pagination.Params{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestListUserCarts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateCart(ctx, "user-1"); err != nil {
			t.Fatalf("CreateCart: %v", err)
		}
	}
	if _, err := svc.CreateCart(ctx, "user-2"); err != nil {
		t.Fatalf("CreateCart: %v", err)
	}

	rows, _, err := svc.ListUserCarts(ctx, "user-1", nil, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("ListUserCarts: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
}
