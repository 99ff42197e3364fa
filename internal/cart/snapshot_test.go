package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestSnapshotSortsItems(t *testing.T) {
	agg := NewAggregate(uuid.New())
	if err := agg.Create("user-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := agg.AddItem("prod-b", "B", price("2.00"), 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := agg.AddItem("prod-a", "A", price("2.00"), 3); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	snap := Snapshot(agg)
	if len(snap.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(snap.Items))
	}
	if snap.Items[0].ProductID != "prod-a" {
		t.Fatalf("items not sorted: first is %s", snap.Items[0].ProductID)
	}
	if !snap.Items[0].TotalPrice.Equal(decimal.RequireFromString("6.00")) {
		t.Fatalf("total price = %s, want 6.00", snap.Items[0].TotalPrice)
	}
	if snap.ItemCount != 4 {
		t.Fatalf("item count = %d, want 4", snap.ItemCount)
	}
	if !snap.TotalAmount.Equal(decimal.RequireFromString("8.00")) {
		t.Fatalf("total = %s, want 8.00", snap.TotalAmount)
	}
}
