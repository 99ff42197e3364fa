package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBusMetricsCountsPublishedEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewBusMetrics(reg)

	metrics.IncPublished("cart", "cart.created")
	metrics.IncPublished("cart", "cart.created")
	metrics.IncPublished("product", "product.stock_reserved")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "events_published_total", "event_type", "cart.created"); err != nil {
		t.Fatalf("fetch cart.created: %v", err)
	} else if got != 2 {
		t.Fatalf("expected cart.created=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "events_published_total", "aggregate_type", "product"); err != nil {
		t.Fatalf("fetch product counter: %v", err)
	} else if got != 1 {
		t.Fatalf("expected product=1, got %f", got)
	}
}

func TestBusMetricsNilSafe(t *testing.T) {
	var metrics *BusMetrics
	metrics.IncPublished("cart", "cart.created")

	NewBusMetrics(nil).IncPublished("cart", "cart.created")
}
