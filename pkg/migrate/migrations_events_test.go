package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestCartEventsMigrationContainsConcurrencyGuard(t *testing.T) {
	content := readMigration(t, "*_create_cart_events.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS cart_events",
		"aggregate_id UUID NOT NULL",
		"CHECK (aggregate_version > 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_cart_events_aggregate_version",
		"ON cart_events (aggregate_id, aggregate_version)",
		"DROP TABLE IF EXISTS cart_events",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProductEventsMigrationContainsConcurrencyGuard(t *testing.T) {
	content := readMigration(t, "*_create_product_events.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS product_events",
		"aggregate_id TEXT NOT NULL",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_product_events_aggregate_version",
		"ON product_events (aggregate_id, aggregate_version)",
		"DROP TABLE IF EXISTS product_events",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProjectionMigrationsContainIndexes(t *testing.T) {
	carts := readMigration(t, "*_create_cart_projections.sql")
	cartChecks := []string{
		"CREATE TABLE IF NOT EXISTS cart_projections",
		"ix_cart_projections_user_status",
		"ix_cart_projections_status_activity",
		"ON cart_projections (status, last_activity)",
		"DROP TABLE IF EXISTS cart_projections",
	}
	for _, sub := range cartChecks {
		if !strings.Contains(carts, sub) {
			t.Errorf("cart projections migration missing %q", sub)
		}
	}

	products := readMigration(t, "*_create_product_projections.sql")
	productChecks := []string{
		"CREATE TABLE IF NOT EXISTS product_projections",
		"CHECK (reserved_stock >= 0)",
		"ix_product_projections_available",
		"DROP TABLE IF EXISTS product_projections",
	}
	for _, sub := range productChecks {
		if !strings.Contains(products, sub) {
			t.Errorf("product projections migration missing %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	entries, err := os.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	if len(entries) < 4 {
		t.Fatalf("expected at least 4 migrations, got %d", len(entries))
	}
}
