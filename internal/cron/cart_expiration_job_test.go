package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
)

type fakeCartReader struct {
	rows   []models.CartProjection
	cutoff time.Time
	limit  int
}

func (f *fakeCartReader) ExpiredBefore(_ context.Context, cutoff time.Time, limit int) ([]models.CartProjection, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.rows, nil
}

type fakeExpirer struct {
	expired []uuid.UUID
	fail    map[uuid.UUID]error
}

func (f *fakeExpirer) ExpireCart(_ context.Context, cartID uuid.UUID, _ string) error {
	f.expired = append(f.expired, cartID)
	if f.fail != nil {
		return f.fail[cartID]
	}
	return nil
}

func TestCartExpirationJobSweepsBatch(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	rows := []models.CartProjection{
		{CartID: uuid.New()},
		{CartID: uuid.New()},
	}
	reader := &fakeCartReader{rows: rows}
	expirer := &fakeExpirer{}

	job, err := NewCartExpirationJob(CartExpirationJobParams{
		Logger:      logg,
		Projections: reader,
		Coordinator: expirer,
		Timeout:     15 * time.Minute,
		BatchSize:   50,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	fixed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	job.(*cartExpirationJob).now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	wantCutoff := fixed.Add(-15 * time.Minute)
	if !reader.cutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff = %s, want %s", reader.cutoff, wantCutoff)
	}
	if reader.limit != 50 {
		t.Fatalf("limit = %d, want 50", reader.limit)
	}
	if len(expirer.expired) != 2 {
		t.Fatalf("expired %d carts, want 2", len(expirer.expired))
	}
}

func TestCartExpirationJobContinuesPastFailures(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	failing := uuid.New()
	healthy := uuid.New()
	reader := &fakeCartReader{rows: []models.CartProjection{
		{CartID: failing},
		{CartID: healthy},
	}}
	expirer := &fakeExpirer{fail: map[uuid.UUID]error{failing: errors.New("boom")}}

	job, err := NewCartExpirationJob(CartExpirationJobParams{
		Logger:      logg,
		Projections: reader,
		Coordinator: expirer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if len(expirer.expired) != 2 {
		t.Fatalf("sweep stopped early: expired %d carts, want 2", len(expirer.expired))
	}
}

func TestCartExpirationJobEmptySweep(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job, err := NewCartExpirationJob(CartExpirationJobParams{
		Logger:      logg,
		Projections: &fakeCartReader{},
		Coordinator: &fakeExpirer{},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}
