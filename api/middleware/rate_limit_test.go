package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type fakeLimiterStore struct {
	counts map[string]int64
	err    error
}

func newFakeLimiterStore() *fakeLimiterStore {
	return &fakeLimiterStore{counts: make(map[string]int64)}
}

func (f *fakeLimiterStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func rateLimitRouter(policy RateLimitPolicy, store *fakeLimiterStore, hits *int) http.Handler {
	r := chi.NewRouter()
	r.Use(RateLimit(policy, store, nil))
	r.Get("/api/v1/products", func(w http.ResponseWriter, _ *http.Request) {
		*hits++
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestRateLimitBlocksOverBudget(t *testing.T) {
	store := newFakeLimiterStore()
	hits := 0
	router := rateLimitRouter(NewRateLimitPolicy(2, time.Minute), store, &hits)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.RemoteAddr = "10.1.2.3:50000"
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.RemoteAddr = "10.1.2.3:50000"
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Success {
		t.Fatalf("expected success false")
	}
	if body.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("unexpected error code %s", body.Error.Code)
	}
	if hits != 2 {
		t.Fatalf("handler should have run twice, got %d", hits)
	}
}

func TestRateLimitBudgetsPerClient(t *testing.T) {
	store := newFakeLimiterStore()
	hits := 0
	router := rateLimitRouter(NewRateLimitPolicy(1, time.Minute), store, &hits)

	for _, ip := range []string{"203.0.113.7", "203.0.113.8"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("first request from %s should pass, got %d", ip, rec.Code)
		}
	}
	if hits != 2 {
		t.Fatalf("each client gets its own window, got %d hits", hits)
	}
	if store.counts["ip:203.0.113.7"] != 1 || store.counts["ip:203.0.113.8"] != 1 {
		t.Fatalf("unexpected counters %v", store.counts)
	}
}

func TestRateLimitFailsOpenOnStoreError(t *testing.T) {
	store := newFakeLimiterStore()
	store.err = errors.New("redis down")
	hits := 0
	router := rateLimitRouter(NewRateLimitPolicy(1, time.Minute), store, &hits)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.RemoteAddr = "10.1.2.3:50000"
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("limiter errors must not block traffic, got %d", rec.Code)
		}
	}
	if hits != 3 {
		t.Fatalf("expected all requests served, got %d", hits)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeLimiterStore()
	hits := 0
	router := rateLimitRouter(RateLimitPolicy{}, store, &hits)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.RemoteAddr = "10.1.2.3:50000"
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled policy should pass everything, got %d", rec.Code)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("store should never be consulted when disabled")
	}
}
