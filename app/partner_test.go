package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerdesk/ledgerdesk/adapters/clock"
	"github.com/ledgerdesk/ledgerdesk/adapters/memory"
	"github.com/ledgerdesk/ledgerdesk/domain/ratelimit"
	"github.com/rs/zerolog"
)

func newPartnerFixture(limit int) (*PartnerService, *mockPartnerClient, *clock.Fake) {
	fakeClock := clock.NewFake(testTime)
	client := &mockPartnerClient{body: []byte(`{"Nome":"Acme"}`)}
	cache := memory.NewPartnerCache(fakeClock)

	svc := NewPartnerService(
		client, cache, fakeClock,
		PartnerConfig{
			Budget: ratelimit.Config{Limit: limit, Window: time.Minute},
			TTL:    15 * time.Minute,
		},
		zerolog.Nop(),
	)
	return svc, client, fakeClock
}

func TestPartnerFetch_CachesResponse(t *testing.T) {
	svc, client, _ := newPartnerFixture(10)

	body, cached, err := svc.Fetch(context.Background(), "/Cliente/Lista")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if cached {
		t.Error("first fetch must hit upstream")
	}
	if !bytes.Equal(body, []byte(`{"Nome":"Acme"}`)) {
		t.Errorf("body = %s", body)
	}

	body, cached, err = svc.Fetch(context.Background(), "/Cliente/Lista")
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if !cached {
		t.Error("second fetch must come from cache")
	}
	if !bytes.Equal(body, []byte(`{"Nome":"Acme"}`)) {
		t.Errorf("cached body = %s", body)
	}
	if client.fetchCount() != 1 {
		t.Errorf("upstream calls = %d, want 1", client.fetchCount())
	}
}

func TestPartnerFetch_BudgetExhausted(t *testing.T) {
	svc, _, _ := newPartnerFixture(2)

	paths := []string{"/a", "/b", "/c"}
	var lastErr error
	for _, p := range paths {
		_, _, lastErr = svc.Fetch(context.Background(), p)
	}

	e, ok := IsBudgetExhausted(lastErr)
	if !ok {
		t.Fatalf("err = %v, want ErrBudgetExhausted", lastErr)
	}
	if e.RetryAfter <= 0 || e.RetryAfter > time.Minute {
		t.Errorf("retry after = %v, want within the window", e.RetryAfter)
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Throttled != 1 {
		t.Errorf("throttled = %d, want 1", stats.Throttled)
	}
}

func TestPartnerFetch_CacheHitBypassesBudget(t *testing.T) {
	svc, _, _ := newPartnerFixture(1)

	if _, _, err := svc.Fetch(context.Background(), "/a"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	// The budget is spent, but the cached path must still serve.
	if _, cached, err := svc.Fetch(context.Background(), "/a"); err != nil || !cached {
		t.Errorf("cached fetch: cached=%v err=%v", cached, err)
	}
	if _, _, err := svc.Fetch(context.Background(), "/b"); err == nil {
		t.Error("uncached fetch past the budget must fail")
	}
}

func TestPartnerFetch_BudgetResetsNextWindow(t *testing.T) {
	svc, _, fakeClock := newPartnerFixture(1)

	if _, _, err := svc.Fetch(context.Background(), "/a"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, _, err := svc.Fetch(context.Background(), "/b"); err == nil {
		t.Fatal("expected budget exhaustion")
	}

	fakeClock.Advance(2 * time.Minute)

	if _, _, err := svc.Fetch(context.Background(), "/b"); err != nil {
		t.Errorf("fetch after window reset: %v", err)
	}
}

func TestPartnerFetch_UpstreamError(t *testing.T) {
	svc, client, _ := newPartnerFixture(10)
	client.err = errors.New("upstream down")

	if _, _, err := svc.Fetch(context.Background(), "/a"); err == nil {
		t.Error("expected upstream error")
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("entries = %d, errors must not be cached", stats.Entries)
	}
}

func TestPartnerStatsAndClear(t *testing.T) {
	svc, _, _ := newPartnerFixture(10)

	svc.Fetch(context.Background(), "/a")
	svc.Fetch(context.Background(), "/a")
	svc.Fetch(context.Background(), "/b")

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("entries = %d, want 2", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("misses = %d, want 2", stats.Misses)
	}

	if err := svc.ClearCache(context.Background()); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	stats, _ = svc.Stats(context.Background())
	if stats.Entries != 0 {
		t.Errorf("entries after clear = %d, want 0", stats.Entries)
	}
}

func TestPartnerFetch_LimiterWaits(t *testing.T) {
	fakeClock := clock.NewFake(testTime)
	client := &mockPartnerClient{body: []byte(`{}`)}
	svc := NewPartnerService(
		client, memory.NewPartnerCache(fakeClock), fakeClock,
		PartnerConfig{RPS: 1000, Burst: 5},
		zerolog.Nop(),
	)

	for i := 0; i < 3; i++ {
		if _, _, err := svc.Fetch(context.Background(), "/a"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		svc.ClearCache(context.Background())
	}
	if client.fetchCount() != 3 {
		t.Errorf("upstream calls = %d, want 3", client.fetchCount())
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := svc.Fetch(cancelled, "/b"); err == nil {
		t.Error("cancelled context must abort the limiter wait")
	}
}

func TestPartnerSweep(t *testing.T) {
	svc, _, fakeClock := newPartnerFixture(10)

	svc.Fetch(context.Background(), "/a")
	fakeClock.Advance(20 * time.Minute)

	swept, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
}

func TestPartnerReconfigure_RaisesBudget(t *testing.T) {
	svc, _, _ := newPartnerFixture(1)

	if _, _, err := svc.Fetch(context.Background(), "/a"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, _, err := svc.Fetch(context.Background(), "/b"); err == nil {
		t.Fatal("second upstream call must exhaust a budget of 1")
	}

	svc.Reconfigure(PartnerConfig{
		Budget: ratelimit.Config{Limit: 10, Window: time.Minute},
		TTL:    time.Minute,
	})

	if _, _, err := svc.Fetch(context.Background(), "/b"); err != nil {
		t.Fatalf("Fetch after raising budget: %v", err)
	}
}
