package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/ledgerdesk/ledgerdesk/adapters/clock"
	"github.com/ledgerdesk/ledgerdesk/adapters/memory"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestPartnerCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := memory.NewPartnerCache(clock.NewFake(baseTime))

	if _, ok := c.Get(ctx, "GET /invoice/1"); ok {
		t.Error("expected miss on empty cache")
	}

	if err := c.Set(ctx, "GET /invoice/1", []byte(`{"id":1}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	body, ok := c.Get(ctx, "GET /invoice/1")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(body) != `{"id":1}` {
		t.Errorf("body = %s", body)
	}
}

func TestPartnerCache_ExpiresLazily(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(baseTime)
	c := memory.NewPartnerCache(fake)

	c.Set(ctx, "k", []byte("v"), time.Minute)
	fake.Advance(2 * time.Minute)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}

	stats, _ := c.Stats(ctx)
	if stats.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", stats.Evictions)
	}
	if stats.Entries != 0 {
		t.Errorf("entries = %d, want 0", stats.Entries)
	}
}

func TestPartnerCache_Sweep(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(baseTime)
	c := memory.NewPartnerCache(fake)

	c.Set(ctx, "fresh", []byte("a"), time.Hour)
	c.Set(ctx, "stale1", []byte("b"), time.Minute)
	c.Set(ctx, "stale2", []byte("c"), time.Minute)
	c.Set(ctx, "forever", []byte("d"), 0)

	removed, err := c.Sweep(ctx, baseTime.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	stats, _ := c.Stats(ctx)
	if stats.Entries != 2 {
		t.Errorf("entries = %d, want 2", stats.Entries)
	}
}

func TestPartnerCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := memory.NewPartnerCache(clock.NewFake(baseTime))

	c.Set(ctx, "a", []byte("1"), time.Hour)
	c.Set(ctx, "b", []byte("2"), time.Hour)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	stats, _ := c.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("entries = %d, want 0", stats.Entries)
	}
}

func TestPartnerCache_Stats(t *testing.T) {
	ctx := context.Background()
	c := memory.NewPartnerCache(clock.NewFake(baseTime))

	c.Set(ctx, "a", []byte("1"), time.Hour)
	c.Get(ctx, "a")
	c.Get(ctx, "a")
	c.Get(ctx, "nope")

	stats, _ := c.Stats(ctx)
	if stats.Hits != 2 {
		t.Errorf("hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
	if stats.Entries != 1 {
		t.Errorf("entries = %d, want 1", stats.Entries)
	}
}
