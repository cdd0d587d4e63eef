package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New(nil, DefaultTTL)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	c.Set(ctx, "k1", payload{Name: "a", Count: 3})

	var got payload
	assert.True(t, c.Get(ctx, "k1", &got))
	assert.Equal(t, payload{Name: "a", Count: 3}, got)
}

func TestExpiryLazyEviction(t *testing.T) {
	c := New(nil, DefaultTTL)
	ctx := context.Background()

	c.SetWithTTL(ctx, "k1", "value", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	var got string
	assert.False(t, c.Get(ctx, "k1", &got))
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestHitMissCounters(t *testing.T) {
	c := New(nil, DefaultTTL)
	ctx := context.Background()

	c.Set(ctx, "k1", "value")

	var got string
	c.Get(ctx, "k1", &got)
	c.Get(ctx, "k1", &got)
	c.Get(ctx, "absent", &got)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
}

func TestDeletePrefix(t *testing.T) {
	c := New(nil, DefaultTTL)
	ctx := context.Background()

	c.Set(ctx, "invoices:m1:list:1", "a")
	c.Set(ctx, "invoices:m1:list:2", "b")
	c.Set(ctx, "invoices:m2:list:1", "c")

	c.DeletePrefix(ctx, "invoices:m1:")

	var got string
	assert.False(t, c.Get(ctx, "invoices:m1:list:1", &got))
	assert.False(t, c.Get(ctx, "invoices:m1:list:2", &got))
	assert.True(t, c.Get(ctx, "invoices:m2:list:1", &got))
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c := New(nil, DefaultTTL)
	ctx := context.Background()

	c.SetWithTTL(ctx, "stale", "v", time.Nanosecond)
	time.Sleep(time.Millisecond)

	// Trigger a sweep by crossing the insertion threshold
	for i := 0; i < sweepEvery; i++ {
		c.Set(ctx, fmt.Sprintf("fresh:%d", i), i)
	}

	c.mu.RLock()
	_, present := c.items["stale"]
	c.mu.RUnlock()
	assert.False(t, present)
}
