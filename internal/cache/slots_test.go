package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*SlotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zerolog.Nop()
	return NewSlotCache(client, ttl, &logger), mr
}

func TestSlotCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, 1, "2024-01-01")
	assert.False(t, ok)

	c.Set(ctx, 1, "2024-01-01", []string{"09:00", "09:30"})
	got, ok := c.Get(ctx, 1, "2024-01-01")
	require.True(t, ok)
	assert.Equal(t, []string{"09:00", "09:30"}, got)

	// An empty day is cached as an empty list, not a miss.
	c.Set(ctx, 1, "2024-01-02", nil)
	got, ok = c.Get(ctx, 1, "2024-01-02")
	require.True(t, ok)
	assert.Empty(t, got)

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, 1, "2024-01-01")
	assert.False(t, ok)
}

func TestSlotCache_Invalidate(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, 1, "2024-01-01", []string{"09:00"})
	c.Set(ctx, 1, "2024-01-02", []string{"10:00"})
	c.Set(ctx, 2, "2024-01-01", []string{"11:00"})

	c.InvalidateDate(ctx, 1, "2024-01-01")
	assert.False(t, mr.Exists("slots:1:2024-01-01"))
	assert.True(t, mr.Exists("slots:1:2024-01-02"))

	c.InvalidateProvider(ctx, 1)
	assert.False(t, mr.Exists("slots:1:2024-01-02"))
	assert.True(t, mr.Exists("slots:2:2024-01-01"))

	// Nothing left to delete is fine.
	c.InvalidateProvider(ctx, 1)
}

func TestSlotCache_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	require.NoError(t, mr.Set("slots:1:2024-01-01", "not json"))

	_, ok := c.Get(context.Background(), 1, "2024-01-01")
	assert.False(t, ok)
}

func TestSlotCache_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	for name, c := range map[string]*SlotCache{
		"nil client": NewSlotCache(nil, time.Minute, &logger),
		"zero ttl":   NewSlotCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), 0, &logger),
		"nil cache":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			c.Set(ctx, 1, "2024-01-01", []string{"09:00"})
			_, ok := c.Get(ctx, 1, "2024-01-01")
			assert.False(t, ok)
			c.InvalidateDate(ctx, 1, "2024-01-01")
			c.InvalidateProvider(ctx, 1)
		})
	}
}

func TestSlotCache_RedisDownIsMiss(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.Set(ctx, 1, "2024-01-01", []string{"09:00"})
	_, ok := c.Get(ctx, 1, "2024-01-01")
	assert.False(t, ok)
}
