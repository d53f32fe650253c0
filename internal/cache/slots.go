// Package cache keeps short-lived copies of generated slot lists in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dentaldesk/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SlotCache stores generated slots per provider and date. A nil client or a
// non-positive TTL turns every call into a no-op miss.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewSlotCache(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *SlotCache {
	return &SlotCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "slot_cache").Logger(),
	}
}

func (c *SlotCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func slotKey(providerID int64, date string) string {
	return fmt.Sprintf("slots:%d:%s", providerID, date)
}

// Get returns the cached slots for providerID on date (YYYY-MM-DD).
func (c *SlotCache) Get(ctx context.Context, providerID int64, date string) ([]string, bool) {
	if !c.enabled() {
		return nil, false
	}

	val, err := c.client.Get(ctx, slotKey(providerID, date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Int64("provider_id", providerID).Str("date", date).Msg("slot cache read failed")
		}
		metrics.IncSlotCache(false)
		return nil, false
	}

	var out []string
	if err := json.Unmarshal(val, &out); err != nil {
		c.logger.Warn().Err(err).Str("key", slotKey(providerID, date)).Msg("slot cache entry corrupt")
		metrics.IncSlotCache(false)
		return nil, false
	}
	metrics.IncSlotCache(true)
	return out, true
}

func (c *SlotCache) Set(ctx context.Context, providerID int64, date string, slots []string) {
	if !c.enabled() {
		return
	}
	if slots == nil {
		slots = []string{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, slotKey(providerID, date), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("provider_id", providerID).Str("date", date).Msg("slot cache write failed")
	}
}

// InvalidateDate drops the entry for one provider and date.
func (c *SlotCache) InvalidateDate(ctx context.Context, providerID int64, date string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, slotKey(providerID, date)).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("provider_id", providerID).Str("date", date).Msg("slot cache invalidate failed")
	}
}

// InvalidateProvider drops every cached date of a provider.
func (c *SlotCache) InvalidateProvider(ctx context.Context, providerID int64) {
	if !c.enabled() {
		return
	}

	pattern := fmt.Sprintf("slots:%d:*", providerID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Int64("provider_id", providerID).Msg("slot cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("provider_id", providerID).Msg("slot cache invalidate failed")
	}
}
