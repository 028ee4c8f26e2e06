// Package redis implements the balance snapshot cache on Redis. The cache
// is a read-side convenience only: admission decisions never consult it, and
// every committed movement invalidates the snapshots it touched.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ferrobank/ferro/internal/balance"
	"github.com/ferrobank/ferro/pkg/logger"
)

const (
	// DefaultTTL bounds how stale a snapshot can get if an invalidation is
	// lost.
	DefaultTTL = 30 * time.Second

	// KeyPrefix is the prefix for balance snapshot keys
	KeyPrefix = "balance:"
)

// Cache is a Redis-backed balance snapshot cache
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewCache creates a new snapshot cache with the default TTL
func NewCache(client *redis.Client, log *logger.Logger) *Cache {
	return NewCacheWithTTL(client, DefaultTTL, log)
}

// NewCacheWithTTL creates a new snapshot cache with a custom TTL
func NewCacheWithTTL(client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "cache"),
	}
}

// Ping checks connectivity to the Redis server
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// cachedSnapshot is the wire form of a snapshot. Decimals travel as strings
// so no precision is lost in JSON.
type cachedSnapshot struct {
	UserID        int64     `json:"user_id"`
	Available     string    `json:"available"`
	Held          string    `json:"held"`
	PostedCredits string    `json:"posted_credits"`
	PostedDebits  string    `json:"posted_debits"`
	HeldIncoming  string    `json:"held_incoming"`
	HeldOutgoing  string    `json:"held_outgoing"`
	AsOf          time.Time `json:"as_of"`
}

// GetSnapshot retrieves a cached snapshot. A miss is (nil, nil).
func (c *Cache) GetSnapshot(ctx context.Context, userID int64) (*balance.Snapshot, error) {
	key := snapshotKey(userID)

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.logger.Debug("cache miss", "user_id", userID)
		return nil, nil
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get cached snapshot: %w", err)
	}

	var cached cachedSnapshot
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached snapshot: %w", err)
	}

	snapshot, err := cached.toSnapshot()
	if err != nil {
		return nil, err
	}

	c.logger.Debug("cache hit", "user_id", userID)
	return snapshot, nil
}

// SetSnapshot stores a snapshot under the cache TTL
func (c *Cache) SetSnapshot(ctx context.Context, snapshot *balance.Snapshot) error {
	key := snapshotKey(snapshot.UserID)

	cached := cachedSnapshot{
		UserID:        snapshot.UserID,
		Available:     snapshot.Available.String(),
		Held:          snapshot.Held.String(),
		PostedCredits: snapshot.Breakdown.PostedCredits.String(),
		PostedDebits:  snapshot.Breakdown.PostedDebits.String(),
		HeldIncoming:  snapshot.Breakdown.HeldIncoming.String(),
		HeldOutgoing:  snapshot.Breakdown.HeldOutgoing.String(),
		AsOf:          snapshot.AsOf,
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "user_id", snapshot.UserID, "error", err)
		return fmt.Errorf("failed to set cached snapshot: %w", err)
	}

	return nil
}

// Invalidate drops the snapshots of the given users
func (c *Cache) Invalidate(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = snapshotKey(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("cache error", "operation", "invalidate", "user_ids", userIDs, "error", err)
		return fmt.Errorf("failed to invalidate snapshots: %w", err)
	}

	return nil
}

// Clear removes every cached snapshot
func (c *Cache) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s*", KeyPrefix)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()

	pipe := c.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++
		if count >= 100 {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			pipe = c.client.Pipeline()
			count = 0
		}
	}

	if count > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}

	return iter.Err()
}

func (cs *cachedSnapshot) toSnapshot() (*balance.Snapshot, error) {
	snapshot := &balance.Snapshot{UserID: cs.UserID, AsOf: cs.AsOf}

	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{cs.Available, &snapshot.Available},
		{cs.Held, &snapshot.Held},
		{cs.PostedCredits, &snapshot.Breakdown.PostedCredits},
		{cs.PostedDebits, &snapshot.Breakdown.PostedDebits},
		{cs.HeldIncoming, &snapshot.Breakdown.HeldIncoming},
		{cs.HeldOutgoing, &snapshot.Breakdown.HeldOutgoing},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cached snapshot amount %q: %w", f.raw, err)
		}
		*f.dst = d
	}

	return snapshot, nil
}

func snapshotKey(userID int64) string {
	return fmt.Sprintf("%s%d", KeyPrefix, userID)
}
