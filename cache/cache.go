// Package cache holds the redis-backed duration cache. A nil client turns
// every operation into a no-op so the API keeps working without redis.
package cache

import (
	"context"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/Hommy-master/capcut-mate-data/utils"
)

const keyPrefix = "capcut:duration:"

// DefaultTTL is how long probed durations stay cached. Source media behind
// a URL rarely changes, so a day is a safe horizon.
const DefaultTTL = 24 * time.Hour

// DurationCache memoizes probed media durations keyed by source URL.
type DurationCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDurationCache wraps rdb; a nil rdb disables caching.
func NewDurationCache(rdb *redis.Client, ttl time.Duration) *DurationCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DurationCache{rdb: rdb, ttl: ttl}
}

// Key returns the redis key for a source URL. URLs are hashed so arbitrary
// length and characters never leak into the keyspace.
func Key(url string) string {
	sum := blake2b.Sum256([]byte(url))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get looks up a cached duration in microseconds. The second result is false
// on miss, on redis errors, and when caching is disabled.
func (c *DurationCache) Get(ctx context.Context, url string) (int64, bool) {
	if c == nil || c.rdb == nil {
		return 0, false
	}
	val, err := c.rdb.Get(ctx, Key(url)).Result()
	if err != nil {
		if err != redis.Nil {
			utils.LogError("Duration cache read failed", err)
		}
		return 0, false
	}
	duration, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		utils.LogError("Duration cache entry malformed", err, "value", val)
		return 0, false
	}
	return duration, true
}

// Set stores a probed duration. Errors are logged and swallowed; the cache
// never fails a request.
func (c *DurationCache) Set(ctx context.Context, url string, duration int64) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, Key(url), strconv.FormatInt(duration, 10), c.ttl).Err(); err != nil {
		utils.LogError("Duration cache write failed", err)
	}
}
