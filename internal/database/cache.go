package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// Cache key prefixes
	CacheKeyNotificationSetting = "opsledger:notification_setting"
	CacheKeyUpcomingRenewals    = "opsledger:renewals:upcoming:"

	// Cache TTLs
	CacheTTLSettings = 5 * time.Minute
	CacheTTLRenewals = 10 * time.Minute
)

// local backs the cache helpers when Redis is not configured. Entries
// expire after the longest TTL in use.
var local = expirable.NewLRU[string, []byte](1024, nil, CacheTTLRenewals)

// UpcomingRenewalsKey keys the dashboard list for a day and window.
func UpcomingRenewalsKey(day string, windowDays int) string {
	return fmt.Sprintf("%s%s:%d", CacheKeyUpcomingRenewals, day, windowDays)
}

// CacheGet retrieves a value from the cache and unmarshals it into dest.
func CacheGet(key string, dest interface{}) error {
	var data []byte
	if Redis != nil {
		b, err := Redis.Get(context.Background(), key).Bytes()
		if err != nil {
			return err
		}
		data = b
	} else {
		b, ok := local.Get(key)
		if !ok {
			return fmt.Errorf("cache miss: %s", key)
		}
		data = b
	}
	return json.Unmarshal(data, dest)
}

// CacheSet stores a value with TTL. The in-process cache applies its own
// fixed TTL.
func CacheSet(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if Redis != nil {
		return Redis.Set(context.Background(), key, data, ttl).Err()
	}
	local.Add(key, data)
	return nil
}

// CacheDelete removes keys.
func CacheDelete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if Redis != nil {
		return Redis.Del(context.Background(), keys...).Err()
	}
	for _, k := range keys {
		local.Remove(k)
	}
	return nil
}

// CacheDeletePrefix deletes all keys starting with prefix.
func CacheDeletePrefix(prefix string) error {
	if Redis == nil {
		for _, k := range local.Keys() {
			if strings.HasPrefix(k, prefix) {
				local.Remove(k)
			}
		}
		return nil
	}
	ctx := context.Background()
	iter := Redis.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return Redis.Del(ctx, keys...).Err()
	}
	return nil
}

// InvalidateRenewalsCache clears every cached upcoming-renewals list.
func InvalidateRenewalsCache() {
	if err := CacheDeletePrefix(CacheKeyUpcomingRenewals); err != nil {
		glog.Warningf("Cache: failed to invalidate upcoming renewals: %v", err)
	}
}

// InvalidateNotificationSettingCache clears the settings row cache.
func InvalidateNotificationSettingCache() {
	if err := CacheDelete(CacheKeyNotificationSetting); err != nil {
		glog.Warningf("Cache: failed to invalidate notification setting: %v", err)
	}
}

const tokenBlacklistPrefix = "opsledger:token:revoked:"

// revoked holds logged-out tokens and their expiry when Redis is not
// configured. It is unbounded; expired entries are pruned on each logout.
var revoked = expirable.NewLRU[string, time.Time](0, nil, 0)

// BlacklistToken revokes a token until it would have expired anyway.
func BlacklistToken(token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if Redis == nil {
		now := time.Now()
		for _, k := range revoked.Keys() {
			if exp, ok := revoked.Peek(k); ok && !now.Before(exp) {
				revoked.Remove(k)
			}
		}
		revoked.Add(token, now.Add(ttl))
		return nil
	}
	return Redis.Set(context.Background(), tokenBlacklistPrefix+token, 1, ttl).Err()
}

// IsTokenBlacklisted reports whether token was revoked by a logout.
func IsTokenBlacklisted(token string) bool {
	if Redis == nil {
		exp, ok := revoked.Peek(token)
		return ok && time.Now().Before(exp)
	}
	n, err := Redis.Exists(context.Background(), tokenBlacklistPrefix+token).Result()
	return err == nil && n > 0
}
