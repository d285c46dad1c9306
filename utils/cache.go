package utils

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Default cache ttl of one hour
const defaultCacheTTL = time.Hour

// Response cache keys
const (
	CachePostsPrefix = "cache:posts:"
	CacheStatsKey    = "cache:stats"
)

// PostListCacheKey names one cached list page of a content kind.
func PostListCacheKey(kind string, page, size int) string {
	return CachePostsPrefix + kind + ":page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(size)
}

// InvalidatePostLists drops the cached list pages of kind, or of every kind
// when kind is empty (author names are rendered into every list).
func InvalidatePostLists(kind string) {
	if kind == "" {
		InvalidateByPrefix(CachePostsPrefix)
		return
	}
	InvalidateByPrefix(CachePostsPrefix + kind + ":")
}

// CacheGetJSON loads a cached value into out. Caching is Redis-only.
func CacheGetJSON(key string, out interface{}) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := redisCtx()
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		return false
	}
	return json.Unmarshal(b, out) == nil
}

// CacheSetJSON marshals v and stores it with ttl (default one hour).
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := redisCtx()
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func InvalidateByPrefix(prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // bounded rounds
		keys, cur, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			break
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			break
		}
	}
}
