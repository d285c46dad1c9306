package utils

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Short-lived keys (codes, tokens, counters) live in Redis when configured and
// in this process-local map otherwise.

type memEntry struct {
	value     string
	expiresAt time.Time
}

var (
	memKV   = map[string]memEntry{}
	memKVMu sync.Mutex
	nowFunc = time.Now
)

const getDelScript = `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`

func redisCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

// memGet must be called with memKVMu held.
func memGet(key string) (memEntry, bool) {
	e, ok := memKV[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && !nowFunc().Before(e.expiresAt) {
		delete(memKV, key)
		return memEntry{}, false
	}
	return e, true
}

func kvSet(key, value string, ttl time.Duration) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := redisCtx()
		defer cancel()
		if err := rc.Set(ctx, key, value, ttl).Err(); err == nil {
			return
		}
	}
	memKVMu.Lock()
	memKV[key] = memEntry{value: value, expiresAt: nowFunc().Add(ttl)}
	memKVMu.Unlock()
}

func kvGet(key string) (string, bool) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := redisCtx()
		defer cancel()
		v, err := rc.Get(ctx, key).Result()
		if err == nil {
			return v, true
		}
		if err == redis.Nil {
			return "", false
		}
	}
	memKVMu.Lock()
	defer memKVMu.Unlock()
	e, ok := memGet(key)
	return e.value, ok
}

// kvTake returns the value and deletes it, so the key can be used once.
func kvTake(key string) (string, bool) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := redisCtx()
		defer cancel()
		// Prefer GETDEL (Redis >= 6.2)
		v, err := rc.GetDel(ctx, key).Result()
		if err == nil {
			return v, true
		}
		if err == redis.Nil {
			return "", false
		}
		// Fallback to Lua: GET then DEL atomically
		res, err := rc.Eval(ctx, getDelScript, []string{key}).Result()
		if err == nil {
			s, ok := res.(string)
			return s, ok
		}
	}
	memKVMu.Lock()
	defer memKVMu.Unlock()
	e, ok := memGet(key)
	if ok {
		delete(memKV, key)
	}
	return e.value, ok
}

func kvDel(key string) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := redisCtx()
		defer cancel()
		if err := rc.Del(ctx, key).Err(); err == nil {
			return
		}
	}
	memKVMu.Lock()
	delete(memKV, key)
	memKVMu.Unlock()
}

// kvSetNX sets key only if absent. Returns false while the key is alive.
func kvSetNX(key string, ttl time.Duration) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := redisCtx()
		defer cancel()
		ok, err := rc.SetNX(ctx, key, "1", ttl).Result()
		if err == nil {
			return ok
		}
	}
	memKVMu.Lock()
	defer memKVMu.Unlock()
	if _, ok := memGet(key); ok {
		return false
	}
	memKV[key] = memEntry{value: "1", expiresAt: nowFunc().Add(ttl)}
	return true
}

func kvExists(key string) bool {
	_, ok := kvGet(key)
	return ok
}

// kvIncr increments a counter; ttl is applied when the counter is created.
func kvIncr(key string, ttl time.Duration) int64 {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := redisCtx()
		defer cancel()
		n, err := rc.Incr(ctx, key).Result()
		if err == nil {
			if n == 1 {
				_ = rc.Expire(ctx, key, ttl).Err()
			}
			return n
		}
	}
	memKVMu.Lock()
	defer memKVMu.Unlock()
	e, ok := memGet(key)
	var n int64
	if ok {
		n, _ = strconv.ParseInt(e.value, 10, 64)
	} else {
		e.expiresAt = nowFunc().Add(ttl)
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	memKV[key] = e
	return n
}

func kvCount(key string) int64 {
	v, ok := kvGet(key)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
