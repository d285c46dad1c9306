package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/eduboard/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
	redisMu     sync.RWMutex
)

// GetRedis returns the shared Redis client, or nil when redis.host is not configured.
// Every caller keeps an in-memory fallback for the nil case.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Get()
		if cfg.RedisHost == "" {
			return
		}
		cli := redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cli.Ping(ctx).Err(); err != nil {
			Sugar.Warnf("redis ping failed, continuing with lazy reconnect: %v", err)
		}
		redisMu.Lock()
		redisClient = cli
		redisMu.Unlock()
	})
	redisMu.RLock()
	defer redisMu.RUnlock()
	return redisClient
}

// SetRedis overrides the shared client; nil switches every caller to memory.
func SetRedis(cli *redis.Client) {
	redisOnce.Do(func() {})
	redisMu.Lock()
	redisClient = cli
	redisMu.Unlock()
}

// CloseRedis releases the shared client, if one was opened.
func CloseRedis(context.Context) error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisClient == nil {
		return nil
	}
	err := redisClient.Close()
	redisClient = nil
	return err
}
