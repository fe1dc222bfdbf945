package configs

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when addr is empty or the server does not answer,
// callers treat a nil client as "cache disabled".
func ConnectRedis(addr string) *redis.Client {
	if addr == "" {
		log.Println("[REDIS] REDIS_ADDR is not set, token revocation cache disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Printf("[REDIS] ping %s failed: %v", addr, err)
		_ = rdb.Close()
		return nil
	}

	log.Printf("[REDIS] connected to %s", addr)
	return rdb
}
