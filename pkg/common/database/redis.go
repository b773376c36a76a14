package database

import (
	"context"
	"fmt"
	"time"

	"github.com/atlas-maps/platform/pkg/common/config"
	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// NewRedis builds the client used to cache external place lookups. A dead
// Redis is logged but tolerated: callers treat cache misses and cache errors
// the same way.
func NewRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).Warn("Redis unavailable, places cache disabled")
	} else {
		logger.Log.Info("Connected to Redis")
	}

	return client
}
