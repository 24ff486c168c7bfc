package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/birthday-service/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration. An empty
// address yields a client-less wrapper and the day guard degrades to the
// record-level check alone.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("redis address not set, day guard disabled")
		return &Redis{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Configured reports whether a client was built.
func (r *Redis) Configured() bool {
	return r != nil && r.Client != nil
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

const dayGuardTTL = 48 * time.Hour

// ClaimCelebrationDay attempts to claim the (guild, user, day) celebration
// slot. It returns true when this caller is the first to claim the slot
// today, tightening the same-day check across concurrent triggers. Errors
// are returned so the caller can fall back to the record-level guard.
func (r *Redis) ClaimCelebrationDay(ctx context.Context, guildID, userID string, day time.Time) (bool, error) {
	if r == nil || r.Client == nil {
		return true, errors.New("redis client not configured")
	}
	key := fmt.Sprintf("celebrated:%s:%s:%s", guildID, userID, day.Format("2006-01-02"))
	return r.Client.SetNX(ctx, key, 1, dayGuardTTL).Result()
}
