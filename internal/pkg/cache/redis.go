// Package cache provides the Redis connection backing the shared room document.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"voice-room/internal/config"
)

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Msg("Successfully connected to Redis")
	return rdb, nil
}

// Room document keys.
const (
	KeyRoomDoc     = "room:%s:doc"
	KeyRoomLocked  = "room:%s:locked"
	KeyRoomCharm   = "room:%s:charm"
	KeyRoomMods    = "room:%s:moderators"
	KeyRoomUpdates = "room:%s:updates"
)

// Key formats a room key.
func Key(format, roomID string) string {
	return fmt.Sprintf(format, roomID)
}
