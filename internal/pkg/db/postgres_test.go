package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-room/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "room",
		Password: "secret",
		Name:     "voiceroom",
		PoolSize: 20,
	}

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, int32(5), pc.MinConns)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "voiceroom", pc.ConnConfig.Database)
	assert.Equal(t, 10*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
}

func TestPoolConfigSmallPool(t *testing.T) {
	pc, err := PoolConfig(&config.DatabaseConfig{
		Host:           "localhost",
		Port:           5432,
		User:           "u",
		Name:           "d",
		PoolSize:       0,
		ConnectTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, 2*time.Second, pc.ConnConfig.ConnectTimeout)
}
