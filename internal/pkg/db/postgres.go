// Package db owns the PostgreSQL pool and schema for wallets, bags and the gift ledger.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"voice-room/internal/config"
)

// ErrSchemaMissing is returned by HealthCheck before migrations have run.
var ErrSchemaMissing = errors.New("wallet schema missing")

const healthCheckTimeout = 5 * time.Second

// Pool is the shared connection pool handed to every repository.
type Pool struct {
	*pgxpool.Pool
}

// PoolConfig turns the database section into pgxpool settings. A quarter of
// the pool is kept warm for bursts of gift commits.
func PoolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	size := max(cfg.PoolSize, 1)
	pc.MaxConns = int32(size)
	pc.MinConns = max(int32(size/4), 1)
	pc.ConnConfig.ConnectTimeout = orDefault(cfg.ConnectTimeout, 10*time.Second)
	pc.MaxConnLifetime = orDefault(cfg.MaxConnLifetime, time.Hour)
	pc.MaxConnIdleTime = orDefault(cfg.MaxConnIdleTime, 30*time.Minute)
	pc.HealthCheckPeriod = 30 * time.Second
	return pc, nil
}

// NewPool connects to PostgreSQL and verifies the connection.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", pc.MaxConns).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to PostgreSQL")
	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("PostgreSQL connection pool closed")
	}
}

// HealthCheck pings the database and checks that the wallet schema exists.
func (p *Pool) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var ready bool
	err := p.QueryRow(ctx, `SELECT to_regclass('public.wallets') IS NOT NULL`).Scan(&ready)
	if err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	if !ready {
		return ErrSchemaMissing
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
