package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"wallets", `
		CREATE TABLE IF NOT EXISTS host_agencies (
			id VARCHAR(64) PRIMARY KEY,
			agent_id BIGINT NOT NULL,
			total_production BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS wallets (
			id BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			avatar TEXT NOT NULL DEFAULT '',
			frame TEXT NOT NULL DEFAULT '',
			coins BIGINT NOT NULL DEFAULT 0,
			diamonds BIGINT NOT NULL DEFAULT 0,
			wealth BIGINT NOT NULL DEFAULT 0,
			charm BIGINT NOT NULL DEFAULT 0,
			host_production BIGINT NOT NULL DEFAULT 0,
			recharge_points BIGINT NOT NULL DEFAULT 0,
			is_host BOOLEAN NOT NULL DEFAULT FALSE,
			is_vip BOOLEAN NOT NULL DEFAULT FALSE,
			host_agency_id VARCHAR(64) REFERENCES host_agencies(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_wallets_wealth ON wallets(wealth DESC);
		CREATE INDEX IF NOT EXISTS idx_wallets_charm ON wallets(charm DESC);
	`},
	{"gift_events", `
		CREATE TABLE IF NOT EXISTS gift_events (
			id VARCHAR(64) PRIMARY KEY,
			room_id VARCHAR(64) NOT NULL,
			gift_id VARCHAR(64) NOT NULL,
			icon TEXT NOT NULL DEFAULT '',
			animation VARCHAR(32) NOT NULL DEFAULT '',
			sender_id BIGINT NOT NULL,
			sender_name VARCHAR(255) NOT NULL,
			recipient_ids BIGINT[] NOT NULL,
			quantity BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_gift_events_room_time ON gift_events(room_id, created_at DESC);
	`},
	{"chat_messages", `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id VARCHAR(64) PRIMARY KEY,
			room_id VARCHAR(64) NOT NULL,
			user_id BIGINT NOT NULL,
			user_name VARCHAR(255) NOT NULL,
			wealth_level INT NOT NULL DEFAULT 1,
			recharge_level INT NOT NULL DEFAULT 1,
			is_vip BOOLEAN NOT NULL DEFAULT FALSE,
			content TEXT NOT NULL,
			type VARCHAR(16) NOT NULL,
			is_lucky_win BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_room_time ON chat_messages(room_id, created_at DESC);
	`},
	{"announcements", `
		CREATE TABLE IF NOT EXISTS announcements (
			id VARCHAR(64) PRIMARY KEY,
			type VARCHAR(16) NOT NULL,
			sender_name VARCHAR(255) NOT NULL,
			recipient_names TEXT NOT NULL DEFAULT '',
			gift_name VARCHAR(255) NOT NULL DEFAULT '',
			gift_icon TEXT NOT NULL DEFAULT '',
			room_id VARCHAR(64) NOT NULL,
			room_title VARCHAR(255) NOT NULL DEFAULT '',
			amount BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_announcements_time ON announcements(created_at DESC);
	`},
	{"contributions", `
		CREATE TABLE IF NOT EXISTS contributions (
			room_id VARCHAR(64) NOT NULL,
			user_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			amount BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (room_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_contributions_room_amount ON contributions(room_id, amount DESC);
	`},
	{"lucky_bags", `
		CREATE TABLE IF NOT EXISTS lucky_bags (
			id VARCHAR(64) PRIMARY KEY,
			sender_id BIGINT NOT NULL,
			sender_name VARCHAR(255) NOT NULL,
			room_id VARCHAR(64) NOT NULL,
			total_amount BIGINT NOT NULL CHECK (total_amount > 0),
			remaining_amount BIGINT NOT NULL CHECK (remaining_amount >= 0),
			recipients_limit INT NOT NULL CHECK (recipients_limit > 0),
			claimed_by BIGINT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL,
			CHECK (cardinality(claimed_by) <= recipients_limit)
		);
		CREATE INDEX IF NOT EXISTS idx_lucky_bags_room_expires ON lucky_bags(room_id, expires_at);
	`},
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.name, err)
		}
		log.Info().Int("step", i+1).Str("migration", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
