// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"voice-room/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Economy   EconomyConfig   `mapstructure:"economy"`
	Combo     ComboConfig     `mapstructure:"combo"`
	LuckyBag  LuckyBagConfig  `mapstructure:"luckybag"`
	Room      RoomConfig      `mapstructure:"room"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the room document store connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// WalletConfig holds wallet defaults for newly seen users.
type WalletConfig struct {
	InitialCoins int64 `mapstructure:"initial_coins"`
}

// EconomyConfig holds gift pricing and payout tuning.
type EconomyConfig struct {
	LuckyGiftWinRate          float64                 `mapstructure:"lucky_gift_win_rate"`
	LuckyMultipliers          []model.LuckyMultiplier `mapstructure:"lucky_multipliers"`
	HostDiamondPercent        int64                   `mapstructure:"host_diamond_percent"`
	AgentCommissionPercent    int64                   `mapstructure:"agent_commission_percent"`
	LuckyWinAnnounceThreshold int64                   `mapstructure:"lucky_win_announce_threshold"`
	GiftAnnounceThreshold     int64                   `mapstructure:"gift_announce_threshold"`
	Gifts                     []model.Gift            `mapstructure:"gifts"`
}

// ComboConfig holds combo batching windows.
type ComboConfig struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	Expiry         time.Duration `mapstructure:"expiry"`
}

// LuckyBagConfig holds lucky bag configuration.
type LuckyBagConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RoomConfig holds room presentation and sync settings.
type RoomConfig struct {
	DefaultMicCount int           `mapstructure:"default_mic_count"`
	EmojiDuration   time.Duration `mapstructure:"emoji_duration"`
	Emojis          []string      `mapstructure:"emojis"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ChatHistory     int           `mapstructure:"chat_history"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, REDIS_ADDR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !model.ValidMicCount(cfg.Room.DefaultMicCount) {
		return nil, fmt.Errorf("invalid room.default_mic_count %d", cfg.Room.DefaultMicCount)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poll_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "voiceroom")
	v.SetDefault("database.name", "voiceroom")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("wallet.initial_coins", 10000)

	v.SetDefault("economy.lucky_gift_win_rate", 30)
	v.SetDefault("economy.host_diamond_percent", 70)
	v.SetDefault("economy.agent_commission_percent", 1)
	v.SetDefault("economy.lucky_win_announce_threshold", 100000)
	v.SetDefault("economy.gift_announce_threshold", 5000)

	v.SetDefault("combo.debounce_window", "1200ms")
	v.SetDefault("combo.expiry", "5s")

	v.SetDefault("luckybag.ttl", "5m")

	v.SetDefault("room.default_mic_count", model.DefaultMicCount)
	v.SetDefault("room.emoji_duration", "4s")
	v.SetDefault("room.write_timeout", "5s")
	v.SetDefault("room.chat_history", 20)
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.Admin.IDs, userID)
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	return slices.Contains(c.Whitelist.Chats, chatID)
}
