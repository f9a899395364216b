// Package main is the entry point for the voice room bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voice-room/internal/bot"
	"voice-room/internal/catalog"
	"voice-room/internal/config"
	"voice-room/internal/pkg/async"
	"voice-room/internal/pkg/cache"
	"voice-room/internal/pkg/db"
	"voice-room/internal/repository"
	"voice-room/internal/roomstate"
	"voice-room/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	if err := dbPool.HealthCheck(ctx); err != nil {
		log.Fatal().Err(err).Msg("Database health check failed")
	}

	// Initialize the shared room document store
	rdb, err := cache.NewRedis(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer rdb.Close()
	roomStore := roomstate.NewRedisStore(rdb)

	// Initialize repositories
	walletRepo := repository.NewWalletRepository(dbPool.Pool)
	agencyRepo := repository.NewAgencyRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	bagRepo := repository.NewBagRepository(dbPool.Pool)

	// Telegram API and the presenter that renders room events into chats
	api, err := bot.NewAPI(&cfg.Bot)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}
	presenter := bot.NewPresenter(api)
	go presenter.Run(ctx)

	cat := catalog.FromConfig(cfg)
	writer := async.NewWriter(ctx, cfg.Room.WriteTimeout)

	// Initialize services
	sessions := service.NewSessionManager(roomStore, writer, presenter, cfg.Room.EmojiDuration)
	accountService := service.NewAccountService(walletRepo, agencyRepo, sessions, cfg.Wallet.InitialCoins)
	roomService := service.NewRoomService(roomStore, ledgerRepo, cfg.Room.DefaultMicCount, cfg.Room.ChatHistory)
	giftService := service.NewGiftService(walletRepo, ledgerRepo, roomStore, cat, sessions, writer, presenter, &cfg.Economy)
	comboBatcher := service.NewComboBatcher(giftService, presenter, &cfg.Combo)
	luckyBagService := service.NewLuckyBagService(bagRepo, walletRepo, sessions, presenter, cfg.LuckyBag.TTL)
	rankingService := service.NewRankingService(walletRepo, ledgerRepo)

	log.Info().
		Int("gift_count", len(cat.Gifts())).
		Float64("lucky_win_rate", cat.Settings().LuckyGiftWinRate).
		Dur("combo_debounce", cfg.Combo.DebounceWindow).
		Msg("Gift catalog loaded")

	// Create bot dependencies
	deps := &bot.Dependencies{
		Config:          cfg,
		Catalog:         cat,
		Presenter:       presenter,
		AccountService:  accountService,
		RoomService:     roomService,
		GiftService:     giftService,
		ComboBatcher:    comboBatcher,
		LuckyBagService: luckyBagService,
		RankingService:  rankingService,
	}

	telegramBot, err := bot.New(api, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown: stop intake, commit open combos, drain writes
	telegramBot.Stop()
	comboBatcher.Flush()
	writer.Wait()
	sessions.Close()

	log.Info().Msg("Bot stopped gracefully")
}
