// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"voice-room/internal/catalog"
	"voice-room/internal/config"
	"voice-room/internal/handler"
	"voice-room/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	members *MemberCache

	// Handlers
	accountHandler *handler.AccountHandler
	adminHandler   *handler.AdminHandler
	roomHandler    *handler.RoomHandler
	giftHandler    *handler.GiftHandler
	bagHandler     *handler.BagHandler
	rankingHandler *handler.RankingHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config          *config.Config
	Catalog         *catalog.Catalog
	Presenter       *Presenter
	AccountService  *service.AccountService
	RoomService     *service.RoomService
	GiftService     *service.GiftService
	ComboBatcher    *service.ComboBatcher
	LuckyBagService *service.LuckyBagService
	RankingService  *service.RankingService
}

// NewAPI connects to Telegram. The returned bot is shared by the presenter
// and New.
func NewAPI(cfg *config.BotConfig) (*tele.Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// New creates a new Bot instance with the given dependencies.
func New(api *tele.Bot, deps *Dependencies) (*Bot, error) {
	if api == nil {
		return nil, fmt.Errorf("telegram api is required")
	}

	b := &Bot{
		bot:     api,
		cfg:     deps.Config,
		members: NewMemberCache(),
	}

	// Initialize handlers
	b.accountHandler = handler.NewAccountHandler(deps.AccountService)
	b.adminHandler = handler.NewAdminHandler(deps.AccountService)
	b.roomHandler = handler.NewRoomHandler(deps.Config, deps.AccountService, deps.RoomService, deps.Catalog, deps.Presenter)
	b.giftHandler = handler.NewGiftHandler(deps.Config, deps.AccountService, deps.GiftService, deps.ComboBatcher, deps.Catalog)
	b.bagHandler = handler.NewBagHandler(deps.Config, deps.AccountService, deps.LuckyBagService)
	b.rankingHandler = handler.NewRankingHandler(deps.RankingService, deps.RoomService)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.members))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Account handlers
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/wallet", b.accountHandler.HandleWallet)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/recharge", b.adminHandler.HandleRecharge)
	adminGroup.Handle("/sethost", b.adminHandler.HandleSetHost)
	adminGroup.Handle("/agency", b.adminHandler.HandleAgency)

	// Room handlers, only meaningful inside a room chat
	room := b.bot.Group()
	room.Use(GroupOnlyMiddleware())
	room.Handle("/room", b.roomHandler.HandleRoom)
	room.Handle("/board", b.roomHandler.HandleBoard)
	room.Handle("/seat", b.roomHandler.HandleSeat)
	room.Handle("/down", b.roomHandler.HandleLeaveSeat)
	room.Handle("/exit", b.roomHandler.HandleExit)
	room.Handle("/mute", b.roomHandler.HandleMute(true))
	room.Handle("/unmute", b.roomHandler.HandleMute(false))
	room.Handle("/lock", b.roomHandler.HandleLockSeat(true))
	room.Handle("/unlock", b.roomHandler.HandleLockSeat(false))
	room.Handle("/micslock", b.roomHandler.HandleMicsLock)
	room.Handle("/layout", b.roomHandler.HandleLayout)
	room.Handle("/resetcharm", b.roomHandler.HandleResetCharm)
	room.Handle("/emoji", b.roomHandler.HandleEmoji)
	room.Handle("/say", b.roomHandler.HandleSay)
	room.Handle("/chat", b.roomHandler.HandleChat)
	room.Handle("/mod", b.roomHandler.HandleMod)

	// Gift and lucky bag handlers
	room.Handle("/gifts", b.giftHandler.HandleGifts)
	room.Handle("/send", b.giftHandler.HandleSend)
	room.Handle("/bag", b.bagHandler.HandleBag)
	room.Handle("/bags", b.bagHandler.HandleBags)
	room.Handle("/contributors", b.rankingHandler.HandleContributors)

	// Global rankings work in private chat too
	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/news", b.rankingHandler.HandleNews)

	// Generic callback handler for every inline button
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes callbacks to appropriate handlers
func (b *Bot) handleCallback(c tele.Context) error {
	data := handler.CallbackData(c)
	log.Debug().Str("data", data).Msg("Callback received")

	switch {
	case strings.HasPrefix(data, handler.CallbackCombo):
		return b.giftHandler.HandleComboCallback(c)
	case strings.HasPrefix(data, handler.CallbackGiftPick):
		return b.giftHandler.HandleGiftPick(c)
	case strings.HasPrefix(data, handler.CallbackClaimBag):
		return b.bagHandler.HandleClaimCallback(c)
	case strings.HasPrefix(data, handler.CallbackSeat), data == handler.CallbackSeatLeave:
		return b.roomHandler.HandleSeatCallback(c)
	default:
		return c.Respond()
	}
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
