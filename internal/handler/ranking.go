package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"voice-room/internal/model"
	"voice-room/internal/service"
)

// RankingLimit is the number of entries shown per ranking.
const RankingLimit = 10

// RankingHandler handles ranking and announcement commands.
type RankingHandler struct {
	rankingService *service.RankingService
	roomService    *service.RoomService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService, roomService *service.RoomService) *RankingHandler {
	return &RankingHandler{
		rankingService: rankingService,
		roomService:    roomService,
	}
}

// HandleTop handles the /top command.
// Displays the top senders by wealth and top receivers by charm.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	ctx := context.Background()

	senders, err := h.rankingService.TopSenders(ctx, RankingLimit)
	if err != nil {
		return replyErr(c, "top_senders", err)
	}
	receivers, err := h.rankingService.TopReceivers(ctx, RankingLimit)
	if err != nil {
		return replyErr(c, "top_receivers", err)
	}

	msg := "📊 Rankings\n"
	msg += "━━━━━━━━━━━━━━━\n"
	msg += "👑 Top senders\n"
	msg += rankLines(senders, func(w *model.Wallet) int64 { return w.Wealth })
	msg += "\n━━━━━━━━━━━━━━━\n"
	msg += "❤️ Top receivers\n"
	msg += rankLines(receivers, func(w *model.Wallet) int64 { return w.Charm })
	msg += "━━━━━━━━━━━━━━━"

	return c.Reply(msg)
}

// HandleContributors handles the /contributors command.
// Displays who gave the most inside this room.
func (h *RankingHandler) HandleContributors(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	top, err := h.rankingService.TopContributors(context.Background(), RoomID(c.Chat()), RankingLimit)
	if err != nil {
		return replyErr(c, "top_contributors", err)
	}

	msg := "🏆 Room contributors\n"
	msg += "━━━━━━━━━━━━━━━\n"
	if len(top) == 0 {
		msg += "No gifts yet\n"
	}
	for i, ct := range top {
		name := ct.Name
		if name == "" {
			name = fmt.Sprintf("User%d", ct.UserID)
		}
		msg += fmt.Sprintf("%s %s: %d\n", rankLabel(i), name, ct.Amount)
	}
	return c.Reply(msg)
}

// HandleNews handles the /news command and shows recent global announcements.
func (h *RankingHandler) HandleNews(c tele.Context) error {
	anns, err := h.roomService.RecentAnnouncements(context.Background(), RankingLimit)
	if err != nil {
		return replyErr(c, "announcements", err)
	}
	if len(anns) == 0 {
		return c.Reply("📢 Nothing announced yet")
	}
	msg := ""
	for _, a := range anns {
		msg += FormatAnnouncement(a) + "\n"
	}
	return c.Reply(msg)
}

func rankLines(wallets []*model.Wallet, value func(*model.Wallet) int64) string {
	if len(wallets) == 0 {
		return "No data yet\n"
	}
	msg := ""
	for i, w := range wallets {
		msg += fmt.Sprintf("%s %s: %d\n", rankLabel(i), w.DisplayName(), value(w))
	}
	return msg
}

func rankLabel(i int) string {
	medals := []string{"🥇", "🥈", "🥉"}
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("%d.", i+1)
}
