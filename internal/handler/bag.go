package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"voice-room/internal/config"
	"voice-room/internal/service"
)

// BagHandler handles lucky bag commands.
type BagHandler struct {
	cfg             *config.Config
	accountService  *service.AccountService
	luckyBagService *service.LuckyBagService
}

// NewBagHandler creates a new BagHandler.
func NewBagHandler(cfg *config.Config, accountService *service.AccountService, luckyBagService *service.LuckyBagService) *BagHandler {
	return &BagHandler{
		cfg:             cfg,
		accountService:  accountService,
		luckyBagService: luckyBagService,
	}
}

// HandleBag handles the /bag command.
// Format: /bag <total> <recipients>
func (h *BagHandler) HandleBag(c tele.Context) error {
	ctx := context.Background()
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /bag <total> <recipients>")
	}
	total, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ Total must be a number")
	}
	limit, err := strconv.Atoi(args[1])
	if err != nil {
		return c.Reply("❌ Recipients must be a number")
	}

	client, err := clientFor(ctx, h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "create_bag", err)
	}
	bag, err := h.luckyBagService.CreateBag(ctx, client, total, limit)
	if err != nil {
		return replyErr(c, "create_bag", err)
	}

	return c.Send(fmt.Sprintf(
		"🧧 %s dropped a lucky bag!\n\n"+
			"💰 %d coins for %d people (%d each)\n"+
			"⏳ Expires in %s",
		bag.SenderName, bag.TotalAmount, bag.RecipientsLimit, bag.Share(),
		time.Until(bag.ExpiresAt).Round(time.Second),
	), BuildBagButton(bag.ID))
}

// HandleBags handles the /bags command and lists the room's active bags.
func (h *BagHandler) HandleBags(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	bags, err := h.luckyBagService.ActiveBags(context.Background(), RoomID(c.Chat()))
	if err != nil {
		return replyErr(c, "active_bags", err)
	}
	if len(bags) == 0 {
		return c.Reply("🧧 No lucky bags right now")
	}

	for _, bag := range bags {
		left := bag.RecipientsLimit - len(bag.ClaimedBy)
		text := fmt.Sprintf("🧧 %s: %d each, %d left", bag.SenderName, bag.Share(), left)
		if err := c.Send(text, BuildBagButton(bag.ID)); err != nil {
			return err
		}
	}
	return nil
}

// HandleClaimCallback handles a tap on a lucky bag button.
func (h *BagHandler) HandleClaimCallback(c tele.Context) error {
	ctx := context.Background()
	bagID := strings.TrimPrefix(CallbackData(c), CallbackClaimBag)

	client, err := clientFor(ctx, h.cfg, h.accountService, c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: ErrorText(err), ShowAlert: true})
	}
	share, err := h.luckyBagService.ClaimBag(ctx, client, bagID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: ErrorText(err), ShowAlert: true})
	}
	return c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("🧧 You got %d coins!", share), ShowAlert: true})
}
