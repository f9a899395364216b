package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"voice-room/internal/catalog"
	"voice-room/internal/config"
	"voice-room/internal/model"
	"voice-room/internal/service"
)

// GiftHandler handles gift sending and combo buttons.
type GiftHandler struct {
	cfg            *config.Config
	accountService *service.AccountService
	giftService    *service.GiftService
	comboBatcher   *service.ComboBatcher
	catalog        *catalog.Catalog
}

// NewGiftHandler creates a new GiftHandler.
func NewGiftHandler(
	cfg *config.Config,
	accountService *service.AccountService,
	giftService *service.GiftService,
	comboBatcher *service.ComboBatcher,
	cat *catalog.Catalog,
) *GiftHandler {
	return &GiftHandler{
		cfg:            cfg,
		accountService: accountService,
		giftService:    giftService,
		comboBatcher:   comboBatcher,
		catalog:        cat,
	}
}

// HandleGifts handles the /gifts command and shows the catalog panel.
func (h *GiftHandler) HandleGifts(c tele.Context) error {
	var sb strings.Builder
	sb.WriteString("🎁 Gifts\n━━━━━━━━━━━━━━━\n")
	for _, g := range h.catalog.Gifts() {
		fmt.Fprintf(&sb, "%s %s (%s): %d💰", g.Icon, g.Name, g.ID, g.Cost)
		if g.IsLucky {
			sb.WriteString(" 🍀 lucky")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nTap a gift to send it to everyone on a seat, or use /send <gift> [qty] [seat...]")
	return c.Send(sb.String(), BuildGiftPanel(h.catalog.Gifts()))
}

// HandleSend handles the /send command.
// Format: /send <gift> [qty] [seat...]
// Replying to a message sends to its author; otherwise the listed seats, or
// every other seated speaker when no seat is given.
func (h *GiftHandler) HandleSend(c tele.Context) error {
	ctx := context.Background()
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /send <gift> [qty] [seat...]")
	}
	giftID := args[0]

	quantity := int64(1)
	if len(args) > 1 {
		q, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return c.Reply("❌ Quantity must be a number")
		}
		quantity = q
	}

	client, err := clientFor(ctx, h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "send_gift", err)
	}

	recipients, explicit, err := h.recipients(c, client, args)
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}
	if explicit {
		if err := h.giftService.CheckRecipients(ctx, client, recipients); err != nil {
			return replyErr(c, "send_gift", err)
		}
	}

	if _, err := h.giftService.SendGift(ctx, client, giftID, quantity, recipients); err != nil {
		return replyErr(c, "send_gift", err)
	}
	return nil
}

// HandleGiftPick handles the gift panel buttons.
func (h *GiftHandler) HandleGiftPick(c tele.Context) error {
	ctx := context.Background()
	giftID := strings.TrimPrefix(CallbackData(c), CallbackGiftPick)

	client, err := clientFor(ctx, h.cfg, h.accountService, c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: ErrorText(err), ShowAlert: true})
	}
	recipients := othersSeated(client.Projection.Snapshot(), client.UserID())
	if _, err := h.comboBatcher.Hit(ctx, client, giftID, 1, recipients); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: ErrorText(err), ShowAlert: true})
	}
	return c.Respond()
}

// HandleComboCallback handles a tap on a combo button.
func (h *GiftHandler) HandleComboCallback(c tele.Context) error {
	ctx := context.Background()
	giftID, recipients, err := ParseComboData(CallbackData(c))
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid combo"})
	}

	client, err := clientFor(ctx, h.cfg, h.accountService, c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: ErrorText(err), ShowAlert: true})
	}
	st, err := h.comboBatcher.Hit(ctx, client, giftID, 1, recipients)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: ErrorText(err), ShowAlert: true})
	}
	return c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("%s x%d", st.Gift.Icon, st.Hits)})
}

// recipients resolves who a /send goes to. explicit is false only for the
// default of every other seated speaker.
func (h *GiftHandler) recipients(c tele.Context, client *service.Client, args []string) (ids []int64, explicit bool, err error) {
	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		return []int64{msg.ReplyTo.Sender.ID}, true, nil
	}

	room := client.Projection.Snapshot()
	if len(args) <= 2 {
		return othersSeated(room, client.UserID()), false, nil
	}

	ids = make([]int64, 0, len(args)-2)
	for _, a := range args[2:] {
		seat, err := parseSeat([]string{a})
		if err != nil {
			return nil, false, err
		}
		sp, ok := room.SpeakerAt(seat)
		if !ok {
			return nil, false, fmt.Errorf("seat %d is empty", seat+1)
		}
		ids = append(ids, sp.UserID)
	}
	return ids, true, nil
}

// othersSeated lists every seated speaker except the sender.
func othersSeated(room model.Room, senderID int64) []int64 {
	ids := make([]int64, 0, len(room.Speakers))
	for _, sp := range room.Speakers {
		if sp.UserID != senderID {
			ids = append(ids, sp.UserID)
		}
	}
	return ids
}
