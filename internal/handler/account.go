package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"voice-room/internal/service"
)

// AccountHandler handles wallet commands.
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// HandleStart handles the /start command.
// Creates a wallet with the configured initial coins if the user has none.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	name := DisplayName(sender)
	w, created, err := h.accountService.EnsureWallet(ctx, sender.ID, name)
	if err != nil {
		return replyErr(c, "start", err)
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome %s!\n\n"+
				"Your wallet is ready with %d coins.\n\n"+
				"Commands:\n"+
				"/room - open the voice room of this chat\n"+
				"/seat <n> - take a seat\n"+
				"/gifts - gift catalog\n"+
				"/send <gift> [qty] [seat...] - send a gift\n"+
				"/bag <total> <people> - drop a lucky bag\n"+
				"/wallet - your balances\n"+
				"/top - rankings",
			name, w.Coins,
		))
	}

	return c.Reply(fmt.Sprintf("👋 Welcome back %s!\n\n💰 Coins: %d", name, w.Coins))
}

// HandleWallet handles the /wallet command.
func (h *AccountHandler) HandleWallet(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	w, _, err := h.accountService.EnsureWallet(ctx, sender.ID, DisplayName(sender))
	if err != nil {
		return replyErr(c, "wallet", err)
	}
	return c.Reply(FormatWallet(*w))
}
