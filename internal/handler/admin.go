package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"voice-room/internal/service"
)

// AdminHandler handles admin-only wallet and agency commands.
type AdminHandler struct {
	accountService *service.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountService *service.AccountService) *AdminHandler {
	return &AdminHandler{
		accountService: accountService,
	}
}

// HandleRecharge handles the /recharge command.
// Format: /recharge <user_id> <amount>
func (h *AdminHandler) HandleRecharge(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	targetID, rest, err := parseUserID(c, c.Args())
	if err != nil || len(rest) < 1 {
		return c.Reply("❌ Usage: /recharge <user_id> <amount>")
	}
	amount, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return c.Reply("❌ Amount must be a number")
	}

	w, err := h.accountService.Recharge(ctx, targetID, amount)
	if err != nil {
		return replyErr(c, "recharge", err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", "recharge").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ Recharged\n\n"+
			"👤 User: %s (ID: %d)\n"+
			"➕ Added: %d coins\n"+
			"💰 Coins: %d",
		w.DisplayName(), targetID, amount, w.Coins,
	))
}

// HandleSetHost handles the /sethost command.
// Format: /sethost <user_id> [agency_id|off]
func (h *AdminHandler) HandleSetHost(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	targetID, rest, err := parseUserID(c, c.Args())
	if err != nil {
		return c.Reply("❌ Usage: /sethost <user_id> [agency_id|off]")
	}

	isHost := true
	var agencyID *string
	if len(rest) > 0 {
		if rest[0] == "off" {
			isHost = false
		} else {
			agencyID = &rest[0]
		}
	}

	w, err := h.accountService.SetHost(ctx, targetID, isHost, agencyID)
	if err != nil {
		return replyErr(c, "set_host", err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Bool("is_host", isHost).
		Str("operation", "set_host").
		Msg("Admin operation executed")

	if !w.IsHost {
		return c.Reply(fmt.Sprintf("✅ %s is no longer a host", w.DisplayName()))
	}
	if w.HasAgency() {
		return c.Reply(fmt.Sprintf("✅ %s is now a host of agency %s", w.DisplayName(), *w.HostAgencyID))
	}
	return c.Reply(fmt.Sprintf("✅ %s is now a host", w.DisplayName()))
}

// HandleAgency handles the /agency command.
// Format: /agency <agency_id> <agent_user_id>
func (h *AdminHandler) HandleAgency(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /agency <agency_id> <agent_user_id>")
	}
	agentID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return c.Reply("❌ Invalid agent user id")
	}

	a, err := h.accountService.CreateAgency(ctx, args[0], agentID)
	if err != nil {
		return replyErr(c, "create_agency", err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("agency_id", a.ID).
		Int64("agent_id", a.AgentID).
		Str("operation", "create_agency").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("✅ Agency %s created, agent %d", a.ID, a.AgentID))
}
