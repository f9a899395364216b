// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"voice-room/internal/config"
	"voice-room/internal/pkg/lock"
	"voice-room/internal/repository"
	"voice-room/internal/roomstate"
	"voice-room/internal/service"
)

// RoomID maps a chat to the room it hosts. Every group chat is one room.
func RoomID(chat *tele.Chat) string {
	return strconv.FormatInt(chat.ID, 10)
}

// ChatID is the inverse of RoomID.
func ChatID(roomID string) (int64, error) {
	return strconv.ParseInt(roomID, 10, 64)
}

// DisplayName returns the name a Telegram user is shown under.
func DisplayName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return strconv.FormatInt(u.ID, 10)
}

// actorFor builds the room actor for a Telegram user.
func actorFor(cfg *config.Config, u *tele.User) roomstate.Actor {
	return roomstate.Actor{
		UserID: u.ID,
		Name:   DisplayName(u),
		Admin:  cfg.IsAdmin(u.ID),
	}
}

// clientFor returns the sender's client in the chat's room.
func clientFor(ctx context.Context, cfg *config.Config, accounts *service.AccountService, c tele.Context) (*service.Client, error) {
	if c.Chat() == nil || c.Sender() == nil {
		return nil, service.ErrNotInRoom
	}
	return accounts.EnsureClient(ctx, RoomID(c.Chat()), actorFor(cfg, c.Sender()))
}

const genericError = "❌ Something went wrong, please try again later"

// ErrorText maps a service error to the reply shown to the user.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds), errors.Is(err, repository.ErrInsufficientCoins):
		return "❌ Not enough coins"
	case errors.Is(err, service.ErrNoRecipients):
		return "❌ Pick at least one seated recipient"
	case errors.Is(err, service.ErrInvalidQuantity):
		return "❌ Quantity must be positive"
	case errors.Is(err, service.ErrUnknownGift):
		return "❌ Unknown gift, see /gifts"
	case errors.Is(err, service.ErrSelfGift):
		return "❌ You cannot send a gift to yourself"
	case errors.Is(err, service.ErrUnknownRecipient):
		return "❌ That user has not joined the bot yet, they need to use /start first"
	case errors.Is(err, service.ErrInvalidBag):
		return "❌ The total must give every recipient at least 1 coin"
	case errors.Is(err, service.ErrBagNotFound):
		return "❌ Lucky bag not found"
	case errors.Is(err, service.ErrBagExhausted):
		return "😢 This lucky bag is exhausted"
	case errors.Is(err, service.ErrAlreadyClaimed):
		return "ℹ️ You already claimed this lucky bag"
	case errors.Is(err, service.ErrEmptyMessage):
		return "❌ Message is empty"
	case errors.Is(err, service.ErrInvalidAmount):
		return "❌ Amount must be positive"
	case errors.Is(err, roomstate.ErrRoomNotFound):
		return "❌ No room is open here, use /room first"
	case errors.Is(err, roomstate.ErrPermissionDenied):
		return "❌ Permission denied"
	case errors.Is(err, roomstate.ErrSeatTaken):
		return "❌ That seat is taken"
	case errors.Is(err, roomstate.ErrSeatOutOfRange):
		return "❌ No such seat"
	case errors.Is(err, roomstate.ErrNotSeated):
		return "❌ You are not on a seat"
	case errors.Is(err, lock.ErrLockTimeout):
		return "⏳ Busy, please try again"
	case errors.Is(err, repository.ErrWalletNotFound):
		return "❌ User not found"
	case errors.Is(err, repository.ErrAgencyNotFound):
		return "❌ Agency not found"
	default:
		return genericError
	}
}

// replyErr logs unexpected failures and replies with the mapped text.
func replyErr(c tele.Context, op string, err error) error {
	text := ErrorText(err)
	if text == genericError {
		log.Error().Err(err).Str("op", op).Msg("Handler failed")
	} else {
		log.Debug().Err(err).Str("op", op).Msg("Intent rejected")
	}
	return c.Reply(text)
}

// parseSeat parses a 1-based seat argument into a seat index.
func parseSeat(args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing seat number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid seat number %q", args[0])
	}
	return n - 1, nil
}

// parseUserID accepts a numeric user id or the sender of a replied-to message.
func parseUserID(c tele.Context, args []string) (int64, []string, error) {
	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		return msg.ReplyTo.Sender.ID, args, nil
	}
	if len(args) < 1 {
		return 0, args, fmt.Errorf("missing user id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, args, fmt.Errorf("invalid user id %q", args[0])
	}
	return id, args[1:], nil
}
