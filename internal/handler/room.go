package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"voice-room/internal/catalog"
	"voice-room/internal/config"
	"voice-room/internal/model"
	"voice-room/internal/service"
)

// PanelTracker keeps a posted seat board current as the room changes.
type PanelTracker interface {
	TrackPanel(roomID string, msg *tele.Message)
}

// RoomHandler handles seat, mic and chat commands.
type RoomHandler struct {
	cfg            *config.Config
	accountService *service.AccountService
	roomService    *service.RoomService
	catalog        *catalog.Catalog
	panels         PanelTracker
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(
	cfg *config.Config,
	accountService *service.AccountService,
	roomService *service.RoomService,
	cat *catalog.Catalog,
	panels PanelTracker,
) *RoomHandler {
	return &RoomHandler{
		cfg:            cfg,
		accountService: accountService,
		roomService:    roomService,
		catalog:        cat,
		panels:         panels,
	}
}

// HandleRoom handles the /room command.
// Format: /room [title]
// Opens the chat's room with the sender as host, or shows it if already open.
// Private chats are filtered out before this runs.
func (h *RoomHandler) HandleRoom(c tele.Context) error {
	ctx := context.Background()
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	title := strings.TrimSpace(c.Message().Payload)
	if title == "" {
		title = chat.Title
	}

	room, err := h.roomService.OpenRoom(ctx, RoomID(chat), sender.ID, title)
	if err != nil {
		return replyErr(c, "open_room", err)
	}
	if _, err := h.accountService.EnsureClient(ctx, room.ID, actorFor(h.cfg, sender)); err != nil {
		return replyErr(c, "open_room", err)
	}

	return h.postBoard(c, room)
}

// postBoard sends the seat board and keeps it updated.
func (h *RoomHandler) postBoard(c tele.Context, room model.Room) error {
	msg, err := c.Bot().Send(c.Chat(), FormatRoom(room), BuildSeatPanel(room))
	if err != nil {
		return err
	}
	h.panels.TrackPanel(room.ID, msg)
	return nil
}

// HandleSeat handles the /seat command.
// Format: /seat <n>
func (h *RoomHandler) HandleSeat(c tele.Context) error {
	seat, err := parseSeat(c.Args())
	if err != nil {
		return c.Reply("❌ Usage: /seat <n>")
	}
	return h.takeSeat(c, seat)
}

// HandleSeatCallback handles the seat panel buttons.
func (h *RoomHandler) HandleSeatCallback(c tele.Context) error {
	data := CallbackData(c)
	if data == CallbackSeatLeave {
		client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
		if err == nil {
			err = client.Projection.LeaveSeat()
		}
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: ErrorText(err)})
		}
		return c.Respond(&tele.CallbackResponse{Text: "⬇️ You left your seat"})
	}

	seat, err := strconv.Atoi(strings.TrimPrefix(data, CallbackSeat))
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid seat"})
	}
	client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
	if err == nil {
		err = client.Projection.JoinSeat(seat)
	}
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: ErrorText(err)})
	}
	return c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("🎙 You took seat %d", seat+1)})
}

func (h *RoomHandler) takeSeat(c tele.Context, seat int) error {
	client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "join_seat", err)
	}
	if err := client.Projection.JoinSeat(seat); err != nil {
		return replyErr(c, "join_seat", err)
	}
	return c.Reply(fmt.Sprintf("🎙 You took seat %d", seat+1))
}

// HandleLeaveSeat handles the /down command.
func (h *RoomHandler) HandleLeaveSeat(c tele.Context) error {
	client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "leave_seat", err)
	}
	if err := client.Projection.LeaveSeat(); err != nil {
		return replyErr(c, "leave_seat", err)
	}
	return c.Reply("⬇️ You left your seat")
}

// HandleExit handles the /exit command. It drops the sender's room session.
func (h *RoomHandler) HandleExit(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	roomID := RoomID(chat)
	if client, err := clientFor(context.Background(), h.cfg, h.accountService, c); err == nil {
		room := client.Projection.Snapshot()
		if _, seated := room.SpeakerByUser(sender.ID); seated {
			if err := client.Projection.LeaveSeat(); err != nil {
				log.Warn().Err(err).Int64("user_id", sender.ID).Msg("Failed to leave seat on exit")
			}
		}
	}
	h.accountService.LeaveRoom(roomID, sender.ID)
	return c.Reply("👋 See you next time")
}

// HandleMute handles /mute and /unmute.
func (h *RoomHandler) HandleMute(muted bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
		if err != nil {
			return replyErr(c, "mute", err)
		}
		if err := client.Projection.SetMuted(muted); err != nil {
			return replyErr(c, "mute", err)
		}
		if muted {
			return c.Reply("🔇 Muted")
		}
		return c.Reply("🎙 Unmuted")
	}
}

// HandleLockSeat handles /lock and /unlock.
// Format: /lock <n>
func (h *RoomHandler) HandleLockSeat(lock bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		seat, err := parseSeat(c.Args())
		if err != nil {
			return c.Reply("❌ Usage: /lock <n> or /unlock <n>")
		}
		client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
		if err != nil {
			return replyErr(c, "lock_seat", err)
		}
		if lock {
			err = client.Projection.LockSeat(seat)
		} else {
			err = client.Projection.UnlockSeat(seat)
		}
		if err != nil {
			return replyErr(c, "lock_seat", err)
		}
		if lock {
			return c.Reply(fmt.Sprintf("🔒 Seat %d locked", seat+1))
		}
		return c.Reply(fmt.Sprintf("🔓 Seat %d unlocked", seat+1))
	}
}

// HandleMicsLock handles the /micslock command.
func (h *RoomHandler) HandleMicsLock(c tele.Context) error {
	client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "mics_lock", err)
	}
	locked, err := client.Projection.ToggleMicsLock()
	if err != nil {
		return replyErr(c, "mics_lock", err)
	}
	if locked {
		return c.Reply("🔒 All mics locked")
	}
	return c.Reply("🔓 All mics unlocked")
}

// HandleLayout handles the /layout command.
func (h *RoomHandler) HandleLayout(c tele.Context) error {
	client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "mic_layout", err)
	}
	count, err := client.Projection.CycleMicLayout()
	if err != nil {
		return replyErr(c, "mic_layout", err)
	}
	return c.Reply(fmt.Sprintf("🪑 Room now has %d seats", count))
}

// HandleResetCharm handles the /resetcharm command.
func (h *RoomHandler) HandleResetCharm(c tele.Context) error {
	client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "reset_charm", err)
	}
	if err := client.Projection.ResetCharm(); err != nil {
		return replyErr(c, "reset_charm", err)
	}
	return c.Reply("❤️ Charm reset for every seat")
}

// HandleEmoji handles the /emoji command.
// Format: /emoji <emoji>
func (h *RoomHandler) HandleEmoji(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 || !h.catalog.IsEmojiAllowed(args[0]) {
		return c.Reply("Available emojis: " + strings.Join(h.catalog.Settings().AvailableEmojis, " "))
	}
	client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "emoji", err)
	}
	if err := client.Projection.SetEmoji(args[0]); err != nil {
		return replyErr(c, "emoji", err)
	}
	return nil
}

// HandleSay handles the /say command.
// Format: /say <text>
func (h *RoomHandler) HandleSay(c tele.Context) error {
	ctx := context.Background()
	client, err := clientFor(ctx, h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "say", err)
	}
	msg, err := h.roomService.SendMessage(ctx, client, c.Message().Payload)
	if err != nil {
		return replyErr(c, "say", err)
	}
	return c.Send(FormatMessage(msg))
}

// HandleChat handles the /chat command and shows the recent room chat.
func (h *RoomHandler) HandleChat(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	msgs, err := h.roomService.RecentMessages(context.Background(), RoomID(c.Chat()))
	if err != nil {
		return replyErr(c, "chat", err)
	}
	if len(msgs) == 0 {
		return c.Reply("💬 No messages yet")
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = FormatMessage(m)
	}
	return c.Reply(strings.Join(lines, "\n"))
}

// HandleBoard handles the /board command and shows the seat board.
func (h *RoomHandler) HandleBoard(c tele.Context) error {
	client, err := clientFor(context.Background(), h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "board", err)
	}
	return h.postBoard(c, client.Projection.Snapshot())
}

// HandleMod handles the /mod command.
// Format: /mod <user_id> or reply to a message with /mod
func (h *RoomHandler) HandleMod(c tele.Context) error {
	ctx := context.Background()
	userID, _, err := parseUserID(c, c.Args())
	if err != nil {
		return c.Reply("❌ Usage: /mod <user_id> or reply to a user with /mod")
	}
	client, err := clientFor(ctx, h.cfg, h.accountService, c)
	if err != nil {
		return replyErr(c, "add_moderator", err)
	}
	if err := h.roomService.AddModerator(ctx, client, userID); err != nil {
		return replyErr(c, "add_moderator", err)
	}

	log.Info().
		Int64("user_id", c.Sender().ID).
		Int64("moderator_id", userID).
		Str("room_id", client.RoomID).
		Msg("Moderator added")
	return c.Reply(fmt.Sprintf("🛡 User %d is now a moderator", userID))
}
