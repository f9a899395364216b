package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"voice-room/internal/handler"
	"voice-room/internal/model"
	"voice-room/internal/service"
)

// OutboxSize bounds the queue of pending chat updates.
const OutboxSize = 256

// Messenger is the part of the Telegram API the presenter needs.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Presenter renders room events as chat messages. Each room is the group
// chat whose id it carries. Calls only enqueue; Run performs the sends in
// order, so a combo message is always sent before it is edited.
type Presenter struct {
	api    Messenger
	outbox chan func()

	// Owned by the Run goroutine.
	combos map[service.ComboKey]*tele.Message

	mu     sync.Mutex
	panels map[string]*tele.Message
	rooms  map[string]struct{}
}

var _ service.Presenter = (*Presenter)(nil)

// NewPresenter creates a presenter sending through api.
func NewPresenter(api Messenger) *Presenter {
	return &Presenter{
		api:    api,
		outbox: make(chan func(), OutboxSize),
		combos: make(map[service.ComboKey]*tele.Message),
		panels: make(map[string]*tele.Message),
		rooms:  make(map[string]struct{}),
	}
}

// Run drains the outbox until ctx is done.
func (p *Presenter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.outbox:
			job()
		}
	}
}

// GiftHit posts a single gift send with a button to send it again.
func (p *Presenter) GiftHit(c *service.Client, hit service.GiftHit) {
	text := fmt.Sprintf("🎁 %s sent %s %s x%d (%d💰)",
		c.Actor().Name, hit.Gift.Icon, hit.Gift.Name, hit.Quantity, hit.TotalCost)
	markup := handler.BuildComboButton(hit.Gift, hit.RecipientIDs, 1)
	roomID := c.RoomID
	p.enqueue(func() { p.send(roomID, text, markup) })
}

// ComboChanged shows the running hit count on one message per combo.
func (p *Presenter) ComboChanged(c *service.Client, st service.ComboState) {
	text := fmt.Sprintf("🔥 %s %s %s Combo x%d", c.Actor().Name, st.Gift.Icon, st.Gift.Name, st.Hits)
	markup := handler.BuildComboButton(st.Gift, st.RecipientIDs, st.Hits)
	roomID := c.RoomID
	p.enqueue(func() {
		if msg, ok := p.combos[st.Key]; ok {
			p.edit(msg, text, markup)
			return
		}
		if sent := p.send(roomID, text, markup); sent != nil {
			p.combos[st.Key] = sent
		}
	})
}

// ComboEnded freezes the combo message at its final count.
func (p *Presenter) ComboEnded(c *service.Client, st service.ComboState) {
	text := fmt.Sprintf("✨ %s %s %s Combo x%d done!", c.Actor().Name, st.Gift.Icon, st.Gift.Name, st.Hits)
	roomID := c.RoomID
	p.enqueue(func() {
		msg, ok := p.combos[st.Key]
		delete(p.combos, st.Key)
		if ok {
			p.edit(msg, text, nil)
			return
		}
		p.send(roomID, text, nil)
	})
}

// LuckyWin celebrates a lucky gift payout.
func (p *Presenter) LuckyWin(c *service.Client, gift model.Gift, amount int64) {
	text := fmt.Sprintf("🍀 %s hit the jackpot with %s %s: +%d coins!", c.Actor().Name, gift.Icon, gift.Name, amount)
	roomID := c.RoomID
	p.enqueue(func() { p.send(roomID, text, nil) })
}

// Notice tells the room about a local effect that was rolled back.
func (p *Presenter) Notice(c *service.Client, text string) {
	text = fmt.Sprintf("⚠️ %s: %s", c.Actor().Name, text)
	roomID := c.RoomID
	p.enqueue(func() { p.send(roomID, text, nil) })
}

// Announcement broadcasts to every room the bot has seen.
func (p *Presenter) Announcement(a *model.Announcement) {
	text := handler.FormatAnnouncement(a)
	for _, roomID := range p.knownRooms() {
		p.enqueue(func() { p.send(roomID, text, nil) })
	}
}

// RoomChanged refreshes the room's seat board, if one was posted.
func (p *Presenter) RoomChanged(room model.Room) {
	p.mu.Lock()
	p.rooms[room.ID] = struct{}{}
	msg, ok := p.panels[room.ID]
	p.mu.Unlock()

	if ok {
		text, markup := handler.FormatRoom(room), handler.BuildSeatPanel(room)
		p.enqueue(func() { p.edit(msg, text, markup) })
	}
}

// TrackPanel makes msg the seat board kept current for a room.
func (p *Presenter) TrackPanel(roomID string, msg *tele.Message) {
	if msg == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panels[roomID] = msg
	p.rooms[roomID] = struct{}{}
}

func (p *Presenter) knownRooms() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	rooms := make([]string, 0, len(p.rooms))
	for id := range p.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

// enqueue never blocks; updates are dropped while the outbox is full.
func (p *Presenter) enqueue(job func()) {
	select {
	case p.outbox <- job:
	default:
		log.Warn().Msg("Presenter outbox full, dropping chat update")
	}
}

func (p *Presenter) send(roomID, text string, markup *tele.ReplyMarkup) *tele.Message {
	chatID, err := handler.ChatID(roomID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("Room is not a chat")
		return nil
	}

	var opts []interface{}
	if markup != nil {
		opts = append(opts, markup)
	}
	msg, err := p.api.Send(tele.ChatID(chatID), text, opts...)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("Failed to send room message")
		return nil
	}
	return msg
}

func (p *Presenter) edit(msg *tele.Message, text string, markup *tele.ReplyMarkup) {
	var opts []interface{}
	if markup != nil {
		opts = append(opts, markup)
	}
	if _, err := p.api.Edit(msg, text, opts...); err != nil && !strings.Contains(err.Error(), "message is not modified") {
		log.Debug().Err(err).Int("msg_id", msg.ID).Msg("Failed to edit room message")
	}
}
