package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"voice-room/internal/config"
	"voice-room/internal/model"
)

// Default combo windows.
const (
	DefaultComboDebounce = 1200 * time.Millisecond
	DefaultComboExpiry   = 5 * time.Second
)

// ComboKey identifies a combo session: one sender repeating one gift to
// one recipient set in one room.
type ComboKey struct {
	RoomID     string
	SenderID   int64
	GiftID     string
	Recipients string
}

func newComboKey(c *Client, giftID string, recipients []int64) ComboKey {
	ids := make([]string, len(recipients))
	for i, id := range recipients {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return ComboKey{
		RoomID:     c.RoomID,
		SenderID:   c.UserID(),
		GiftID:     giftID,
		Recipients: strings.Join(ids, ","),
	}
}

// countdown runs fn once d has passed since the last Reset.
type countdown struct {
	mu    sync.Mutex
	d     time.Duration
	fn    func()
	timer *time.Timer
}

func newCountdown(d time.Duration, fn func()) *countdown {
	return &countdown{d: d, fn: fn}
}

// Reset restarts the countdown from now.
func (c *countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		c.timer = time.AfterFunc(c.d, c.fn)
		return
	}
	c.timer.Reset(c.d)
}

// Stop cancels a pending fire.
func (c *countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

type comboSession struct {
	key        ComboKey
	client     *Client
	gift       model.Gift
	recipients []int64
	hits       int
	debounce   *countdown
	expiry     *countdown
}

func (s *comboSession) state() ComboState {
	return ComboState{Key: s.key, Gift: s.gift, RecipientIDs: s.recipients, Hits: s.hits}
}

// ComboBatcher coalesces rapid repeated sends into one commit. Every hit is
// applied locally at once; the durable commit waits until the sender pauses
// for the debounce window, or until the sender spends on anything else. The
// expiry window only ends the combo display.
type ComboBatcher struct {
	gifts     *GiftService
	presenter Presenter
	debounce  time.Duration
	expiry    time.Duration

	mu       sync.Mutex
	sessions map[ComboKey]*comboSession
}

// NewComboBatcher creates a new ComboBatcher instance.
func NewComboBatcher(gifts *GiftService, presenter Presenter, cfg *config.ComboConfig) *ComboBatcher {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	b := &ComboBatcher{
		gifts:     gifts,
		presenter: presenter,
		debounce:  cfg.DebounceWindow,
		expiry:    cfg.Expiry,
		sessions:  make(map[ComboKey]*comboSession),
	}
	if b.debounce <= 0 {
		b.debounce = DefaultComboDebounce
	}
	if b.expiry <= 0 {
		b.expiry = DefaultComboExpiry
	}
	return b
}

// Hit records one send of a combo. A rejected hit leaves the session as it
// was.
func (b *ComboBatcher) Hit(ctx context.Context, c *Client, giftID string, quantity int64, recipientIDs []int64) (ComboState, error) {
	var key ComboKey
	d, err := b.gifts.prepare(c, giftID, quantity, recipientIDs, func(d dispatch) {
		key = newComboKey(c, giftID, d.recipients)
		b.gifts.hold(key, d)
	})
	if err != nil {
		return ComboState{}, err
	}

	b.mu.Lock()
	sess := b.sessions[key]
	if sess == nil {
		sess = &comboSession{key: key, client: c, gift: d.gift, recipients: d.recipients}
		sess.debounce = newCountdown(b.debounce, func() { b.fire(sess) })
		sess.expiry = newCountdown(b.expiry, func() { b.expire(sess) })
		b.sessions[key] = sess
	}
	sess.hits++
	sess.debounce.Reset()
	sess.expiry.Reset()
	st := sess.state()
	b.mu.Unlock()

	b.presenter.ComboChanged(c, st)
	return st, nil
}

// Flush commits every pending combo and ends all sessions.
func (b *ComboBatcher) Flush() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[ComboKey]*comboSession)
	var ended []*comboSession
	var states []ComboState
	for _, sess := range sessions {
		sess.debounce.Stop()
		sess.expiry.Stop()
		ended = append(ended, sess)
		states = append(states, sess.state())
	}
	b.mu.Unlock()

	if n := b.gifts.releaseAll(); n > 0 {
		log.Info().Int("count", n).Msg("Flushed pending combos")
	}
	for i, sess := range ended {
		b.presenter.ComboEnded(sess.client, states[i])
	}
}

// Active returns the number of live combo sessions.
func (b *ComboBatcher) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// fire commits the hits gathered since the last commit. The session stays
// open so later hits keep counting.
func (b *ComboBatcher) fire(sess *comboSession) {
	b.gifts.release(sess.key)
}

func (b *ComboBatcher) expire(sess *comboSession) {
	b.mu.Lock()
	if b.sessions[sess.key] != sess {
		b.mu.Unlock()
		return
	}
	delete(b.sessions, sess.key)
	sess.debounce.Stop()
	st := sess.state()
	b.mu.Unlock()

	b.gifts.release(sess.key)
	b.presenter.ComboEnded(sess.client, st)
}
