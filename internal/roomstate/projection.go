package roomstate

import (
	"context"
	"slices"
	"sync"
	"time"

	"voice-room/internal/model"
	"voice-room/internal/pkg/async"
)

// Actor is the user a projection acts for.
type Actor struct {
	UserID int64
	Name   string
	Avatar string
	Frame  string
	// Admin is a bot-wide administrator; hosts and moderators are elevated
	// per room from the document itself.
	Admin bool
}

// Projection is one client's local view of a room. Intents mutate it
// synchronously and enqueue a durable write; Replace overwrites it
// unconditionally with the authoritative document.
type Projection struct {
	mu     sync.RWMutex
	actor  Actor
	state  model.Room
	store  Store
	writer *async.Writer

	emojiDuration time.Duration
	emojiTimer    *time.Timer
}

// NewProjection seeds a projection from a document.
func NewProjection(actor Actor, seed model.Room, store Store, writer *async.Writer, emojiDuration time.Duration) *Projection {
	return &Projection{
		actor:         actor,
		state:         seed.Clone(),
		store:         store,
		writer:        writer,
		emojiDuration: emojiDuration,
	}
}

// Actor returns who this projection acts for.
func (p *Projection) Actor() Actor {
	return p.actor
}

// Snapshot returns a copy of the local state.
func (p *Projection) Snapshot() model.Room {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone()
}

// Replace overwrites the local state with an authoritative document.
func (p *Projection) Replace(room model.Room) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = room.Clone()
}

// IsElevated reports whether the actor may manage seats.
func (p *Projection) IsElevated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.elevated()
}

func (p *Projection) elevated() bool {
	return p.actor.Admin || p.state.IsElevated(p.actor.UserID)
}

// JoinSeat seats the actor, moving them if already seated elsewhere.
// Locked seats reject non-elevated actors without issuing a write.
func (p *Projection) JoinSeat(seat int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seat < 0 || seat >= p.state.MicCount {
		return ErrSeatOutOfRange
	}
	if occupant, ok := p.state.SpeakerAt(seat); ok {
		if occupant.UserID == p.actor.UserID {
			return nil
		}
		return ErrSeatTaken
	}
	if p.state.IsSeatLocked(seat) && !p.elevated() {
		return ErrPermissionDenied
	}

	me := model.Speaker{
		UserID:    p.actor.UserID,
		Name:      p.actor.Name,
		Avatar:    p.actor.Avatar,
		Frame:     p.actor.Frame,
		SeatIndex: seat,
	}
	if prev, ok := p.state.SpeakerByUser(p.actor.UserID); ok {
		me.Charm = prev.Charm
		me.IsMuted = prev.IsMuted
	}
	p.state.Speakers = append(p.withoutActor(), me)

	p.pushSpeakers("join_seat")
	return nil
}

// LeaveSeat removes the actor's speaker record.
func (p *Projection) LeaveSeat() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.state.SpeakerByUser(p.actor.UserID); !ok {
		return ErrNotSeated
	}
	p.state.Speakers = p.withoutActor()

	p.pushSpeakers("leave_seat")
	return nil
}

// LockSeat adds a seat to the locked set.
func (p *Projection) LockSeat(seat int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.elevated() {
		return ErrPermissionDenied
	}
	if seat < 0 || seat >= p.state.MicCount {
		return ErrSeatOutOfRange
	}
	if !slices.Contains(p.state.LockedSeats, seat) {
		p.state.LockedSeats = append(p.state.LockedSeats, seat)
	}

	roomID := p.state.ID
	p.writer.Go("lock_seat", func(ctx context.Context) error {
		return p.store.AddLockedSeat(ctx, roomID, seat)
	})
	return nil
}

// UnlockSeat removes a seat from the locked set.
func (p *Projection) UnlockSeat(seat int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.elevated() {
		return ErrPermissionDenied
	}
	p.state.LockedSeats = slices.DeleteFunc(p.state.LockedSeats, func(i int) bool { return i == seat })

	roomID := p.state.ID
	p.writer.Go("unlock_seat", func(ctx context.Context) error {
		return p.store.RemoveLockedSeat(ctx, roomID, seat)
	})
	return nil
}

// ToggleMicsLock flips the global mic lock and returns the new value.
func (p *Projection) ToggleMicsLock() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.elevated() {
		return p.state.MicsLocked, ErrPermissionDenied
	}
	p.state.MicsLocked = !p.state.MicsLocked

	roomID, locked := p.state.ID, p.state.MicsLocked
	p.writer.Go("toggle_mics_lock", func(ctx context.Context) error {
		return p.store.SetMicsLocked(ctx, roomID, locked)
	})
	return locked, nil
}

// CycleMicLayout advances to the next layout and drops speakers whose seat
// no longer exists. It returns the new seat count.
func (p *Projection) CycleMicLayout() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.elevated() {
		return p.state.MicCount, ErrPermissionDenied
	}
	next := model.NextMicCount(p.state.MicCount)
	p.state.MicCount = next
	p.state.Speakers = slices.DeleteFunc(p.state.Speakers, func(s model.Speaker) bool { return s.SeatIndex >= next })

	roomID, speakers := p.state.ID, slices.Clone(p.state.Speakers)
	p.writer.Go("cycle_mic_layout", func(ctx context.Context) error {
		return p.store.SetMicCount(ctx, roomID, next, speakers)
	})
	return next, nil
}

// ResetCharm zeroes every speaker's charm.
func (p *Projection) ResetCharm() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.elevated() {
		return ErrPermissionDenied
	}
	for i := range p.state.Speakers {
		p.state.Speakers[i].Charm = 0
	}

	roomID := p.state.ID
	p.writer.Go("reset_charm", func(ctx context.Context) error {
		return p.store.ResetCharm(ctx, roomID)
	})
	return nil
}

// SetMuted sets the actor's mute flag.
func (p *Projection) SetMuted(muted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.actorIndex()
	if i < 0 {
		return ErrNotSeated
	}
	p.state.Speakers[i].IsMuted = muted

	p.pushSpeakers("set_muted")
	return nil
}

// SetEmoji shows a reaction on the actor's seat and clears it after the
// configured duration, unless another emoji replaced it in the meantime.
func (p *Projection) SetEmoji(emoji string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.actorIndex()
	if i < 0 {
		return ErrNotSeated
	}
	p.state.Speakers[i].ActiveEmoji = emoji
	p.pushSpeakers("set_emoji")

	if p.emojiTimer != nil {
		p.emojiTimer.Stop()
	}
	p.emojiTimer = time.AfterFunc(p.emojiDuration, func() { p.clearEmoji(emoji) })
	return nil
}

func (p *Projection) clearEmoji(emoji string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.actorIndex()
	if i < 0 || p.state.Speakers[i].ActiveEmoji != emoji {
		return
	}
	p.state.Speakers[i].ActiveEmoji = ""
	p.pushSpeakers("clear_emoji")
}

// ApplyCharm adds charm to seated recipients locally. The durable increment
// belongs to the gift commit.
func (p *Projection) ApplyCharm(recipientIDs []int64, perRecipient int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.state.Speakers {
		if slices.Contains(recipientIDs, p.state.Speakers[i].UserID) {
			p.state.Speakers[i].Charm += perRecipient
		}
	}
}

// Stop cancels a pending emoji clear.
func (p *Projection) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.emojiTimer != nil {
		p.emojiTimer.Stop()
	}
}

func (p *Projection) actorIndex() int {
	return slices.IndexFunc(p.state.Speakers, func(s model.Speaker) bool { return s.UserID == p.actor.UserID })
}

func (p *Projection) withoutActor() []model.Speaker {
	return slices.DeleteFunc(slices.Clone(p.state.Speakers), func(s model.Speaker) bool {
		return s.UserID == p.actor.UserID
	})
}

// pushSpeakers writes the local speaker list. Callers hold p.mu.
func (p *Projection) pushSpeakers(op string) {
	roomID, speakers := p.state.ID, slices.Clone(p.state.Speakers)
	p.writer.Go(op, func(ctx context.Context) error {
		return p.store.SetSpeakers(ctx, roomID, speakers)
	})
}
