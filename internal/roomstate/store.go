// Package roomstate keeps the shared room document and each client's local
// projection of it. The store is authoritative; a projection applies local
// intents immediately and is replaced wholesale whenever the store publishes.
package roomstate

import (
	"context"
	"errors"
	"slices"

	"voice-room/internal/model"
)

// Room state errors.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExists       = errors.New("room already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrSeatTaken        = errors.New("seat is taken")
	ErrSeatOutOfRange   = errors.New("seat out of range")
	ErrNotSeated        = errors.New("not seated")
	ErrInvalidLayout    = errors.New("invalid mic layout")
)

// Store is the authoritative room document. Speaker charm is kept apart from
// the speaker list so concurrent gift commits can increment it atomically;
// Get merges the two.
type Store interface {
	Create(ctx context.Context, room model.Room) error
	Get(ctx context.Context, roomID string) (model.Room, error)
	SetSpeakers(ctx context.Context, roomID string, speakers []model.Speaker) error
	AddCharm(ctx context.Context, roomID string, deltas map[int64]int64) error
	ResetCharm(ctx context.Context, roomID string) error
	AddLockedSeat(ctx context.Context, roomID string, seat int) error
	RemoveLockedSeat(ctx context.Context, roomID string, seat int) error
	SetMicsLocked(ctx context.Context, roomID string, locked bool) error
	SetMicCount(ctx context.Context, roomID string, count int, speakers []model.Speaker) error
	AddModerator(ctx context.Context, roomID string, userID int64) error
	// Subscribe delivers the current document first, then every change,
	// until ctx is done. A slow reader only ever sees the latest document.
	Subscribe(ctx context.Context, roomID string) (<-chan model.Room, error)
}

// normalize sorts set-like fields so documents compare stably.
func normalize(r model.Room) model.Room {
	r = r.Clone()
	slices.Sort(r.LockedSeats)
	r.LockedSeats = slices.Compact(r.LockedSeats)
	slices.Sort(r.Moderators)
	r.Moderators = slices.Compact(r.Moderators)
	slices.SortFunc(r.Speakers, func(a, b model.Speaker) int { return a.SeatIndex - b.SeatIndex })
	if r.Speakers == nil {
		r.Speakers = []model.Speaker{}
	}
	if r.LockedSeats == nil {
		r.LockedSeats = []int{}
	}
	if r.Moderators == nil {
		r.Moderators = []int64{}
	}
	return r
}

// withoutCharm strips charm before a speaker list is stored.
func withoutCharm(speakers []model.Speaker) []model.Speaker {
	out := slices.Clone(speakers)
	for i := range out {
		out[i].Charm = 0
	}
	return out
}

// offer replaces whatever is buffered in ch with r.
func offer(ch chan model.Room, r model.Room) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- r:
	default:
	}
}
