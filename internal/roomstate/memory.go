package roomstate

import (
	"context"
	"slices"
	"sync"

	"voice-room/internal/model"
)

type memoryRoom struct {
	room  model.Room
	charm map[int64]int64
	subs  map[chan model.Room]struct{}
}

// MemoryStore is an in-process Store for tests and single-node use.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*memoryRoom
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*memoryRoom)}
}

func (s *MemoryStore) Create(ctx context.Context, room model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return ErrRoomExists
	}
	if room.MicCount == 0 {
		room.MicCount = model.DefaultMicCount
	}
	charm := make(map[int64]int64)
	for _, sp := range room.Speakers {
		if sp.Charm != 0 {
			charm[sp.UserID] = sp.Charm
		}
	}
	room.Speakers = withoutCharm(room.Speakers)
	s.rooms[room.ID] = &memoryRoom{
		room:  normalize(room),
		charm: charm,
		subs:  make(map[chan model.Room]struct{}),
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, roomID string) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return model.Room{}, ErrRoomNotFound
	}
	return r.snapshot(), nil
}

func (s *MemoryStore) SetSpeakers(ctx context.Context, roomID string, speakers []model.Speaker) error {
	return s.update(roomID, func(r *memoryRoom) {
		r.setSpeakers(speakers)
	})
}

func (s *MemoryStore) AddCharm(ctx context.Context, roomID string, deltas map[int64]int64) error {
	return s.update(roomID, func(r *memoryRoom) {
		for userID, d := range deltas {
			if _, seated := r.room.SpeakerByUser(userID); seated {
				r.charm[userID] += d
			}
		}
	})
}

func (s *MemoryStore) ResetCharm(ctx context.Context, roomID string) error {
	return s.update(roomID, func(r *memoryRoom) {
		clear(r.charm)
	})
}

func (s *MemoryStore) AddLockedSeat(ctx context.Context, roomID string, seat int) error {
	return s.update(roomID, func(r *memoryRoom) {
		if !slices.Contains(r.room.LockedSeats, seat) {
			r.room.LockedSeats = append(r.room.LockedSeats, seat)
			slices.Sort(r.room.LockedSeats)
		}
	})
}

func (s *MemoryStore) RemoveLockedSeat(ctx context.Context, roomID string, seat int) error {
	return s.update(roomID, func(r *memoryRoom) {
		r.room.LockedSeats = slices.DeleteFunc(r.room.LockedSeats, func(i int) bool { return i == seat })
	})
}

func (s *MemoryStore) SetMicsLocked(ctx context.Context, roomID string, locked bool) error {
	return s.update(roomID, func(r *memoryRoom) {
		r.room.MicsLocked = locked
	})
}

func (s *MemoryStore) SetMicCount(ctx context.Context, roomID string, count int, speakers []model.Speaker) error {
	if !model.ValidMicCount(count) {
		return ErrInvalidLayout
	}
	return s.update(roomID, func(r *memoryRoom) {
		r.room.MicCount = count
		r.setSpeakers(speakers)
	})
}

func (s *MemoryStore) AddModerator(ctx context.Context, roomID string, userID int64) error {
	return s.update(roomID, func(r *memoryRoom) {
		if !slices.Contains(r.room.Moderators, userID) {
			r.room.Moderators = append(r.room.Moderators, userID)
			slices.Sort(r.room.Moderators)
		}
	})
}

func (s *MemoryStore) Subscribe(ctx context.Context, roomID string) (<-chan model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}

	ch := make(chan model.Room, 1)
	ch <- r.snapshot()
	r.subs[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(r.subs, ch)
		close(ch)
	}()

	return ch, nil
}

func (s *MemoryStore) update(roomID string, fn func(r *memoryRoom)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	fn(r)

	snap := r.snapshot()
	for ch := range r.subs {
		offer(ch, snap.Clone())
	}
	return nil
}

func (r *memoryRoom) setSpeakers(speakers []model.Speaker) {
	r.room.Speakers = withoutCharm(speakers)
	for userID := range r.charm {
		if _, seated := r.room.SpeakerByUser(userID); !seated {
			delete(r.charm, userID)
		}
	}
}

func (r *memoryRoom) snapshot() model.Room {
	out := normalize(r.room)
	for i := range out.Speakers {
		out.Speakers[i].Charm = r.charm[out.Speakers[i].UserID]
	}
	return out
}
