package roomstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"voice-room/internal/model"
	"voice-room/internal/pkg/cache"
)

// Document hash fields.
const (
	fieldHostID     = "host_id"
	fieldTitle      = "title"
	fieldMicCount   = "mic_count"
	fieldMicsLocked = "mics_locked"
	fieldSpeakers   = "speakers"
)

// RedisStore keeps each room in a hash, with locked seats and moderators as
// sets and charm as a hash of per-user counters. Every write publishes on
// the room's update channel; subscribers re-read the whole document.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Create(ctx context.Context, room model.Room) error {
	if room.MicCount == 0 {
		room.MicCount = model.DefaultMicCount
	}
	speakers, err := json.Marshal(withoutCharm(room.Speakers))
	if err != nil {
		return fmt.Errorf("failed to encode speakers: %w", err)
	}

	created, err := s.rdb.HSetNX(ctx, cache.Key(cache.KeyRoomDoc, room.ID), fieldHostID, room.HostID).Result()
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	if !created {
		return ErrRoomExists
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, cache.Key(cache.KeyRoomDoc, room.ID),
			fieldTitle, room.Title,
			fieldMicCount, room.MicCount,
			fieldMicsLocked, room.MicsLocked,
			fieldSpeakers, speakers,
		)
		for _, seat := range room.LockedSeats {
			pipe.SAdd(ctx, cache.Key(cache.KeyRoomLocked, room.ID), seat)
		}
		for _, id := range room.Moderators {
			pipe.SAdd(ctx, cache.Key(cache.KeyRoomMods, room.ID), id)
		}
		for _, sp := range room.Speakers {
			if sp.Charm != 0 {
				pipe.HSet(ctx, cache.Key(cache.KeyRoomCharm, room.ID), strconv.FormatInt(sp.UserID, 10), sp.Charm)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return s.publish(ctx, room.ID)
}

func (s *RedisStore) Get(ctx context.Context, roomID string) (model.Room, error) {
	var (
		doc     *redis.MapStringStringCmd
		locked  *redis.StringSliceCmd
		mods    *redis.StringSliceCmd
		charmed *redis.MapStringStringCmd
	)
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		doc = pipe.HGetAll(ctx, cache.Key(cache.KeyRoomDoc, roomID))
		locked = pipe.SMembers(ctx, cache.Key(cache.KeyRoomLocked, roomID))
		mods = pipe.SMembers(ctx, cache.Key(cache.KeyRoomMods, roomID))
		charmed = pipe.HGetAll(ctx, cache.Key(cache.KeyRoomCharm, roomID))
		return nil
	})
	if err != nil {
		return model.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	fields := doc.Val()
	if len(fields) == 0 {
		return model.Room{}, ErrRoomNotFound
	}

	room := model.Room{ID: roomID, Title: fields[fieldTitle]}
	room.HostID, _ = strconv.ParseInt(fields[fieldHostID], 10, 64)
	room.MicCount, _ = strconv.Atoi(fields[fieldMicCount])
	room.MicsLocked = fields[fieldMicsLocked] == "1" || fields[fieldMicsLocked] == "true"
	if raw := fields[fieldSpeakers]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &room.Speakers); err != nil {
			return model.Room{}, fmt.Errorf("failed to decode speakers: %w", err)
		}
	}
	for _, v := range locked.Val() {
		if seat, err := strconv.Atoi(v); err == nil {
			room.LockedSeats = append(room.LockedSeats, seat)
		}
	}
	for _, v := range mods.Val() {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			room.Moderators = append(room.Moderators, id)
		}
	}

	charm := charmed.Val()
	for i := range room.Speakers {
		room.Speakers[i].Charm, _ = strconv.ParseInt(charm[strconv.FormatInt(room.Speakers[i].UserID, 10)], 10, 64)
	}
	return normalize(room), nil
}

func (s *RedisStore) SetSpeakers(ctx context.Context, roomID string, speakers []model.Speaker) error {
	if err := s.writeSpeakers(ctx, roomID, speakers, nil); err != nil {
		return err
	}
	return s.publish(ctx, roomID)
}

func (s *RedisStore) AddCharm(ctx context.Context, roomID string, deltas map[int64]int64) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for userID, d := range deltas {
			if _, seated := room.SpeakerByUser(userID); seated {
				pipe.HIncrBy(ctx, cache.Key(cache.KeyRoomCharm, roomID), strconv.FormatInt(userID, 10), d)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add charm: %w", err)
	}
	return s.publish(ctx, roomID)
}

func (s *RedisStore) ResetCharm(ctx context.Context, roomID string) error {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, cache.Key(cache.KeyRoomCharm, roomID)).Err(); err != nil {
		return fmt.Errorf("failed to reset charm: %w", err)
	}
	return s.publish(ctx, roomID)
}

func (s *RedisStore) AddLockedSeat(ctx context.Context, roomID string, seat int) error {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.rdb.SAdd(ctx, cache.Key(cache.KeyRoomLocked, roomID), seat).Err(); err != nil {
		return fmt.Errorf("failed to lock seat: %w", err)
	}
	return s.publish(ctx, roomID)
}

func (s *RedisStore) RemoveLockedSeat(ctx context.Context, roomID string, seat int) error {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.rdb.SRem(ctx, cache.Key(cache.KeyRoomLocked, roomID), seat).Err(); err != nil {
		return fmt.Errorf("failed to unlock seat: %w", err)
	}
	return s.publish(ctx, roomID)
}

func (s *RedisStore) SetMicsLocked(ctx context.Context, roomID string, locked bool) error {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, cache.Key(cache.KeyRoomDoc, roomID), fieldMicsLocked, locked).Err(); err != nil {
		return fmt.Errorf("failed to set mics locked: %w", err)
	}
	return s.publish(ctx, roomID)
}

func (s *RedisStore) SetMicCount(ctx context.Context, roomID string, count int, speakers []model.Speaker) error {
	if !model.ValidMicCount(count) {
		return ErrInvalidLayout
	}
	err := s.writeSpeakers(ctx, roomID, speakers, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, cache.Key(cache.KeyRoomDoc, roomID), fieldMicCount, count)
	})
	if err != nil {
		return err
	}
	return s.publish(ctx, roomID)
}

func (s *RedisStore) AddModerator(ctx context.Context, roomID string, userID int64) error {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.rdb.SAdd(ctx, cache.Key(cache.KeyRoomMods, roomID), userID).Err(); err != nil {
		return fmt.Errorf("failed to add moderator: %w", err)
	}
	return s.publish(ctx, roomID)
}

func (s *RedisStore) Subscribe(ctx context.Context, roomID string) (<-chan model.Room, error) {
	sub := s.rdb.Subscribe(ctx, cache.Key(cache.KeyRoomUpdates, roomID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	initial, err := s.Get(ctx, roomID)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan model.Room, 1)
	out <- initial

	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				room, err := s.Get(ctx, roomID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warn().Err(err).Str("room_id", roomID).Msg("Failed to refresh room after update")
					continue
				}
				offer(out, room)
			}
		}
	}()

	return out, nil
}

// writeSpeakers stores the speaker list and drops charm counters of users
// who are no longer seated. extra runs inside the same MULTI.
func (s *RedisStore) writeSpeakers(ctx context.Context, roomID string, speakers []model.Speaker, extra func(redis.Pipeliner)) error {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return err
	}

	encoded, err := json.Marshal(withoutCharm(speakers))
	if err != nil {
		return fmt.Errorf("failed to encode speakers: %w", err)
	}

	seated := make(map[string]struct{}, len(speakers))
	for _, sp := range speakers {
		seated[strconv.FormatInt(sp.UserID, 10)] = struct{}{}
	}
	charmed, err := s.rdb.HKeys(ctx, cache.Key(cache.KeyRoomCharm, roomID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read charm: %w", err)
	}
	var stale []string
	for _, id := range charmed {
		if _, ok := seated[id]; !ok {
			stale = append(stale, id)
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, cache.Key(cache.KeyRoomDoc, roomID), fieldSpeakers, encoded)
		if len(stale) > 0 {
			pipe.HDel(ctx, cache.Key(cache.KeyRoomCharm, roomID), stale...)
		}
		if extra != nil {
			extra(pipe)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set speakers: %w", err)
	}
	return nil
}

func (s *RedisStore) requireRoom(ctx context.Context, roomID string) error {
	n, err := s.rdb.Exists(ctx, cache.Key(cache.KeyRoomDoc, roomID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *RedisStore) publish(ctx context.Context, roomID string) error {
	if err := s.rdb.Publish(ctx, cache.Key(cache.KeyRoomUpdates, roomID), "changed").Err(); err != nil {
		return fmt.Errorf("failed to publish room update: %w", err)
	}
	return nil
}
