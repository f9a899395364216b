package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"voice-room/internal/config"
)

// MemberCache remembers users seen in an allowed room chat. Those users may
// also talk to the bot privately for wallet and ranking commands.
type MemberCache struct {
	mu   sync.RWMutex
	seen map[int64]struct{}
}

// NewMemberCache creates an empty MemberCache.
func NewMemberCache() *MemberCache {
	return &MemberCache{seen: make(map[int64]struct{})}
}

// Add marks a user as a room member.
func (m *MemberCache) Add(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[userID] = struct{}{}
}

// Has reports whether a user was seen in an allowed room.
func (m *MemberCache) Has(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[userID]
	return ok
}

// WhitelistMiddleware drops updates from group chats that may not host rooms,
// and private updates from users never seen in one.
func WhitelistMiddleware(cfg *config.Config, members *MemberCache) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat, sender := c.Chat(), c.Sender()
			if chat == nil || sender == nil {
				return nil
			}

			if chat.Type == tele.ChatPrivate {
				if len(cfg.Whitelist.Chats) == 0 || members.Has(sender.ID) {
					return next(c)
				}
				log.Debug().
					Int64("user_id", sender.ID).
					Msg("Ignoring private chat from unknown user")
				return nil
			}

			if !cfg.IsChatAllowed(chat.ID) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Msg("Ignoring update from non-whitelisted chat")
				return nil
			}

			members.Add(sender.ID)
			return next(c)
		}
	}
}

// GroupOnlyMiddleware keeps room commands out of private chats, where there
// is no room to act on.
func GroupOnlyMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if chat := c.Chat(); chat != nil && chat.Type == tele.ChatPrivate {
				return c.Reply("❌ Rooms live in group chats")
			}
			return next(c)
		}
	}
}

// AdminMiddleware rejects senders that are not bot administrators.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ Permission denied: admin only")
			}

			return next(c)
		}
	}
}

// LoggingMiddleware logs every update at debug level, tagged with the room
// it belongs to.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ev := log.Debug()
			if sender := c.Sender(); sender != nil {
				ev = ev.Int64("user_id", sender.ID).Str("username", sender.Username)
			}
			if chat := c.Chat(); chat != nil && chat.Type != tele.ChatPrivate {
				ev = ev.Int64("room_chat", chat.ID)
			}
			if cb := c.Callback(); cb != nil {
				ev = ev.Str("callback", cb.Data)
			}
			ev.Str("text", c.Text()).Msg("Received update")

			return next(c)
		}
	}
}

// RecoveryMiddleware turns a handler panic into a logged error and a reply.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("text", c.Text()).
						Msg("Recovered from panic in handler")
					err = c.Reply("❌ Internal error, please try again later")
				}
			}()
			return next(c)
		}
	}
}
