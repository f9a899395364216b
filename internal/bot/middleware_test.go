package bot

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"voice-room/internal/config"
)

// apiRecorder stands in for the Bot API and records called methods.
type apiRecorder struct {
	mu      sync.Mutex
	methods []string
}

func (r *apiRecorder) called() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.methods)
}

func newTestBot(t *testing.T) (*tele.Bot, *apiRecorder) {
	t.Helper()
	rec := &apiRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.methods = append(rec.methods, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`))
	}))
	t.Cleanup(srv.Close)

	b, err := tele.NewBot(tele.Settings{URL: srv.URL, Token: "test", Offline: true, Synchronous: true})
	require.NoError(t, err)
	return b, rec
}

func groupUpdate(b *tele.Bot, chatID, userID int64, text string) tele.Context {
	return b.NewContext(tele.Update{Message: &tele.Message{
		ID:     1,
		Text:   text,
		Chat:   &tele.Chat{ID: chatID, Type: tele.ChatGroup},
		Sender: &tele.User{ID: userID, Username: "user"},
	}})
}

func privateUpdate(b *tele.Bot, userID int64, text string) tele.Context {
	return b.NewContext(tele.Update{Message: &tele.Message{
		ID:     1,
		Text:   text,
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Sender: &tele.User{ID: userID, Username: "user"},
	}})
}

func runThrough(mw tele.MiddlewareFunc, c tele.Context) (bool, error) {
	called := false
	err := mw(func(tele.Context) error {
		called = true
		return nil
	})(c)
	return called, err
}

func TestWhitelistMiddleware(t *testing.T) {
	b, _ := newTestBot(t)
	cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: []int64{-100}}}
	mw := WhitelistMiddleware(cfg, NewMemberCache())

	called, err := runThrough(mw, groupUpdate(b, -200, 501, "/room"))
	require.NoError(t, err)
	assert.False(t, called, "non-whitelisted group must be ignored")

	called, _ = runThrough(mw, privateUpdate(b, 502, "/wallet"))
	assert.False(t, called, "unknown private user must be ignored")

	called, _ = runThrough(mw, groupUpdate(b, -100, 502, "/room"))
	assert.True(t, called)

	called, _ = runThrough(mw, privateUpdate(b, 502, "/wallet"))
	assert.True(t, called, "user seen in a whitelisted room may talk privately")
}

func TestWhitelistMiddlewareEmptyAllowsAll(t *testing.T) {
	b, _ := newTestBot(t)
	mw := WhitelistMiddleware(&config.Config{}, NewMemberCache())

	called, _ := runThrough(mw, groupUpdate(b, -999, 601, "/room"))
	assert.True(t, called)
	called, _ = runThrough(mw, privateUpdate(b, 602, "/wallet"))
	assert.True(t, called)
}

func TestWhitelistMiddlewareCachesAreIndependent(t *testing.T) {
	b, _ := newTestBot(t)
	cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: []int64{-100}}}
	first := NewMemberCache()

	called, _ := runThrough(WhitelistMiddleware(cfg, first), groupUpdate(b, -100, 700, "/room"))
	require.True(t, called)
	assert.True(t, first.Has(700))

	called, _ = runThrough(WhitelistMiddleware(cfg, NewMemberCache()), privateUpdate(b, 700, "/wallet"))
	assert.False(t, called)
}

func TestGroupOnlyMiddleware(t *testing.T) {
	b, rec := newTestBot(t)
	mw := GroupOnlyMiddleware()

	called, err := runThrough(mw, groupUpdate(b, -100, 1, "/seat 1"))
	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, rec.called())

	called, err = runThrough(mw, privateUpdate(b, 1, "/seat 1"))
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, []string{"sendMessage"}, rec.called())
}

func TestAdminMiddleware(t *testing.T) {
	b, rec := newTestBot(t)
	mw := AdminMiddleware(&config.Config{Admin: config.AdminConfig{IDs: []int64{7}}})

	called, err := runThrough(mw, groupUpdate(b, -100, 7, "/recharge 1 100"))
	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, rec.called())

	called, err = runThrough(mw, groupUpdate(b, -100, 8, "/recharge 1 100"))
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, []string{"sendMessage"}, rec.called())
}

func TestRecoveryMiddleware(t *testing.T) {
	b, rec := newTestBot(t)
	h := RecoveryMiddleware()(func(tele.Context) error { panic("boom") })

	assert.NotPanics(t, func() {
		assert.NoError(t, h(groupUpdate(b, -100, 1, "/send rose")))
	})
	assert.Equal(t, []string{"sendMessage"}, rec.called())
}

// TestAdminCheckProperty checks that a user is an admin exactly when listed.
func TestAdminCheckProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		adminIDs := rapid.SliceOfN(rapid.Int64Range(1, 1000000000), 1, 10).Draw(t, "adminIDs")
		cfg := &config.Config{Admin: config.AdminConfig{IDs: adminIDs}}

		known := rapid.SampledFrom(adminIDs).Draw(t, "known")
		if !cfg.IsAdmin(known) {
			t.Fatalf("admin %d not recognized, admins=%v", known, adminIDs)
		}

		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")
		if cfg.IsAdmin(userID) != slices.Contains(adminIDs, userID) {
			t.Fatalf("admin check mismatch for %d, admins=%v", userID, adminIDs)
		}
	})
}

// TestWhitelistCheckProperty checks that a chat is allowed exactly when
// listed, or when the list is empty.
func TestWhitelistCheckProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chats := rapid.SliceOfN(rapid.Int64Range(-1000000000, -1), 0, 10).Draw(t, "chats")
		cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: chats}}

		chatID := rapid.Int64Range(-1000000000, -1).Draw(t, "chatID")
		want := len(chats) == 0 || slices.Contains(chats, chatID)
		if cfg.IsChatAllowed(chatID) != want {
			t.Fatalf("whitelist mismatch for %d, chats=%v", chatID, chats)
		}
	})
}
