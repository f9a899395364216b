package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-room/internal/config"
	"voice-room/internal/model"
	"voice-room/internal/roomstate"
)

func TestEnsureWallet(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{})
	ctx := context.Background()

	w, created, err := h.accounts.EnsureWallet(ctx, 42, "neo")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(10000), w.Coins)

	w, created, err = h.accounts.EnsureWallet(ctx, 42, "trinity")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "trinity", w.Name)
	assert.Equal(t, "trinity", h.wallets.get(42).Name)
}

func TestEnsureClientReusesSession(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{})
	ctx := context.Background()

	a, err := h.accounts.EnsureClient(ctx, testRoom, roomstate.Actor{UserID: 5, Name: "a"})
	require.NoError(t, err)
	b, err := h.accounts.EnsureClient(ctx, testRoom, roomstate.Actor{UserID: 5, Name: "a"})
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = h.accounts.EnsureClient(ctx, "missing", roomstate.Actor{UserID: 5})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSessionManagerFansOutUpdates(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{})
	watcher := h.join(model.Wallet{ID: 5, Name: "watcher"})
	speaker := h.join(model.Wallet{ID: 6, Name: "speaker"})

	require.NoError(t, speaker.Projection.JoinSeat(3))

	require.Eventually(t, func() bool {
		room := watcher.Projection.Snapshot()
		sp, ok := room.SpeakerAt(3)
		return ok && sp.UserID == 6
	}, time.Second, 5*time.Millisecond)

	h.accounts.LeaveRoom(testRoom, 6)
	_, ok := h.sessions.Client(testRoom, 6)
	assert.False(t, ok)
	assert.Len(t, h.sessions.Clients(testRoom), 1)
}

func TestRechargeRefreshesClients(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{})
	c := h.join(model.Wallet{ID: 5, Name: "a", Coins: 10})

	_, err := h.accounts.Recharge(context.Background(), 5, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	w, err := h.accounts.Recharge(context.Background(), 5, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(510), w.Coins)
	assert.Equal(t, int64(510), c.Wallet().Coins)
	assert.Equal(t, int64(500), c.Wallet().RechargePoints)
}

func TestCreateAgencyAndSetHost(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{})
	ctx := context.Background()

	a, err := h.accounts.CreateAgency(ctx, "stars", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.AgentID)

	h.wallets.put(model.Wallet{ID: 8, Name: "host"})
	w, err := h.accounts.SetHost(ctx, 8, true, &a.ID)
	require.NoError(t, err)
	assert.True(t, w.HasAgency())
}

func TestOpenRoomIsIdempotent(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{})
	ctx := context.Background()

	room, err := h.rooms.OpenRoom(ctx, testRoom, 99, "Other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), room.HostID)
	assert.Equal(t, "Lounge", room.Title)
	assert.Equal(t, model.DefaultMicCount, room.MicCount)
}

func TestSendMessageCarriesBadges(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{})
	c := h.join(model.Wallet{ID: 5, Name: "rich", Wealth: 4000000 * 16, RechargePoints: 0, IsVip: true})

	msg, err := h.rooms.SendMessage(context.Background(), c, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, model.MessageTypeText, msg.Type)
	assert.Equal(t, 40, msg.WealthLevel)
	assert.Equal(t, 1, msg.RechargeLevel)
	assert.True(t, msg.IsVip)

	_, err = h.rooms.SendMessage(context.Background(), c, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	msgs, err := h.rooms.RecentMessages(context.Background(), testRoom)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestAddModerator(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{})
	host := h.join(model.Wallet{ID: 1, Name: "host"})
	guest := h.join(model.Wallet{ID: 2, Name: "guest"})

	assert.ErrorIs(t, h.rooms.AddModerator(context.Background(), guest, 3), ErrPermissionDenied)
	require.NoError(t, h.rooms.AddModerator(context.Background(), host, 2))

	require.Eventually(t, func() bool { return guest.Projection.IsElevated() }, time.Second, 5*time.Millisecond)
}

func TestRanking(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{})
	ranking := NewRankingService(h.wallets, h.ledger)

	sender := h.join(model.Wallet{ID: 10, Name: "big", Coins: 100000})
	small := h.join(model.Wallet{ID: 11, Name: "small", Coins: 100000})
	h.seat(model.Wallet{ID: 20, Name: "alice"}, 0)

	ctx := context.Background()
	_, err := h.gifts.SendGift(ctx, sender, "crown", 1, []int64{20})
	require.NoError(t, err)
	_, err = h.gifts.SendGift(ctx, small, "rose", 1, []int64{20})
	require.NoError(t, err)
	h.writer.Wait()

	senders, err := ranking.TopSenders(ctx, 2)
	require.NoError(t, err)
	require.Len(t, senders, 2)
	assert.Equal(t, int64(10), senders[0].ID)
	assert.Equal(t, int64(11), senders[1].ID)

	receivers, err := ranking.TopReceivers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), receivers[0].ID)

	top, err := ranking.TopContributors(ctx, testRoom, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(5000), top[0].Amount)
	assert.Equal(t, int64(10), top[1].Amount)
}
