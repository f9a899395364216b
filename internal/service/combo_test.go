package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-room/internal/config"
	"voice-room/internal/model"
)

func fastCombo() config.ComboConfig {
	return config.ComboConfig{DebounceWindow: 50 * time.Millisecond, Expiry: 150 * time.Millisecond}
}

func TestComboBatcher_CoalescesHits(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, fastCombo())
	sender := h.join(model.Wallet{ID: 10, Name: "sender", Coins: 10000})
	h.seat(model.Wallet{ID: 20, Name: "alice"}, 0)

	const hits = 7
	for i := 1; i <= hits; i++ {
		st, err := h.combos.Hit(context.Background(), sender, "rose", 1, []int64{20})
		require.NoError(t, err)
		assert.Equal(t, i, st.Hits)
	}

	// Every hit is applied locally at once.
	assert.Equal(t, int64(10000-hits*10), sender.Wallet().Coins)
	assert.Zero(t, h.ledger.commitCount())

	require.Eventually(t, func() bool { return h.ledger.commitCount() == 1 }, time.Second, 5*time.Millisecond)
	h.writer.Wait()

	c := h.ledger.lastCommit()
	assert.Equal(t, int64(hits), c.Event.Quantity)
	assert.Equal(t, int64(-hits*10), c.Sender.Coins)
	assert.Equal(t, int64(10000-hits*10), h.wallets.get(10).Coins)
	assert.Equal(t, int64(hits*10), h.wallets.get(20).Charm)

	require.Eventually(t, func() bool { return h.presenter.endedCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, h.combos.Active())
	assert.Equal(t, 1, h.ledger.commitCount())
}

func TestComboBatcher_NewSessionAfterExpiry(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, fastCombo())
	sender := h.join(model.Wallet{ID: 10, Name: "sender", Coins: 10000})
	h.seat(model.Wallet{ID: 20, Name: "alice"}, 0)

	_, err := h.combos.Hit(context.Background(), sender, "rose", 1, []int64{20})
	require.NoError(t, err)
	_, err = h.combos.Hit(context.Background(), sender, "rose", 1, []int64{20})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.combos.Active() == 0 }, time.Second, 5*time.Millisecond)

	st, err := h.combos.Hit(context.Background(), sender, "rose", 1, []int64{20})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Hits)

	require.Eventually(t, func() bool { return h.ledger.commitCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestComboBatcher_HitAfterDebounceStartsNewCommit(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{DebounceWindow: 30 * time.Millisecond, Expiry: time.Second})
	sender := h.join(model.Wallet{ID: 10, Name: "sender", Coins: 10000})
	h.seat(model.Wallet{ID: 20, Name: "alice"}, 0)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := h.combos.Hit(ctx, sender, "rose", 1, []int64{20})
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return h.ledger.commitCount() == 1 }, time.Second, 5*time.Millisecond)
	h.writer.Wait()
	assert.Equal(t, int64(3), h.ledger.lastCommit().Event.Quantity)

	// The combo display is still up; the next hit goes into a fresh commit.
	require.Equal(t, 1, h.combos.Active())
	st, err := h.combos.Hit(ctx, sender, "rose", 1, []int64{20})
	require.NoError(t, err)
	assert.Equal(t, 4, st.Hits)

	require.Eventually(t, func() bool { return h.ledger.commitCount() == 2 }, time.Second, 5*time.Millisecond)
	h.writer.Wait()
	assert.Equal(t, int64(1), h.ledger.lastCommit().Event.Quantity)
	assert.Equal(t, int64(10000-40), h.wallets.get(10).Coins)
	assert.Zero(t, h.presenter.endedCount())
}

func TestComboBatcher_SeparateKeys(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{DebounceWindow: time.Hour, Expiry: time.Hour})
	sender := h.join(model.Wallet{ID: 10, Name: "sender", Coins: 10000})
	h.seat(model.Wallet{ID: 20, Name: "alice"}, 0)
	h.seat(model.Wallet{ID: 21, Name: "bob"}, 1)

	ctx := context.Background()
	_, err := h.combos.Hit(ctx, sender, "rose", 1, []int64{20})
	require.NoError(t, err)
	_, err = h.combos.Hit(ctx, sender, "rose", 1, []int64{21})
	require.NoError(t, err)
	_, err = h.combos.Hit(ctx, sender, "heart", 1, []int64{20})
	require.NoError(t, err)
	// Recipient order does not matter.
	_, err = h.combos.Hit(ctx, sender, "rose", 1, []int64{21, 20})
	require.NoError(t, err)
	st, err := h.combos.Hit(ctx, sender, "rose", 1, []int64{20, 21})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Hits)

	assert.Equal(t, 4, h.combos.Active())

	h.combos.Flush()
	h.writer.Wait()
	assert.Equal(t, 4, h.ledger.commitCount())
	assert.Zero(t, h.combos.Active())
	assert.Equal(t, 4, h.presenter.endedCount())
}

func TestComboBatcher_RejectedHitKeepsSession(t *testing.T) {
	h := newHarness(t, model.GameSettings{}, config.ComboConfig{DebounceWindow: time.Hour, Expiry: time.Hour})
	sender := h.join(model.Wallet{ID: 10, Name: "sender", Coins: 25})
	h.seat(model.Wallet{ID: 20, Name: "alice"}, 0)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := h.combos.Hit(ctx, sender, "rose", 1, []int64{20})
		require.NoError(t, err)
	}
	_, err := h.combos.Hit(ctx, sender, "rose", 1, []int64{20})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	h.combos.Flush()
	h.writer.Wait()

	require.Equal(t, 1, h.ledger.commitCount())
	assert.Equal(t, int64(2), h.ledger.lastCommit().Event.Quantity)
	assert.Equal(t, int64(5), h.wallets.get(10).Coins)
}

func TestCountdownReset(t *testing.T) {
	fired := make(chan time.Time, 4)
	c := newCountdown(40*time.Millisecond, func() { fired <- time.Now() })

	start := time.Now()
	c.Reset()
	time.Sleep(20 * time.Millisecond)
	c.Reset()

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 55*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("countdown never fired")
	}

	c.Reset()
	c.Stop()
	select {
	case <-fired:
		t.Fatal("stopped countdown fired")
	case <-time.After(80 * time.Millisecond):
	}
}
