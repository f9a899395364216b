package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, int64(10000), cfg.Wallet.InitialCoins)
	assert.Equal(t, 30.0, cfg.Economy.LuckyGiftWinRate)
	assert.Equal(t, int64(70), cfg.Economy.HostDiamondPercent)
	assert.Equal(t, int64(1), cfg.Economy.AgentCommissionPercent)
	assert.Equal(t, int64(100000), cfg.Economy.LuckyWinAnnounceThreshold)
	assert.Equal(t, int64(5000), cfg.Economy.GiftAnnounceThreshold)
	assert.Equal(t, 1200*time.Millisecond, cfg.Combo.DebounceWindow)
	assert.Equal(t, 5*time.Second, cfg.Combo.Expiry)
	assert.Equal(t, 5*time.Minute, cfg.LuckyBag.TTL)
	assert.Equal(t, 8, cfg.Room.DefaultMicCount)
	assert.Equal(t, 4*time.Second, cfg.Room.EmojiDuration)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
bot:
  token: "abc"
admin:
  ids: [1, 2]
economy:
  lucky_gift_win_rate: 50
  lucky_multipliers:
    - value: 0.5
      chance: 70
    - value: 10
      chance: 30
  gifts:
    - id: rose
      name: Rose
      icon: "🌹"
      cost: 10
combo:
  debounce_window: 800ms
room:
  default_mic_count: 15
  emojis: ["😀", "🔥"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Bot.Token)
	assert.True(t, cfg.IsAdmin(2))
	assert.False(t, cfg.IsAdmin(3))
	assert.Equal(t, 50.0, cfg.Economy.LuckyGiftWinRate)
	require.Len(t, cfg.Economy.LuckyMultipliers, 2)
	assert.Equal(t, 0.5, cfg.Economy.LuckyMultipliers[0].Value)
	assert.Equal(t, 10.0, cfg.Economy.LuckyMultipliers[1].Value)
	assert.Equal(t, 30.0, cfg.Economy.LuckyMultipliers[1].Chance)
	require.Len(t, cfg.Economy.Gifts, 1)
	assert.Equal(t, int64(10), cfg.Economy.Gifts[0].Cost)
	assert.Equal(t, 800*time.Millisecond, cfg.Combo.DebounceWindow)
	assert.Equal(t, 15, cfg.Room.DefaultMicCount)
	assert.Equal(t, []string{"😀", "🔥"}, cfg.Room.Emojis)
}

func TestLoadRejectsUnknownMicLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("room:\n  default_mic_count: 9\n"), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestIsChatAllowed(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.IsChatAllowed(-100))

	cfg.Whitelist.Chats = []int64{-100}
	assert.True(t, cfg.IsChatAllowed(-100))
	assert.False(t, cfg.IsChatAllowed(-200))
}
