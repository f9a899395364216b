package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-room/internal/config"
	"voice-room/internal/model"
)

func TestNewDefaults(t *testing.T) {
	c := New(nil, model.GameSettings{})

	assert.Len(t, c.Gifts(), len(DefaultGifts))
	s := c.Settings()
	assert.Equal(t, DefaultMultipliers, s.LuckyMultipliers)
	assert.Equal(t, 4*time.Second, s.EmojiDuration)
	assert.True(t, c.IsEmojiAllowed("🔥"))
	assert.False(t, c.IsEmojiAllowed("x"))

	g, ok := c.Gift("clover")
	require.True(t, ok)
	assert.True(t, g.IsLucky)

	_, ok = c.Gift("missing")
	assert.False(t, ok)
}

func TestLuckyCategoryImpliesLucky(t *testing.T) {
	c := New([]model.Gift{
		{ID: "a", Cost: 1, Category: CategoryLucky},
		{ID: "b", Cost: 1},
	}, model.GameSettings{})

	a, _ := c.Gift("a")
	b, _ := c.Gift("b")
	assert.True(t, a.IsLucky)
	assert.False(t, b.IsLucky)
	assert.Equal(t, CategoryPopular, b.Category)
}

func TestCatalogIsImmutable(t *testing.T) {
	c := New(nil, model.GameSettings{})

	gifts := c.Gifts()
	gifts[0].Cost = 999999
	g, _ := c.Gift(gifts[0].ID)
	assert.NotEqual(t, int64(999999), g.Cost)

	s := c.Settings()
	s.LuckyMultipliers[0].Value = 42
	assert.NotEqual(t, 42.0, c.Settings().LuckyMultipliers[0].Value)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Economy.LuckyGiftWinRate = 100
	cfg.Economy.LuckyMultipliers = []model.LuckyMultiplier{{Value: 5, Chance: 1}}
	cfg.Room.EmojiDuration = 2 * time.Second

	s := FromConfig(cfg).Settings()
	assert.Equal(t, 100.0, s.LuckyGiftWinRate)
	assert.Equal(t, []model.LuckyMultiplier{{Value: 5, Chance: 1}}, s.LuckyMultipliers)
	assert.Equal(t, 2*time.Second, s.EmojiDuration)
}
