// Package catalog supplies gift definitions and game settings. Both are
// read-only once loaded.
package catalog

import (
	"slices"
	"time"

	"voice-room/internal/config"
	"voice-room/internal/model"
)

// Gift categories.
const (
	CategoryPopular   = "popular"
	CategoryExclusive = "exclusive"
	CategoryLucky     = "lucky"
	CategoryCelebrity = "celebrity"
	CategoryTrend     = "trend"
)

// Animation kinds.
const (
	AnimationPop        = "pop"
	AnimationFly        = "fly"
	AnimationFullScreen = "full-screen"
	AnimationShake      = "shake"
	AnimationGlow       = "glow"
	AnimationBounce     = "bounce"
)

// DefaultGifts is used when no gifts are configured.
var DefaultGifts = []model.Gift{
	{ID: "rose", Name: "Rose", Icon: "🌹", Cost: 10, Animation: AnimationPop, Category: CategoryPopular},
	{ID: "heart", Name: "Heart", Icon: "❤️", Cost: 100, Animation: AnimationBounce, Category: CategoryPopular},
	{ID: "clover", Name: "Clover", Icon: "🍀", Cost: 50, Animation: AnimationGlow, Category: CategoryLucky, IsLucky: true},
	{ID: "star", Name: "Lucky Star", Icon: "⭐", Cost: 500, Animation: AnimationShake, Category: CategoryLucky, IsLucky: true},
	{ID: "crown", Name: "Crown", Icon: "👑", Cost: 5000, Animation: AnimationFly, Category: CategoryExclusive},
	{ID: "rocket", Name: "Rocket", Icon: "🚀", Cost: 20000, Animation: AnimationFullScreen, Category: CategoryCelebrity},
}

// DefaultMultipliers is the lucky payout table used when none is configured.
var DefaultMultipliers = []model.LuckyMultiplier{
	{Value: 2, Chance: 60},
	{Value: 5, Chance: 25},
	{Value: 10, Chance: 10},
	{Value: 100, Chance: 4},
	{Value: 1000, Chance: 1},
}

// DefaultEmojis are the seat reactions offered when none are configured.
var DefaultEmojis = []string{"😀", "😂", "😍", "👏", "🔥", "🎉", "😢", "😡"}

// Catalog is an immutable view of gifts and settings.
type Catalog struct {
	gifts    []model.Gift
	byID     map[string]model.Gift
	settings model.GameSettings
}

// New builds a Catalog, filling unset values from the defaults.
func New(gifts []model.Gift, settings model.GameSettings) *Catalog {
	if len(gifts) == 0 {
		gifts = DefaultGifts
	}
	if len(settings.LuckyMultipliers) == 0 {
		settings.LuckyMultipliers = DefaultMultipliers
	}
	if len(settings.AvailableEmojis) == 0 {
		settings.AvailableEmojis = DefaultEmojis
	}
	if settings.EmojiDuration <= 0 {
		settings.EmojiDuration = 4 * time.Second
	}

	c := &Catalog{
		gifts:    slices.Clone(gifts),
		byID:     make(map[string]model.Gift, len(gifts)),
		settings: settings,
	}
	for i := range c.gifts {
		// Lucky is a category as well as a flag.
		if c.gifts[i].Category == CategoryLucky {
			c.gifts[i].IsLucky = true
		}
		if c.gifts[i].Category == "" {
			c.gifts[i].Category = CategoryPopular
		}
		c.byID[c.gifts[i].ID] = c.gifts[i]
	}
	return c
}

// FromConfig builds a Catalog from application config.
func FromConfig(cfg *config.Config) *Catalog {
	return New(cfg.Economy.Gifts, model.GameSettings{
		LuckyGiftWinRate: cfg.Economy.LuckyGiftWinRate,
		LuckyMultipliers: cfg.Economy.LuckyMultipliers,
		EmojiDuration:    cfg.Room.EmojiDuration,
		AvailableEmojis:  cfg.Room.Emojis,
	})
}

// Gift looks up a gift by id.
func (c *Catalog) Gift(id string) (model.Gift, bool) {
	g, ok := c.byID[id]
	return g, ok
}

// Gifts returns every gift in display order.
func (c *Catalog) Gifts() []model.Gift {
	return slices.Clone(c.gifts)
}

// Settings returns the game settings.
func (c *Catalog) Settings() model.GameSettings {
	s := c.settings
	s.LuckyMultipliers = slices.Clone(s.LuckyMultipliers)
	s.AvailableEmojis = slices.Clone(s.AvailableEmojis)
	return s
}

// IsEmojiAllowed reports whether an emoji is one of the offered reactions.
func (c *Catalog) IsEmojiAllowed(emoji string) bool {
	return slices.Contains(c.settings.AvailableEmojis, emoji)
}
