package model

import (
	"slices"
	"time"
)

// Gift is a catalog entry that can be sent to seated users.
type Gift struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Icon      string `mapstructure:"icon"`
	Cost      int64  `mapstructure:"cost"`
	Animation string `mapstructure:"animation"`
	IsLucky   bool   `mapstructure:"is_lucky"`
	Category  string `mapstructure:"category"`
}

// LuckyMultiplier is one weighted entry of the lucky payout table.
// Chance is a relative weight and need not be normalized. Value may be
// fractional; payouts are truncated to whole coins.
type LuckyMultiplier struct {
	Value  float64 `mapstructure:"value"`
	Chance float64 `mapstructure:"chance"`
}

// GameSettings holds the read-only tuning of the room economy.
type GameSettings struct {
	LuckyGiftWinRate float64 // Percent, 0-100
	LuckyMultipliers []LuckyMultiplier
	EmojiDuration    time.Duration
	AvailableEmojis  []string
}

// LuckyBag is a sender-funded, limited-supply, time-boxed reward pool.
type LuckyBag struct {
	ID              string    `db:"id"`
	SenderID        int64     `db:"sender_id"`
	SenderName      string    `db:"sender_name"`
	RoomID          string    `db:"room_id"`
	TotalAmount     int64     `db:"total_amount"`
	RemainingAmount int64     `db:"remaining_amount"`
	RecipientsLimit int       `db:"recipients_limit"`
	ClaimedBy       []int64   `db:"claimed_by"`
	CreatedAt       time.Time `db:"created_at"`
	ExpiresAt       time.Time `db:"expires_at"`
}

// Share is the fixed per-claim amount, decided at creation.
func (b *LuckyBag) Share() int64 {
	if b.RecipientsLimit <= 0 {
		return 0
	}
	return b.TotalAmount / int64(b.RecipientsLimit)
}

// IsActive reports whether the bag is still offered at the given time.
func (b *LuckyBag) IsActive(now time.Time) bool {
	return b.ExpiresAt.After(now)
}

// HasClaimed reports whether a user already claimed from the bag.
func (b *LuckyBag) HasClaimed(userID int64) bool {
	return slices.Contains(b.ClaimedBy, userID)
}

// IsExhausted reports whether no further claim can succeed.
func (b *LuckyBag) IsExhausted() bool {
	share := b.Share()
	return share <= 0 || b.RemainingAmount < share || len(b.ClaimedBy) >= b.RecipientsLimit
}
