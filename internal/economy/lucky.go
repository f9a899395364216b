package economy

import (
	"math/rand/v2"

	"voice-room/internal/model"
)

// DefaultWinRate is the lucky gift win rate, in percent, when none is configured.
const DefaultWinRate = 30.0

// RandSource yields uniform values in [0, 1).
type RandSource interface {
	Float64() float64
}

// Float64Func adapts a function to RandSource.
type Float64Func func() float64

// Float64 implements RandSource.
func (f Float64Func) Float64() float64 { return f() }

// GlobalRand draws from the process-wide generator.
var GlobalRand RandSource = Float64Func(rand.Float64)

// EffectiveWinRate maps an unset rate to DefaultWinRate.
func EffectiveWinRate(rate float64) float64 {
	if rate <= 0 {
		return DefaultWinRate
	}
	return rate
}

// PickMultiplier walks a weighted table. Weights need not sum to one.
// It returns false only for an empty table; a draw that falls off the end
// because of rounding returns the first entry.
func PickMultiplier(table []model.LuckyMultiplier, rng RandSource) (model.LuckyMultiplier, bool) {
	if len(table) == 0 {
		return model.LuckyMultiplier{}, false
	}

	var total float64
	for _, m := range table {
		total += m.Chance
	}
	if total <= 0 {
		return table[0], true
	}

	r := rng.Float64() * total
	for _, m := range table {
		if r < m.Chance {
			return m, true
		}
		r -= m.Chance
	}
	return table[0], true
}

// IsWin draws against a percent rate.
func IsWin(winRate float64, rng RandSource) bool {
	return rng.Float64()*100 < winRate
}

// ResolveLucky returns the coins paid back to the sender of a gift send,
// truncated toward zero. Non-lucky gifts and empty tables always pay zero.
func ResolveLucky(gift model.Gift, quantity int64, winRate float64, table []model.LuckyMultiplier, rng RandSource) int64 {
	if !gift.IsLucky || len(table) == 0 {
		return 0
	}
	if !IsWin(EffectiveWinRate(winRate), rng) {
		return 0
	}
	m, ok := PickMultiplier(table, rng)
	if !ok {
		return 0
	}
	return int64(float64(gift.Cost*quantity) * m.Value)
}
