package economy

import "math"

// Level bounds.
const (
	MinLevel = 1
	MaxLevel = 100
)

// Level converts wealth or recharge points into a badge level.
func Level(points int64) int {
	if points <= 0 {
		return MinLevel
	}
	l := int(math.Floor(math.Sqrt(float64(points)) / 200))
	return max(MinLevel, min(MaxLevel, l))
}

// BagShare is the fixed per-claim amount of a lucky bag.
func BagShare(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	return total / int64(limit)
}
