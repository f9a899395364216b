package economy

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"voice-room/internal/model"
)

// fixed always returns the same draw.
type fixed float64

func (f fixed) Float64() float64 { return float64(f) }

// sequence returns its values in order, then repeats the last one.
type sequence struct {
	values []float64
	i      int
}

func (s *sequence) Float64() float64 {
	v := s.values[min(s.i, len(s.values)-1)]
	s.i++
	return v
}

func TestPickMultiplierFrequency(t *testing.T) {
	table := []model.LuckyMultiplier{{Value: 2, Chance: 70}, {Value: 10, Chance: 30}}
	rng := rand.New(rand.NewPCG(42, 1024))

	const draws = 20000
	counts := map[float64]int{}
	for i := 0; i < draws; i++ {
		m, ok := PickMultiplier(table, rng)
		require.True(t, ok)
		counts[m.Value]++
	}

	assert.InDelta(t, 0.70, float64(counts[2])/draws, 0.02)
	assert.InDelta(t, 0.30, float64(counts[10])/draws, 0.02)
}

func TestPickMultiplierEdges(t *testing.T) {
	_, ok := PickMultiplier(nil, fixed(0.5))
	assert.False(t, ok)

	single := []model.LuckyMultiplier{{Value: 5, Chance: 1}}
	m, ok := PickMultiplier(single, fixed(0.999))
	require.True(t, ok)
	assert.Equal(t, 5.0, m.Value)

	zero := []model.LuckyMultiplier{{Value: 3, Chance: 0}, {Value: 7, Chance: 0}}
	m, ok = PickMultiplier(zero, fixed(0.5))
	require.True(t, ok)
	assert.Equal(t, 3.0, m.Value)

	// A draw at the upper bound falls off the walk and takes the first entry.
	table := []model.LuckyMultiplier{{Value: 2, Chance: 1}, {Value: 4, Chance: 1}}
	m, ok = PickMultiplier(table, fixed(1.0))
	require.True(t, ok)
	assert.Equal(t, 2.0, m.Value)

	m, _ = PickMultiplier(table, fixed(0.75))
	assert.Equal(t, 4.0, m.Value)
}

func TestResolveLucky(t *testing.T) {
	lucky := model.Gift{ID: "clover", Cost: 50, IsLucky: true}
	plain := model.Gift{ID: "rose", Cost: 50}
	table := []model.LuckyMultiplier{{Value: 5, Chance: 1}}

	assert.Equal(t, int64(2500), ResolveLucky(lucky, 10, 100, table, fixed(0.5)))
	assert.Equal(t, int64(0), ResolveLucky(plain, 10, 100, table, fixed(0)))
	assert.Equal(t, int64(0), ResolveLucky(lucky, 10, 100, nil, fixed(0)))

	// 0.3*100 is not below a 30% rate.
	assert.Equal(t, int64(0), ResolveLucky(lucky, 1, 30, table, fixed(0.3)))
	// Unset rate falls back to 30%.
	assert.Equal(t, int64(250), ResolveLucky(lucky, 1, 0, table, &sequence{values: []float64{0.29, 0.1}}))
}

func TestResolveLuckyFractionalMultiplier(t *testing.T) {
	clover := model.Gift{ID: "clover", Cost: 15, IsLucky: true}

	half := []model.LuckyMultiplier{{Value: 0.5, Chance: 1}}
	assert.Equal(t, int64(7), ResolveLucky(clover, 1, 100, half, fixed(0)))
	assert.Equal(t, int64(15), ResolveLucky(clover, 2, 100, half, fixed(0)))

	oneAndHalf := []model.LuckyMultiplier{{Value: 1.5, Chance: 1}}
	assert.Equal(t, int64(22), ResolveLucky(clover, 1, 100, oneAndHalf, fixed(0)))

	tiny := []model.LuckyMultiplier{{Value: 0.01, Chance: 1}}
	assert.Equal(t, int64(0), ResolveLucky(clover, 1, 100, tiny, fixed(0)))
}

func TestWinRateFrequency(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	wins := 0
	const draws = 20000
	for i := 0; i < draws; i++ {
		if IsWin(30, rng) {
			wins++
		}
	}
	assert.InDelta(t, 0.30, float64(wins)/draws, 0.02)
}

func TestPickMultiplierAlwaysFromTableProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "entries")
		table := make([]model.LuckyMultiplier, n)
		for i := range table {
			table[i] = model.LuckyMultiplier{
				Value:  float64(i + 1),
				Chance: rapid.Float64Range(0, 100).Draw(t, "chance"),
			}
		}
		draw := rapid.Float64Range(0, math.Nextafter(1, 0)).Draw(t, "draw")

		m, ok := PickMultiplier(table, fixed(draw))
		if !ok {
			t.Fatal("non-empty table must yield an entry")
		}
		if m.Value < 1 || m.Value > float64(n) {
			t.Fatalf("picked %v outside table", m.Value)
		}
	})
}

func TestLevel(t *testing.T) {
	tests := []struct {
		points int64
		want   int
	}{
		{-5, 1},
		{0, 1},
		{39_999, 1},
		{160_000, 2},
		{250_000, 2},
		{360_000, 3},
		{400_000_000, 100},
		{1_000_000_000_000, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.points), "points=%d", tt.points)
	}
}

func TestBagShare(t *testing.T) {
	assert.Equal(t, int64(250), BagShare(1000, 4))
	assert.Equal(t, int64(333), BagShare(1000, 3))
	assert.Equal(t, int64(0), BagShare(1000, 0))
}
