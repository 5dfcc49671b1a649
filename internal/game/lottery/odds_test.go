package lottery

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLookupOption(t *testing.T) {
	cases := []struct {
		betType  string
		oddsX100 int64
		winners  []int16
	}{
		{BetSmall, 236, []int16{1, 2, 3, 4}},
		{BetBig, 236, []int16{6, 7, 8, 9}},
		{BetOdd, 236, []int16{1, 3, 7, 9}},
		{BetEven, 236, []int16{2, 4, 6, 8}},
		{BetSmallOdd, 460, []int16{1, 3}},
		{BetSmallEven, 460, []int16{2, 4}},
		{BetBigOdd, 460, []int16{7, 9}},
		{BetBigEven, 460, []int16{6, 8}},
		{BetLeopard, 460, []int16{0, 5}},
		{"7", 900, []int16{7}},
		{"0", 900, []int16{0}},
	}
	for _, tc := range cases {
		t.Run(tc.betType, func(t *testing.T) {
			o, ok := LookupOption(tc.betType)
			require.True(t, ok)
			assert.Equal(t, tc.oddsX100, o.OddsX100)

			winners := map[int16]bool{}
			for _, w := range tc.winners {
				winners[w] = true
			}
			for r := int16(0); r <= 9; r++ {
				assert.Equal(t, winners[r], IsWin(tc.betType, r), "result %d", r)
			}
		})
	}
}

func TestLookupOption_Unknown(t *testing.T) {
	_, ok := LookupOption("重注")
	assert.False(t, ok)
	assert.False(t, IsWin("重注", 3))
}

func TestWinAmount(t *testing.T) {
	assert.Equal(t, int64(236), WinAmount(100, 236))
	assert.Equal(t, int64(460), WinAmount(100, 460))
	assert.Equal(t, int64(900), WinAmount(100, 900))
	assert.Equal(t, int64(2), WinAmount(1, 236)) // floor, never round up
	assert.Equal(t, int64(4), WinAmount(1, 460))
}

// Every result digit hits exactly one big/small quadrant bet (or none for
// 0 and 5), exactly one parity bet (same exception), and exactly one
// number bet.
func TestOddsTable_Partition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		result := int16(rapid.IntRange(0, 9).Draw(t, "result"))

		quadrant := 0
		for _, bt := range []string{BetSmall, BetBig} {
			if IsWin(bt, result) {
				quadrant++
			}
		}
		parity := 0
		for _, bt := range []string{BetOdd, BetEven} {
			if IsWin(bt, result) {
				parity++
			}
		}
		leopard := IsWin(BetLeopard, result)
		if result == 0 || result == 5 {
			assert.Zero(t, quadrant)
			assert.Zero(t, parity)
			assert.True(t, leopard)
		} else {
			assert.Equal(t, 1, quadrant)
			assert.Equal(t, 1, parity)
			assert.False(t, leopard)
		}

		numberHits := 0
		for d := 0; d <= 9; d++ {
			if IsWin(strconv.Itoa(d), result) {
				numberHits++
			}
		}
		assert.Equal(t, 1, numberHits)
	})
}
