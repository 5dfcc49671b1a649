package redpacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSliceCountFor(t *testing.T) {
	cases := []struct {
		amount int64
		want   int
	}{
		{1, 1},
		{9_999, 1},
		{10_000, 1},
		{20_000, 2},
		{50_000, 5},
		{199_999, 19},
		{200_000, 20},
		{10_000_000, 20},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SliceCountFor(tc.amount), "amount %d", tc.amount)
	}
}

func drawMax(min, max int64) (int64, error) { return max, nil }
func drawMin(min, max int64) (int64, error) { return min, nil }

func TestSliceAmount_LastTakesRemainder(t *testing.T) {
	m := &Manager{draw: drawMax}
	got, err := m.sliceAmount(1234, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), got)
}

func TestSliceAmount_Bounds(t *testing.T) {
	m := &Manager{draw: drawMax}

	// 2*remaining/count caps a greedy early grab
	got, err := m.sliceAmount(50_000, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(20_000), got)

	// near-exhausted packet: later grabbers still get their 1 each
	got, err = m.sliceAmount(5, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)

	// exactly count points left: everyone gets 1
	got, err = m.sliceAmount(4, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestSliceAmount_MinNeverZero(t *testing.T) {
	m := &Manager{draw: drawMin}
	got, err := m.sliceAmount(100_000, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

// Simulating a full grab sequence: every slice is positive, no grabber
// gets more than the cap, and the slices sum exactly to the total.
func TestSliceAmount_FullSequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 20).Draw(t, "count")
		total := rapid.Int64Range(int64(count), 1_000_000).Draw(t, "total")

		m := &Manager{draw: func(min, max int64) (int64, error) {
			return rapid.Int64Range(min, max).Draw(t, "slice"), nil
		}}

		remaining := total
		for n := count; n >= 1; n-- {
			got, err := m.sliceAmount(remaining, n)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got, int64(1))
			if n > 1 {
				assert.LessOrEqual(t, got, 2*remaining/int64(n))
			}
			remaining -= got
			assert.GreaterOrEqual(t, remaining, int64(n-1))
		}
		assert.Zero(t, remaining)
	})
}

// A snapshot handed to the chat layer must stay stable while later grabs
// and the expiry goroutine keep mutating the live packet.
func TestSnapshot_InsulatedFromLaterMutation(t *testing.T) {
	p := &Packet{
		ID:              "p1",
		SenderID:        1,
		SenderName:      "alice",
		TotalAmount:     30_000,
		SliceCount:      3,
		RemainingCount:  2,
		RemainingAmount: 18_000,
		Grabs:           make([]Grab, 0, 3),
	}
	p.Grabs = append(p.Grabs, Grab{UserID: 2, Name: "bob", Amount: 12_000})

	p.mu.Lock()
	snap := p.snapshot()
	p.mu.Unlock()

	// Later grab mutates the live packet, reusing the Grabs backing array.
	p.mu.Lock()
	p.Grabs = append(p.Grabs, Grab{UserID: 3, Name: "carol", Amount: 9_000})
	p.Grabs[0].Amount = 0
	p.RemainingCount = 1
	p.RemainingAmount = 9_000
	p.mu.Unlock()

	assert.Equal(t, 2, snap.RemainingCount)
	assert.Equal(t, int64(18_000), snap.RemainingAmount)
	require.Len(t, snap.Grabs, 1)
	assert.Equal(t, int64(12_000), snap.Grabs[0].Amount)
}
