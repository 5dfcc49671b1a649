package recharge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMemo(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		memo := newMemo()
		assert.Len(t, memo, 10)
		for _, r := range memo {
			ok := (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')
			assert.True(t, ok, "memo %q has unexpected rune %q", memo, r)
		}
		assert.False(t, seen[memo], "memo collision: %s", memo)
		seen[memo] = true
	}
}
