// Package drawno generates draw-period numbers.
package drawno

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Generate builds a draw number from the wall clock: a second-precision
// timestamp, the microsecond fraction, and a 3-digit random suffix.
// Uniqueness per (group, game type) is enforced by the storage layer;
// callers retry generation on the rare collision.
func Generate(now time.Time) string {
	micros := now.Nanosecond() / 1000
	suffix, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		// crypto/rand failing means the process has no usable entropy
		// source; nothing sensible can continue.
		panic(fmt.Sprintf("drawno: crypto/rand unavailable: %v", err))
	}
	return fmt.Sprintf("%s%06d%03d", now.Format("20060102150405"), micros, suffix.Int64())
}
