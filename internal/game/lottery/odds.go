// Package lottery implements the 0-9 number draw game: the bet-type
// odds table, the free-form bet message parser, bet placement, and the
// per-group draw scheduler with its settlement pipeline.
package lottery

// Bet type names as they appear in group messages.
const (
	BetSmall     = "小"
	BetBig       = "大"
	BetOdd       = "单"
	BetEven      = "双"
	BetSmallOdd  = "小单"
	BetSmallEven = "小双"
	BetBigOdd    = "大单"
	BetBigEven   = "大双"
	BetLeopard   = "豹子"
)

// BetOption is one row of the odds table: the winning number set and the
// payout odds scaled by 100.
type BetOption struct {
	Numbers  [10]bool
	OddsX100 int64
}

func option(oddsX100 int64, numbers ...int) BetOption {
	var o BetOption
	o.OddsX100 = oddsX100
	for _, n := range numbers {
		o.Numbers[n] = true
	}
	return o
}

// betOptions is the canonical table for the 0-9 draw. 5 belongs to no
// big/small/odd/even combination; 0 and 5 pay out as 豹子.
var betOptions = map[string]BetOption{
	BetSmall:     option(236, 1, 2, 3, 4),
	BetBig:       option(236, 6, 7, 8, 9),
	BetOdd:       option(236, 1, 3, 7, 9),
	BetEven:      option(236, 2, 4, 6, 8),
	BetSmallOdd:  option(460, 1, 3),
	BetSmallEven: option(460, 2, 4),
	BetBigOdd:    option(460, 7, 9),
	BetBigEven:   option(460, 6, 8),
	BetLeopard:   option(460, 0, 5),
	"0":          option(900, 0),
	"1":          option(900, 1),
	"2":          option(900, 2),
	"3":          option(900, 3),
	"4":          option(900, 4),
	"5":          option(900, 5),
	"6":          option(900, 6),
	"7":          option(900, 7),
	"8":          option(900, 8),
	"9":          option(900, 9),
}

// LookupOption returns the odds-table row for a bet type.
func LookupOption(betType string) (BetOption, bool) {
	o, ok := betOptions[betType]
	return o, ok
}

// IsWin reports whether a drawn result hits the bet type's number set.
func IsWin(betType string, result int16) bool {
	o, ok := betOptions[betType]
	if !ok || result < 0 || result > 9 {
		return false
	}
	return o.Numbers[result]
}

// WinAmount computes floor(betAmount x odds) from the odds captured at
// placement time.
func WinAmount(betAmount, oddsX100 int64) int64 {
	return betAmount * oddsX100 / 100
}
