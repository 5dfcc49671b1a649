package lottery

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedBet is one atomic bet extracted from a group message. BetType is
// either a named type ("大", "小单", "豹子", ...) or a single digit
// "0".."9" for number bets.
type ParsedBet struct {
	BetType string
	Amount  int64
}

// MaxBetsPerMessage bounds how many fragments one message can place.
const MaxBetsPerMessage = 20

// betKeywords are the trigger words that make a group message eligible
// for bet parsing.
var betKeywords = []string{"大", "小", "单", "双", "豹子", "数字", "押", "下", "注", "买"}

var chineseDigits = map[rune]int{
	'零': 0, '一': 1, '二': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

const digitClass = `[0-9零一二三四五六七八九]`
const amountPat = `[1-9][0-9]{0,8}`
const typePat = `大单|大双|小单|小双|豹子|大|小|单|双`
const verbClass = `[押下注买]`

// fragmentRe extracts bet fragments. Alternatives are ordered by
// priority; Go's leftmost-first matching makes earlier alternatives win
// at the same position. Amounts deliberately exclude leading zeros, and
// bare multi-digit numerals never match, so "100" alone is not a bet.
var fragmentRe = regexp.MustCompile(
	`(` + typePat + `)\s*(` + amountPat + `)` + // 1,2: type then amount
		`|数字\s*(` + digitClass + `)\s*` + verbClass + `?\s*(` + amountPat + `)` + // 3,4: 数字 prefix
		`|(` + digitClass + `)\s*` + verbClass + `\s*(` + amountPat + `)` + // 5,6: digit verb amount
		`|(` + amountPat + `)\s*(` + typePat + `)` + // 7,8: amount then type
		`|(` + amountPat + `)\s*` + verbClass + `\s*(` + digitClass + `)`) // 9,10: amount verb digit

var bareDigitRunRe = regexp.MustCompile(digitClass + `+`)

// IsBetMessage reports whether a group message is eligible for bet
// parsing: it contains at least one bet keyword and at least one digit.
func IsBetMessage(text string) bool {
	hasKeyword := false
	for _, kw := range betKeywords {
		if strings.Contains(text, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}
	for _, r := range text {
		if r >= '0' && r <= '9' {
			return true
		}
		if _, ok := chineseDigits[r]; ok {
			return true
		}
	}
	return false
}

func digitValue(s string) string {
	r := []rune(s)[0]
	if r >= '0' && r <= '9' {
		return string(r)
	}
	return strconv.Itoa(chineseDigits[r])
}

// ParseBetMessage turns a free-text group message into a list of bets.
// It is a pure function: no validation against group config, no side
// effects. Fragments that parse are returned in message order; text that
// matches nothing is ignored.
func ParseBetMessage(text string) []ParsedBet {
	matches := fragmentRe.FindAllStringSubmatchIndex(text, -1)

	var bets []ParsedBet
	appendBet := func(betType string, amountStr string) {
		amount, err := strconv.ParseInt(amountStr, 10, 64)
		if err != nil || amount <= 0 {
			return
		}
		bets = append(bets, ParsedBet{BetType: betType, Amount: amount})
	}

	group := func(m []int, i int) (string, bool) {
		if m[2*i] < 0 {
			return "", false
		}
		return text[m[2*i]:m[2*i+1]], true
	}

	for _, m := range matches {
		switch {
		case m[2] >= 0: // type amount
			t, _ := group(m, 1)
			a, _ := group(m, 2)
			appendBet(t, a)
		case m[6] >= 0: // 数字 digit amount
			d, _ := group(m, 3)
			a, _ := group(m, 4)
			appendBet(digitValue(d), a)
		case m[10] >= 0: // digit verb amount
			d, _ := group(m, 5)
			a, _ := group(m, 6)
			appendBet(digitValue(d), a)
		case m[14] >= 0: // amount type
			a, _ := group(m, 7)
			t, _ := group(m, 8)
			appendBet(t, a)
		case m[18] >= 0: // amount verb digit
			a, _ := group(m, 9)
			d, _ := group(m, 10)
			appendBet(digitValue(d), a)
		}
	}

	// Second pass: standalone single digits in the unconsumed text are
	// number bets of amount 1. Runs longer than one numeral are ignored.
	for _, span := range unmatchedSpans(len(text), matches) {
		segment := text[span[0]:span[1]]
		for _, run := range bareDigitRunRe.FindAllString(segment, -1) {
			if len([]rune(run)) == 1 {
				bets = append(bets, ParsedBet{BetType: digitValue(run), Amount: 1})
			}
		}
	}

	if len(bets) > MaxBetsPerMessage {
		bets = bets[:MaxBetsPerMessage]
	}
	return bets
}

// unmatchedSpans returns the byte ranges of text not covered by matches.
func unmatchedSpans(textLen int, matches [][]int) [][2]int {
	var spans [][2]int
	prev := 0
	for _, m := range matches {
		if m[0] > prev {
			spans = append(spans, [2]int{prev, m[0]})
		}
		prev = m[1]
	}
	if prev < textLen {
		spans = append(spans, [2]int{prev, textLen})
	}
	return spans
}
