package parser

import (
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/pennywise/pennywise/internal/category"
)

// ParsedTransaction is the transient output of the parsing pipeline. It is
// not persisted until the caller confirms it with a create call.
type ParsedTransaction struct {
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Type        string    `json:"type"`
	Date        time.Time `json:"date"`
	AiParsed    bool      `json:"aiParsed"`
	RawInput    string    `json:"rawInput"`
}

const maxFallbackDescription = 100

// truncateRunes cuts s to at most n characters without splitting a rune,
// so multibyte input never truncates into invalid UTF-8.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// First run of digits with an optional two-digit fraction, optionally
// preceded by a currency glyph. Only the first match is ever used.
var amountRe = regexp.MustCompile(`[$£€]?(\d+(?:\.\d{1,2})?)`)

// Fallback extracts a transaction from free text using only local keyword
// rules. Deterministic and side-effect-free: same input, same now, same
// output. The date is always now; the fallback never reads dates from text.
func Fallback(text string, now time.Time) ParsedTransaction {
	var amount float64
	if m := amountRe.FindStringSubmatch(text); m != nil {
		// The pattern guarantees a parseable number.
		amount, _ = strconv.ParseFloat(m[1], 64)
	}

	txType := "expense"
	if category.IsIncomeText(text) {
		txType = "income"
	}

	desc := truncateRunes(text, maxFallbackDescription)

	return ParsedTransaction{
		Amount:      amount,
		Description: desc,
		Category:    category.MatchKeywords(text),
		Type:        txType,
		Date:        now,
		AiParsed:    false,
		RawInput:    text,
	}
}
