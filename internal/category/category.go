// Package category holds the fixed transaction taxonomy and the keyword
// tables used for rule-based classification. Everything here is pure data
// plus lookups; no I/O.
package category

import "strings"

// Other is the universal fallback label. Normalize and MatchKeywords never
// return anything outside Ordered, and Other is always a valid result.
const Other = "Other"

// Ordered is the taxonomy in its declared order. The order matters: both
// Normalize's substring pass and MatchKeywords use it as the tie-break rule,
// first hit wins.
var Ordered = []string{
	"Food & Dining",
	"Gas & Fuel",
	"Groceries",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Travel",
	"Healthcare",
	"Education",
	"Transportation",
	"Salary",
	"Freelance",
	"Investment",
	"Business",
	"Gift",
	Other,
}

// Keywords maps each taxonomy label to its trigger keywords, matched as
// lower-case substrings of the input text. Labels are scanned in the
// Ordered sequence, so an entry earlier in the taxonomy shadows later ones.
var Keywords = map[string][]string{
	"Food & Dining":     {"restaurant", "dining", "food", "lunch", "dinner", "breakfast", "cafe", "coffee", "pizza", "burger", "mcdonald", "starbucks", "takeout", "snack"},
	"Gas & Fuel":        {"gas", "fuel", "petrol", "gasoline", "shell", "chevron", "exxon"},
	"Groceries":         {"grocery", "groceries", "supermarket", "walmart", "costco", "aldi", "lidl"},
	"Shopping":          {"shopping", "amazon", "mall", "clothes", "clothing", "shoes", "electronics", "target"},
	"Entertainment":     {"movie", "cinema", "netflix", "spotify", "concert", "game", "gaming", "theater"},
	"Bills & Utilities": {"bill", "electric", "electricity", "water", "internet", "phone", "rent", "utility", "insurance", "subscription"},
	"Travel":            {"travel", "flight", "hotel", "airbnb", "vacation", "trip", "airline"},
	"Healthcare":        {"doctor", "hospital", "pharmacy", "medicine", "dental", "clinic", "health"},
	"Education":         {"tuition", "course", "textbook", "school", "university", "udemy"},
	"Transportation":    {"uber", "lyft", "taxi", "bus fare", "train", "metro", "parking", "toll"},
	"Salary":            {"salary", "paycheck", "payroll", "wage"},
	"Freelance":         {"freelance", "client payment", "gig", "contract work"},
	"Investment":        {"dividend", "stock", "crypto", "interest", "investment"},
	"Business":          {"business", "office supplies", "software license"},
	"Gift":              {"gift", "donation", "present", "charity"},
}

// incomeKeywords classify free text as income. Membership test only,
// first match short-circuits.
var incomeKeywords = []string{"salary", "income", "received", "deposit", "bonus", "wage", "paycheck", "freelance"}

// Normalize maps an arbitrary candidate string onto the taxonomy. Exact match
// first, then case-insensitive exact, then substring containment in either
// direction (scanned in declared order), else Other. Pure and total: it never
// fails and never returns a label outside Ordered.
func Normalize(candidate string) string {
	c := strings.TrimSpace(candidate)
	if c == "" {
		return Other
	}

	for _, label := range Ordered {
		if label == c {
			return label
		}
	}

	lower := strings.ToLower(c)
	for _, label := range Ordered {
		if strings.ToLower(label) == lower {
			return label
		}
	}

	for _, label := range Ordered {
		labelLower := strings.ToLower(label)
		if strings.Contains(labelLower, lower) || strings.Contains(lower, labelLower) {
			return label
		}
	}

	return Other
}

// MatchKeywords returns the first taxonomy label, in declared order, with a
// trigger keyword present in the lower-cased text. No hit returns Other.
func MatchKeywords(text string) string {
	lower := strings.ToLower(text)
	for _, label := range Ordered {
		for _, kw := range Keywords[label] {
			if strings.Contains(lower, kw) {
				return label
			}
		}
	}
	return Other
}

// IsIncomeText reports whether the lower-cased text contains any income
// keyword.
func IsIncomeText(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range incomeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Valid reports whether the label is exactly a taxonomy entry.
func Valid(label string) bool {
	for _, l := range Ordered {
		if l == label {
			return true
		}
	}
	return false
}
