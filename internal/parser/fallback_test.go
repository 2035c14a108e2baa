package parser

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pennywise/pennywise/internal/category"
)

var testNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func TestFallback(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantAmount   float64
		wantType     string
		wantCategory string
	}{
		{
			name:         "lunch at mcdonalds",
			text:         "Lunch at McDonald's $12.50",
			wantAmount:   12.50,
			wantType:     "expense",
			wantCategory: "Food & Dining",
		},
		{
			name:         "salary deposit",
			text:         "Salary deposit $3000",
			wantAmount:   3000,
			wantType:     "income",
			wantCategory: "Salary",
		},
		{
			name:         "gas station",
			text:         "Gas station $45",
			wantAmount:   45,
			wantType:     "expense",
			wantCategory: "Gas & Fuel",
		},
		{
			name:         "no amount",
			text:         "bought some shoes",
			wantAmount:   0,
			wantType:     "expense",
			wantCategory: "Shopping",
		},
		{
			name:         "first number wins",
			text:         "2 coffees for $8.40",
			wantAmount:   2,
			wantType:     "expense",
			wantCategory: "Food & Dining",
		},
		{
			name:         "currency glyph",
			text:         "Taxi £18.20",
			wantAmount:   18.20,
			wantType:     "expense",
			wantCategory: "Transportation",
		},
		{
			name:         "unclassified",
			text:         "miscellaneous 7",
			wantAmount:   7,
			wantType:     "expense",
			wantCategory: "Other",
		},
		{
			name:         "income keyword received",
			text:         "received 250 from a friend",
			wantAmount:   250,
			wantType:     "income",
			wantCategory: "Other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fallback(tt.text, testNow)
			if got.Amount != tt.wantAmount {
				t.Errorf("Amount = %v, want %v", got.Amount, tt.wantAmount)
			}
			if got.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", got.Type, tt.wantType)
			}
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", got.Category, tt.wantCategory)
			}
			if !got.Date.Equal(testNow) {
				t.Errorf("Date = %v, want now (%v)", got.Date, testNow)
			}
			if got.AiParsed {
				t.Error("fallback result must have AiParsed=false")
			}
			if got.RawInput != tt.text {
				t.Errorf("RawInput = %q, want %q", got.RawInput, tt.text)
			}
		})
	}
}

func TestFallback_CategoryAlwaysInTaxonomy(t *testing.T) {
	inputs := []string{"", "asdf qwerty", "☃ 12.99", "ALL CAPS NONSENSE 5"}
	for _, in := range inputs {
		got := Fallback(in, testNow)
		if !category.Valid(got.Category) {
			t.Errorf("Fallback(%q).Category = %q, not in taxonomy", in, got.Category)
		}
	}
}

func TestFallback_DescriptionHardCut(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "plenty "
	}
	got := Fallback(long, testNow)
	if len(got.Description) != 100 {
		t.Errorf("Description length = %d, want hard cut at 100", len(got.Description))
	}
	if got.RawInput != long {
		t.Error("RawInput must echo the untruncated input")
	}
}

func TestFallback_DescriptionCutKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("€", 120)
	got := Fallback(long, testNow)
	if !utf8.ValidString(got.Description) {
		t.Fatalf("Description is not valid UTF-8 after truncation: %q", got.Description)
	}
	if n := utf8.RuneCountInString(got.Description); n != 100 {
		t.Errorf("Description rune count = %d, want 100", n)
	}
	if got.Description != strings.Repeat("€", 100) {
		t.Errorf("Description = %q, want 100 euro signs", got.Description)
	}
}

func TestFallback_Deterministic(t *testing.T) {
	text := "Dinner and a movie $60"
	a := Fallback(text, testNow)
	b := Fallback(text, testNow)
	if a != b {
		t.Errorf("Fallback is not deterministic: %+v vs %+v", a, b)
	}
}
