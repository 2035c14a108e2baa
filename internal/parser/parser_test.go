package parser

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

func testParser() *Parser {
	p := New(nil, "", zerolog.Nop())
	p.now = func() time.Time { return testNow }
	return p
}

func TestParse_DegradedModeEqualsFallback(t *testing.T) {
	p := testParser()

	inputs := []string{
		"Lunch at McDonald's $12.50",
		"Salary deposit $3000",
		"Gas station $45",
		"something unclassifiable",
	}
	for _, in := range inputs {
		got := p.Parse(context.Background(), in)
		want := Fallback(in, testNow)
		if got != want {
			t.Errorf("degraded Parse(%q) = %+v, want fallback result %+v", in, got, want)
		}
	}
}

func TestParseAll_Segments(t *testing.T) {
	p := testParser()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"single line", "Coffee $4", 1},
		{"newline separated", "Coffee $4\nSalary deposit $3000", 2},
		{"semicolon separated", "Coffee $4; Taxi $12; Netflix $15", 3},
		{"blank segments ignored", "Coffee $4\n\n;\nTaxi $12", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ParseAll(context.Background(), tt.text)
			if len(got) != tt.want {
				t.Fatalf("ParseAll returned %d results, want %d", len(got), tt.want)
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  `{"amount": 5}`,
			want: `{"amount": 5}`,
		},
		{
			name: "json fence",
			raw:  "```json\n{\"amount\": 5}\n```",
			want: `{"amount": 5}`,
		},
		{
			name: "bare fence",
			raw:  "```\n{\"amount\": 5}\n```",
			want: `{"amount": 5}`,
		},
		{
			name: "chatter around object",
			raw:  "Sure, here you go: {\"amount\": 5} hope that helps",
			want: `{"amount": 5}`,
		},
		{
			name: "leading whitespace",
			raw:  "\n\n  {\"amount\": 5}",
			want: `{"amount": 5}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEnhance(t *testing.T) {
	text := "Gas station fill up $45"

	t.Run("negative amount becomes magnitude", func(t *testing.T) {
		got := enhance(map[string]interface{}{"amount": -45.0, "category": "Gas & Fuel", "type": "expense"}, text, testNow)
		if got.Amount != 45 {
			t.Errorf("Amount = %v, want 45", got.Amount)
		}
	})

	t.Run("string amount tolerated", func(t *testing.T) {
		got := enhance(map[string]interface{}{"amount": "45.50"}, text, testNow)
		if got.Amount != 45.50 {
			t.Errorf("Amount = %v, want 45.50", got.Amount)
		}
	})

	t.Run("unparseable amount is zero", func(t *testing.T) {
		got := enhance(map[string]interface{}{"amount": "lots"}, text, testNow)
		if got.Amount != 0 {
			t.Errorf("Amount = %v, want 0", got.Amount)
		}
	})

	t.Run("category normalized", func(t *testing.T) {
		got := enhance(map[string]interface{}{"category": "gas & fuel"}, text, testNow)
		if got.Category != "Gas & Fuel" {
			t.Errorf("Category = %q, want Gas & Fuel", got.Category)
		}
	})

	t.Run("unknown category recovered from input text", func(t *testing.T) {
		got := enhance(map[string]interface{}{"category": "Petroleum Products"}, text, testNow)
		if got.Category != "Gas & Fuel" {
			t.Errorf("Category = %q, want keyword recovery to Gas & Fuel", got.Category)
		}
	})

	t.Run("empty category stays Other without recovery", func(t *testing.T) {
		got := enhance(map[string]interface{}{"category": ""}, "unmatchable text", testNow)
		if got.Category != "Other" {
			t.Errorf("Category = %q, want Other", got.Category)
		}
	})

	t.Run("bad type becomes expense", func(t *testing.T) {
		got := enhance(map[string]interface{}{"type": "INCOME"}, text, testNow)
		if got.Type != "expense" {
			t.Errorf("Type = %q, want expense (only exact income/expense accepted)", got.Type)
		}
	})

	t.Run("valid income type kept", func(t *testing.T) {
		got := enhance(map[string]interface{}{"type": "income"}, text, testNow)
		if got.Type != "income" {
			t.Errorf("Type = %q, want income", got.Type)
		}
	})

	t.Run("valid date kept", func(t *testing.T) {
		got := enhance(map[string]interface{}{"date": "2025-03-01"}, text, testNow)
		want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		if !got.Date.Equal(want) {
			t.Errorf("Date = %v, want %v", got.Date, want)
		}
	})

	t.Run("impossible calendar date rejected", func(t *testing.T) {
		got := enhance(map[string]interface{}{"date": "2025-02-30"}, text, testNow)
		if !got.Date.Equal(testNow) {
			t.Errorf("Date = %v, want now for impossible date", got.Date)
		}
	})

	t.Run("loose date format rejected", func(t *testing.T) {
		got := enhance(map[string]interface{}{"date": "03/01/2025"}, text, testNow)
		if !got.Date.Equal(testNow) {
			t.Errorf("Date = %v, want now for non-ISO date", got.Date)
		}
	})

	t.Run("multibyte description cut on rune boundary", func(t *testing.T) {
		got := enhance(map[string]interface{}{"description": strings.Repeat("ü", 150)}, text, testNow)
		if !utf8.ValidString(got.Description) {
			t.Fatalf("Description is not valid UTF-8: %q", got.Description)
		}
		if n := utf8.RuneCountInString(got.Description); n != 100 {
			t.Errorf("Description rune count = %d, want 100", n)
		}
	})

	t.Run("marks ai provenance", func(t *testing.T) {
		got := enhance(map[string]interface{}{}, text, testNow)
		if !got.AiParsed {
			t.Error("enhance output must have AiParsed=true")
		}
		if got.RawInput != text {
			t.Errorf("RawInput = %q, want %q", got.RawInput, text)
		}
	})
}
