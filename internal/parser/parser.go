// Package parser turns free text into structured transactions. The primary
// path asks Gemini for a strict JSON object; every failure mode downgrades
// transparently to the deterministic keyword fallback, so callers never see
// a parse error.
package parser

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/pennywise/pennywise/internal/category"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// Parser is the AI-backed transaction parser. A nil client puts it in
// degraded mode, where every call goes straight to the fallback rules.
type Parser struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
	now    func() time.Time
}

// New creates a Parser. client may be nil when no model credential is
// configured; that is the designed degraded mode, not an error.
func New(client *genai.Client, model string, log zerolog.Logger) *Parser {
	if model == "" {
		model = DefaultModel
	}
	return &Parser{
		client: client,
		model:  model,
		log:    log,
		now:    time.Now,
	}
}

// Parse extracts exactly one transaction from text. It always returns a
// well-formed ParsedTransaction; there is no error path visible to callers.
func (p *Parser) Parse(ctx context.Context, text string) ParsedTransaction {
	if p.client == nil {
		p.log.Debug().Msg("No model credential configured, using fallback parser")
		return Fallback(text, p.now())
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildPrompt(text)},
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		p.log.Warn().Err(err).Msg("Model call failed, using fallback parser")
		return Fallback(text, p.now())
	}

	rawText := resp.Text()
	if rawText == "" {
		p.log.Warn().Msg("Empty model response, using fallback parser")
		return Fallback(text, p.now())
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &raw); err != nil {
		p.log.Warn().Err(err).Str("response", rawText).Msg("Malformed model JSON, using fallback parser")
		return Fallback(text, p.now())
	}

	return enhance(raw, text, p.now())
}

// ParseAll splits text on newlines and semicolons and parses each non-empty
// segment independently. An input with no separators yields a single result.
func (p *Parser) ParseAll(ctx context.Context, text string) []ParsedTransaction {
	segments := splitSegments(text)
	out := make([]ParsedTransaction, 0, len(segments))
	for _, seg := range segments {
		out = append(out, p.Parse(ctx, seg))
	}
	return out
}

func splitSegments(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ';'
	})
	var out []string
	for _, f := range fields {
		if s := strings.TrimSpace(f); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = []string{strings.TrimSpace(text)}
	}
	return out
}

// cleanModelJSON strips Markdown fences and surrounding junk if the model
// ignored the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}' if there is still text
	// around the object.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

var modelDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// enhance validates and repairs the raw model output into a well-formed
// ParsedTransaction. It never fails; every bad field degrades to a safe
// value derived from the original input text.
func enhance(raw map[string]interface{}, text string, now time.Time) ParsedTransaction {
	amount := numberField(raw, "amount")
	if amount < 0 {
		amount = -amount
	}

	desc := strings.TrimSpace(stringField(raw, "description"))
	if desc == "" {
		desc = text
	}
	desc = truncateRunes(desc, maxFallbackDescription)

	rawCat := strings.TrimSpace(stringField(raw, "category"))
	cat := category.Normalize(rawCat)
	if cat == category.Other && rawCat != "" {
		// The model tried but missed the taxonomy; the original text is a
		// better hint than plain Other.
		if kw := category.MatchKeywords(text); kw != category.Other {
			cat = kw
		}
	}

	txType := stringField(raw, "type")
	if txType != "income" && txType != "expense" {
		txType = "expense"
	}

	date := now
	if ds := stringField(raw, "date"); modelDateRe.MatchString(ds) {
		if parsed, err := time.Parse("2006-01-02", ds); err == nil {
			date = parsed
		}
	}

	return ParsedTransaction{
		Amount:      amount,
		Description: desc,
		Category:    cat,
		Type:        txType,
		Date:        date,
		AiParsed:    true,
		RawInput:    text,
	}
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// numberField reads a JSON number, tolerating numeric strings. Anything
// else is 0.
func numberField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}
