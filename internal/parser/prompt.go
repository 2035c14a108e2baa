package parser

import (
	"strings"

	"github.com/pennywise/pennywise/internal/category"
)

// buildPrompt assembles the model instructions: the full taxonomy with
// keyword hints, a few worked examples, and the strict-JSON output contract.
func buildPrompt(text string) string {
	var b strings.Builder

	b.WriteString("You are a personal finance assistant that extracts one transaction from free text.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Parse the user's text into a single transaction.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object.\n\n")
	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"amount\": number (always positive, 0 if no amount is present)\n")
	b.WriteString("- \"description\": string (short summary of the transaction)\n")
	b.WriteString("- \"category\": string (EXACTLY one of the categories below)\n")
	b.WriteString("- \"type\": string, \"income\" or \"expense\"\n")
	b.WriteString("- \"date\": string, ISO format \"YYYY-MM-DD\", or null if no date is mentioned\n\n")

	b.WriteString("Use ONLY the following categories (hints in parentheses):\n")
	for _, label := range category.Ordered {
		b.WriteString("- " + label)
		if kws := category.Keywords[label]; len(kws) > 0 {
			n := len(kws)
			if n > 4 {
				n = 4
			}
			b.WriteString(" (e.g. " + strings.Join(kws[:n], ", ") + ")")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nIf no category fits, use \"Other\".\n\n")

	b.WriteString("Examples:\n")
	b.WriteString("Input: \"Lunch at McDonald's $12.50\"\n")
	b.WriteString(`Output: {"amount": 12.5, "description": "Lunch at McDonald's", "category": "Food & Dining", "type": "expense", "date": null}` + "\n")
	b.WriteString("Input: \"Salary deposit $3000\"\n")
	b.WriteString(`Output: {"amount": 3000, "description": "Salary deposit", "category": "Salary", "type": "income", "date": null}` + "\n")
	b.WriteString("Input: \"Paid electricity bill 85.20 on 2025-03-01\"\n")
	b.WriteString(`Output: {"amount": 85.2, "description": "Electricity bill", "category": "Bills & Utilities", "type": "expense", "date": "2025-03-01"}` + "\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n\n")

	b.WriteString("Input: \"" + strings.ReplaceAll(text, `"`, `'`) + "\"\n")
	b.WriteString("Output:")

	return b.String()
}
