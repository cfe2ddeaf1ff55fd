package extract

import (
	"fmt"
	"unicode/utf8"
)

// Context summaries from earlier passes are truncated before being embedded in
// later prompts. These bounds keep the prompts small while leaving the full
// pass output available as separate context parts.
const (
	pass1SummaryForPass2Len = 300
	pass1SummaryForPass3Len = 200
	pass2SummaryForPass3Len = 300
)

// BuildPass1Prompt asks only for a structural description of the invoice.
func BuildPass1Prompt() string {
	return "Analyze the structure of the following invoice. Identify key sections and " +
		"their general locations (e.g., header, footer, main content area). This is Pass 1."
}

// BuildPass2Prompt asks for field-location hints for the nine invoice regions,
// threading a bounded summary of the pass-1 output.
func BuildPass2Prompt(pass1Text string) string {
	return fmt.Sprintf(`Based on the structural analysis from Pass 1 (summary: %q), identify and describe the locations (e.g., "top-left", "middle-right", "area below customer address", or textual descriptions of surrounding elements) of the following key information areas if present: Supplier Name, Invoice Number, Invoice Date, Due Date, Customer Information/Billing Address, Line Items table (or section detailing products/services), Subtotal, Tax amounts/details, and Grand Total. This is Pass 2.`,
		truncate(pass1Text, pass1SummaryForPass2Len))
}

// BuildPass3Prompt instructs the model to emit a single JSON object and
// nothing else, threading bounded summaries of both earlier passes.
func BuildPass3Prompt(pass1Text, pass2Text string) string {
	return fmt.Sprintf(`Using the invoice image, the structural analysis from Pass 1 (summary: %q), and the key region identifications from Pass 2 (summary: %q), meticulously extract all fields as defined in the JSON schema. Ensure accuracy, especially for line items, amounts, and tax details. This is Pass 3, the final extraction pass. Respond with ONLY the JSON object.`,
		truncate(pass1Text, pass1SummaryForPass3Len),
		truncate(pass2Text, pass2SummaryForPass3Len))
}

// ContextPart labels a full prior-pass output for inclusion as its own
// context part alongside the bounded in-prompt summary.
func ContextPart(pass int, text string) string {
	return fmt.Sprintf("Context from Pass %d: %s", pass, text)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
