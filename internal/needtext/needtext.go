// Package needtext provides text normalization for food bank need lists.
// Cleaning shapes the text we store and display; canonicalization shapes
// the text we compare, so formatting-only differences never register as
// content changes.
package needtext

import "strings"

// acronymFixes maps known miscapitalizations produced by the extraction
// model to their correct domain spelling.
var acronymFixes = map[string]string{
	"Uht": "UHT",
}

// Canonical returns the comparison form of need text: lowercased with all
// whitespace and periods removed. Canonical is idempotent.
func Canonical(text string) string {
	text = strings.ToLower(text)
	replacer := strings.NewReplacer(" ", "", "\n", "", "\r", "", "\t", "", ".", "")
	return replacer.Replace(text)
}

// Clean normalizes extracted need text for storage: collapses repeated
// spaces, trims each line, drops empty lines and fixes known acronym
// miscapitalizations.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "  ", " ")
	text = strings.TrimSpace(text)

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cleaned = append(cleaned, line)
	}
	text = strings.Join(cleaned, "\n")

	for wrong, right := range acronymFixes {
		text = strings.ReplaceAll(text, wrong, right)
	}
	return text
}

// Items splits cleaned need text into its individual item lines.
func Items(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	items := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		items = append(items, line)
	}
	return items
}

// sentinelTexts are need texts that stand in for "no usable reading" and
// must not be treated as item lists.
var sentinelTexts = map[string]struct{}{
	"Facebook": {},
	"Unknown":  {},
	"Nothing":  {},
}

// IsSentinel reports whether the need text is a placeholder rather than a
// real item list.
func IsSentinel(text string) bool {
	_, ok := sentinelTexts[strings.TrimSpace(text)]
	return ok
}

// CountItems returns the number of items in cleaned need text, treating
// sentinel texts as empty.
func CountItems(text string) int {
	if IsSentinel(text) {
		return 0
	}
	return len(Items(text))
}
