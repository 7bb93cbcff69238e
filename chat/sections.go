package chat

import "regexp"

// headingPattern matches numbered bold headings such as "1. **Évaluation**".
// The gap after the number accepts Unicode spaces (NBSP, U+2028, BOM) and the
// title stops at any line terminator, so model output using typographic
// spacing still splits.
var headingPattern = regexp.MustCompile(`\d+\.[\s\v\p{Zs}\x{FEFF}\x{2028}\x{2029}]+\*\*[^\n\r\x{2028}\x{2029}]+?\*\*`)

// SplitSections cuts a markdown answer on its numbered bold headings. Text
// before the first heading is dropped, bodies map positionally onto the four
// zones, missing bodies stay empty and anything past the fourth is ignored.
func SplitSections(text string) Sections {
	parts := headingPattern.Split(text, -1)
	if len(parts) > 0 {
		parts = parts[1:]
	}

	at := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	return Sections{
		Evaluation:      at(0),
		Diagnosis:       at(1),
		Recommendations: at(2),
		Disclaimer:      at(3),
	}
}
