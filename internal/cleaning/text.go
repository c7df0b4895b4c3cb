package cleaning

import (
	"strings"
	"unicode"
)

// TitleCase upper-cases the first letter of every run of letters and lower-cases the rest,
// so "new delhi" becomes "New Delhi" and "dairy & breakfast" becomes "Dairy & Breakfast".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// NormalizeLabel trims surrounding whitespace and title-cases a categorical value.
func NormalizeLabel(s string) string {
	return TitleCase(strings.TrimSpace(s))
}
