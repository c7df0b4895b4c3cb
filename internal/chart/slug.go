package chart

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const hashLen = 8

// Slug turns a category label into a file-name-safe token.
//
// Runs of characters outside [A-Za-z0-9] collapse to a single underscore and edge
// underscores are trimmed. Unless the label is recovered by turning the underscores
// back into single spaces, a short hash of the label is appended, so distinct labels
// never share a slug.
func Slug(label string) string {
	var b strings.Builder
	pending := false
	for _, r := range label {
		if isSlugRune(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}

	slug := b.String()
	if slug == "" {
		return "category-" + labelHash(label)
	}
	if strings.ReplaceAll(slug, "_", " ") != label {
		slug += "-" + labelHash(label)
	}
	return slug
}

// PlotFileName is the artifact name of a category plot.
func PlotFileName(category string) string {
	return "forecast_plot_" + Slug(category) + ".png"
}

func isSlugRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func labelHash(label string) string {
	sum := sha256.Sum256([]byte(label))
	return hex.EncodeToString(sum[:])[:hashLen]
}
