package matching

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity returns a normalized edit-distance similarity in [0,1].
// 1.0 means identical strings, 0.0 means nothing in common.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// normalizeDescription lowercases and collapses whitespace so that line
// descriptions compare on content rather than formatting.
func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
