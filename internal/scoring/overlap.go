package scoring

import (
	"strings"
	"unicode/utf8"
)

// significantTokenMinLen is the shortest token that counts as a concept.
// Shorter tokens are treated as stop words.
const significantTokenMinLen = 4

// ConceptOverlap returns the fraction of significant reference tokens that
// appear in candidate. A reference token matches when a candidate token
// contains it or is contained by it, which covers simple plural and stem
// variations. Reference tokens are counted as a bag, so repeats count
// individually. A reference without significant tokens yields 0.
func ConceptOverlap(candidate, reference string) float64 {
	refTokens := significantTokens(reference)
	if len(refTokens) == 0 {
		return 0
	}
	candTokens := significantTokens(candidate)

	matched := 0
	for _, rt := range refTokens {
		for _, ct := range candTokens {
			if strings.Contains(ct, rt) || strings.Contains(rt, ct) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(refTokens))
}

func significantTokens(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= significantTokenMinLen {
			out = append(out, f)
		}
	}
	return out
}
