package scoring

import "strings"

// normalize trims surrounding whitespace and lower-cases s.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Similarity returns a normalized edit-distance similarity in [0, 1].
// Comparison is case-insensitive and ignores surrounding whitespace.
// An empty string on either side yields 0, including empty vs empty.
func Similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ar, br := []rune(a), []rune(b)
	longest := max(len(ar), len(br))
	d := levenshteinRunes(ar, br)
	return max(0, 1-float64(d)/float64(longest))
}

// Levenshtein computes edit distance (insertion, deletion, substitution cost 1)
// between a and b, counted in runes.
func Levenshtein(a, b string) int {
	return levenshteinRunes([]rune(a), []rune(b))
}

func levenshteinRunes(ar, br []rune) int {
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	dp := make([]int, m+1)
	for j := 0; j <= m; j++ {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 0
			if ar[i-1] != br[j-1] {
				cost = 1
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[m]
}
