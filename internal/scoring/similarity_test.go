package scoring

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"héllo", "hello", 1},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := Levenshtein(tt.a, tt.b); got != tt.want {
				t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 0},
		{"one empty", "", "x", 0},
		{"whitespace only", "   ", "x", 0},
		{"identical", "goroutine", "goroutine", 1},
		{"case and space insensitive", "  GoRoutine ", "goroutine", 1},
		{"kitten sitting", "kitten", "sitting", 1 - 3.0/7.0},
		{"completely different", "abc", "xyz", 0},
		{"one substitution", "abcd", "abce", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if !almostEqual(got, tt.want) {
				t.Errorf("Similarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"photosynthesis", "photo synthesis"},
		{"", "abc"},
		{"Mitochondria", "mitochondrion"},
		{"日本語", "日本"},
	}
	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		if ab != ba {
			t.Errorf("Similarity not symmetric for %q/%q: %f vs %f", p[0], p[1], ab, ba)
		}
	}
}

func TestSimilarityDecreasesWithDistance(t *testing.T) {
	ref := "abcdef"
	prev := Similarity(ref, ref)
	for _, cand := range []string{"abcdeX", "abcdXX", "abcXXX", "abXXXX"} {
		got := Similarity(cand, ref)
		if got >= prev {
			t.Errorf("Similarity(%q) = %f, expected less than %f", cand, got, prev)
		}
		prev = got
	}
}
