// Package quota splits a question count evenly across categories such as
// question kinds or difficulty levels.
package quota

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuota is returned when a quota cannot be planned: no categories
// or a non-positive total.
var ErrInvalidQuota = errors.New("invalid quota")

// Share is the number of questions assigned to one category.
type Share[T ~string] struct {
	Category T   `json:"category"`
	Count    int `json:"count"`
}

// Allocate splits total across categories. Every category receives
// total/len(categories); the remainder is handed out one unit each to the
// first categories in the order given, so reordering the input changes which
// categories get the extra unit. Duplicate categories are separate slots.
// Categories may receive zero when total is smaller than the category count;
// whether that is acceptable is up to the caller.
func Allocate[T ~string](total int, categories []T) ([]Share[T], error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidQuota)
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive, got %d", ErrInvalidQuota, total)
	}
	n := len(categories)
	base, remainder := total/n, total%n
	shares := make([]Share[T], n)
	for i, c := range categories {
		shares[i] = Share[T]{Category: c, Count: base}
		if i < remainder {
			shares[i].Count++
		}
	}
	return shares, nil
}

// Counts returns the counts of shares in order.
func Counts[T ~string](shares []Share[T]) []int {
	out := make([]int, len(shares))
	for i, s := range shares {
		out[i] = s.Count
	}
	return out
}

// Total sums the counts of shares.
func Total[T ~string](shares []Share[T]) int {
	sum := 0
	for _, s := range shares {
		sum += s.Count
	}
	return sum
}

// Describe renders shares as "4 x single_choice, 3 x written", skipping
// categories with no questions.
func Describe[T ~string](shares []Share[T]) string {
	parts := make([]string, 0, len(shares))
	for _, s := range shares {
		if s.Count == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d x %s", s.Count, s.Category))
	}
	return strings.Join(parts, ", ")
}
