package scoring

import (
	"math"

	"github.com/pavelanni/studyscore/internal/model"
)

// Policy values for written answers. They have no documented derivation and
// may need recalibration against real grading data.
const (
	// EditDistanceWeight is the share of the combined score taken by Similarity.
	EditDistanceWeight = 0.4
	// ConceptOverlapWeight is the share taken by ConceptOverlap.
	ConceptOverlapWeight = 0.6
	// FullyCorrectThreshold is the lowest percentage counted as fully correct.
	FullyCorrectThreshold = 90
)

// ScoreText grades a free-text answer against a reference answer and returns
// a percentage in [0, 100]. A blank answer scores 0; an answer equal to the
// reference (ignoring case and surrounding whitespace) scores 100.
func ScoreText(submitted, reference string) int {
	s := normalize(submitted)
	if s == "" {
		return 0
	}
	if s == normalize(reference) {
		return 100
	}
	combined := EditDistanceWeight*Similarity(submitted, reference) +
		ConceptOverlapWeight*ConceptOverlap(submitted, reference)
	return clampPercentage(int(math.Round(combined * 100)))
}

// ScoreChoice grades a choice answer: 100 when the selection matches the key
// exactly, otherwise 0. Multi-select compares index sets, so order and
// duplicates in selected are ignored and subsets earn nothing.
func ScoreChoice(key model.AnswerKey, selected []int) int {
	switch k := key.(type) {
	case model.SingleChoiceKey:
		if len(selected) == 1 && selected[0] == k.Index {
			return 100
		}
	case model.MultiSelectKey:
		if sameIndexSet(k.Indices, selected) {
			return 100
		}
	}
	return 0
}

// IsFullyCorrect reports whether pct reaches the fully-correct threshold.
func IsFullyCorrect(pct int) bool {
	return pct >= FullyCorrectThreshold
}

// scorePercentage dispatches on the answer key of an already validated question.
func scorePercentage(q model.Question, sub model.Submission) int {
	switch k := q.Key.(type) {
	case model.WrittenKey:
		return ScoreText(sub.Text, k.Reference)
	case model.SingleChoiceKey, model.MultiSelectKey:
		return ScoreChoice(k, sub.Selected)
	}
	return 0
}

func clampPercentage(p int) int {
	return min(100, max(0, p))
}

func indexSet(indices []int) map[int]struct{} {
	m := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		m[i] = struct{}{}
	}
	return m
}

func sameIndexSet(a, b []int) bool {
	as, bs := indexSet(a), indexSet(b)
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if _, ok := bs[k]; !ok {
			return false
		}
	}
	return true
}
