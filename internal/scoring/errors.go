package scoring

import (
	"errors"
	"fmt"

	"github.com/pavelanni/studyscore/internal/model"
)

// ErrMalformedQuestion is returned when a question's data cannot be scored.
// It distinguishes broken question data from a wrong learner answer.
var ErrMalformedQuestion = errors.New("malformed question")

// MalformedQuestionError describes why a question was refused.
type MalformedQuestionError struct {
	QuestionID string
	Reason     string
}

func (e *MalformedQuestionError) Error() string {
	return fmt.Sprintf("malformed question %q: %s", e.QuestionID, e.Reason)
}

func (e *MalformedQuestionError) Unwrap() error { return ErrMalformedQuestion }

func malformed(id, format string, args ...any) error {
	return &MalformedQuestionError{QuestionID: id, Reason: fmt.Sprintf(format, args...)}
}

// ValidateQuestion checks the structural invariants of q.
func ValidateQuestion(q model.Question) error {
	if !q.Difficulty.IsValid() {
		return malformed(q.ID, "unknown difficulty %q", q.Difficulty)
	}
	switch key := q.Key.(type) {
	case model.SingleChoiceKey:
		if q.Kind != model.KindSingleChoice && q.Kind != model.KindTrueFalse {
			return malformed(q.ID, "single choice key on %s question", q.Kind)
		}
		if len(q.Options) < 2 {
			return malformed(q.ID, "needs at least 2 options, has %d", len(q.Options))
		}
		if key.Index < 0 || key.Index >= len(q.Options) {
			return malformed(q.ID, "correct index %d out of range", key.Index)
		}
	case model.MultiSelectKey:
		if q.Kind != model.KindMultiSelect {
			return malformed(q.ID, "multi-select key on %s question", q.Kind)
		}
		if len(q.Options) < 2 {
			return malformed(q.ID, "needs at least 2 options, has %d", len(q.Options))
		}
		set := indexSet(key.Indices)
		if len(set) < 2 {
			return malformed(q.ID, "multi-select needs at least 2 correct options, has %d", len(set))
		}
		for idx := range set {
			if idx < 0 || idx >= len(q.Options) {
				return malformed(q.ID, "correct index %d out of range", idx)
			}
		}
	case model.WrittenKey:
		if q.Kind != model.KindWritten {
			return malformed(q.ID, "written key on %s question", q.Kind)
		}
		if normalize(key.Reference) == "" {
			return malformed(q.ID, "empty reference answer")
		}
	case nil:
		return malformed(q.ID, "missing answer key")
	default:
		return malformed(q.ID, "unsupported answer key %T", key)
	}
	return nil
}
