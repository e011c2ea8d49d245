package model

import (
	"fmt"
	"time"
)

// Kind identifies how a question is answered and scored.
type Kind string

const (
	// KindSingleChoice has exactly one correct option.
	KindSingleChoice Kind = "single_choice"
	// KindMultiSelect has two or more correct options.
	KindMultiSelect Kind = "multi_select"
	// KindTrueFalse is a two-option single choice question.
	KindTrueFalse Kind = "true_false"
	// KindWritten is an open-ended question graded against a model answer.
	KindWritten Kind = "written"
)

// Kinds lists every known question kind in canonical order.
var Kinds = []Kind{KindSingleChoice, KindMultiSelect, KindTrueFalse, KindWritten}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindSingleChoice, KindMultiSelect, KindTrueFalse, KindWritten:
		return true
	}
	return false
}

// IsChoice reports whether k is answered by selecting options.
func (k Kind) IsChoice() bool {
	return k == KindSingleChoice || k == KindMultiSelect || k == KindTrueFalse
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every difficulty level from easiest to hardest.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// IsValid reports whether d is a known difficulty.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// AnswerKey is the correct answer of a question. The concrete type is one of
// SingleChoiceKey, MultiSelectKey or WrittenKey.
type AnswerKey interface {
	answerKey()
}

// SingleChoiceKey is the key of single choice and true/false questions.
type SingleChoiceKey struct {
	Index int
}

// MultiSelectKey is the key of multi-select questions. Order and duplicates
// are not significant.
type MultiSelectKey struct {
	Indices []int
}

// WrittenKey holds the model answer of a written question.
type WrittenKey struct {
	Reference string
}

func (SingleChoiceKey) answerKey() {}
func (MultiSelectKey) answerKey()  {}
func (WrittenKey) answerKey()      {}

// Question is an already-parsed question ready for scoring.
type Question struct {
	ID         string
	Prompt     string
	Kind       Kind
	Options    []string
	Key        AnswerKey
	Difficulty Difficulty
	Subject    string
}

// IsOpenEnded reports whether the question takes a free-text answer.
func (q Question) IsOpenEnded() bool {
	return q.Kind == KindWritten
}

// Submission is a learner's answer to a single question.
type Submission struct {
	QuestionID  string `json:"question_id"`
	Selected    []int  `json:"selected,omitempty"`
	Text        string `json:"text,omitempty"`
	TimeSpentMS int64  `json:"time_spent_ms,omitempty"`
}

// ScoreResult is the outcome of scoring one question.
type ScoreResult struct {
	QuestionID     string  `json:"question_id"`
	Percentage     int     `json:"percentage"`
	PointsEarned   float64 `json:"points_earned"`
	MaxPoints      int     `json:"max_points"`
	IsFullyCorrect bool    `json:"is_fully_correct"`
	TimeSpentMS    int64   `json:"time_spent_ms,omitempty"`
}

// AttemptResult aggregates the scores of a full quiz or exam attempt.
type AttemptResult struct {
	Questions       []ScoreResult `json:"questions"`
	TotalEarned     float64       `json:"total_earned"`
	TotalMax        int           `json:"total_max"`
	PercentageScore int           `json:"percentage_score"`
}

// AttemptMode selects the point policy applied to an attempt.
type AttemptMode string

const (
	ModeQuiz AttemptMode = "quiz"
	ModeExam AttemptMode = "exam"
)

// IsValid reports whether m is a known attempt mode.
func (m AttemptMode) IsValid() bool {
	return m == ModeQuiz || m == ModeExam
}

// Attempt is a scored attempt as persisted by the store.
type Attempt struct {
	ID        string        `json:"id"`
	Mode      AttemptMode   `json:"mode"`
	CreatedAt time.Time     `json:"created_at"`
	Result    AttemptResult `json:"result"`
}

// QuestionImport is the JSON form of a question, used for question bank files,
// storage and LLM output.
type QuestionImport struct {
	ID              string     `json:"id"`
	Prompt          string     `json:"prompt"`
	Kind            Kind       `json:"kind"`
	Options         []string   `json:"options,omitempty"`
	CorrectIndex    *int       `json:"correct_index,omitempty"`
	CorrectIndices  []int      `json:"correct_indices,omitempty"`
	ReferenceAnswer string     `json:"reference_answer,omitempty"`
	Difficulty      Difficulty `json:"difficulty"`
	Subject         string     `json:"subject,omitempty"`
}

// Question converts the wire form into a Question. It only checks that the key
// fields required by the kind are present; structural validation is done by the
// scoring package.
func (qi QuestionImport) Question() (Question, error) {
	q := Question{
		ID:         qi.ID,
		Prompt:     qi.Prompt,
		Kind:       qi.Kind,
		Options:    qi.Options,
		Difficulty: qi.Difficulty,
		Subject:    qi.Subject,
	}
	switch qi.Kind {
	case KindSingleChoice, KindTrueFalse:
		if qi.CorrectIndex == nil {
			return q, fmt.Errorf("question %q: correct_index is required for %s", qi.ID, qi.Kind)
		}
		q.Key = SingleChoiceKey{Index: *qi.CorrectIndex}
	case KindMultiSelect:
		q.Key = MultiSelectKey{Indices: append([]int(nil), qi.CorrectIndices...)}
	case KindWritten:
		q.Key = WrittenKey{Reference: qi.ReferenceAnswer}
	default:
		return q, fmt.Errorf("question %q: unknown kind %q", qi.ID, qi.Kind)
	}
	return q, nil
}

// NewQuestionImport converts a Question into its wire form.
func NewQuestionImport(q Question) QuestionImport {
	qi := QuestionImport{
		ID:         q.ID,
		Prompt:     q.Prompt,
		Kind:       q.Kind,
		Options:    q.Options,
		Difficulty: q.Difficulty,
		Subject:    q.Subject,
	}
	switch k := q.Key.(type) {
	case SingleChoiceKey:
		idx := k.Index
		qi.CorrectIndex = &idx
	case MultiSelectKey:
		qi.CorrectIndices = append([]int(nil), k.Indices...)
	case WrittenKey:
		qi.ReferenceAnswer = k.Reference
	}
	return qi
}

// PublicQuestion is a question as shown to learners, without its answer key.
type PublicQuestion struct {
	ID         string     `json:"id"`
	Prompt     string     `json:"prompt"`
	Kind       Kind       `json:"kind"`
	Options    []string   `json:"options,omitempty"`
	Difficulty Difficulty `json:"difficulty"`
	Subject    string     `json:"subject,omitempty"`
}

// Public strips the answer key.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Prompt:     q.Prompt,
		Kind:       q.Kind,
		Options:    q.Options,
		Difficulty: q.Difficulty,
		Subject:    q.Subject,
	}
}
