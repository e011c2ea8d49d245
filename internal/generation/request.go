// Package generation validates question generation requests and turns them
// into per-kind and per-difficulty quotas.
package generation

import (
	"errors"
	"fmt"

	"github.com/pavelanni/studyscore/internal/model"
	"github.com/pavelanni/studyscore/internal/quota"
)

// ErrInvalidRequest is returned for generation requests that violate the
// configured limits.
var ErrInvalidRequest = errors.New("invalid generation request")

// Request is a learner's ask for a generated quiz or exam.
type Request struct {
	Total        int                `json:"total"`
	Types        []model.Kind       `json:"types"`
	Difficulties []model.Difficulty `json:"difficulties,omitempty"`
	Subject      string             `json:"subject,omitempty"`
	Mode         model.AttemptMode  `json:"mode,omitempty"`
}

// Limits are the business rules applied on top of quota planning.
type Limits struct {
	// MaxQuestions caps Total. Zero means no cap.
	MaxQuestions int
	// RequireEveryType rejects requests that would leave a selected kind
	// without questions.
	RequireEveryType bool
}

// DefaultLimits matches the defaults of the serve command.
var DefaultLimits = Limits{MaxQuestions: 50, RequireEveryType: true}

// Validate checks r against l. Non-positive totals and empty type lists are
// reported as quota.ErrInvalidQuota; everything else as ErrInvalidRequest.
func (r Request) Validate(l Limits) error {
	if r.Total <= 0 {
		return fmt.Errorf("%w: total must be positive, got %d", quota.ErrInvalidQuota, r.Total)
	}
	if len(r.Types) == 0 {
		return fmt.Errorf("%w: at least one question type is required", quota.ErrInvalidQuota)
	}
	for _, k := range r.Types {
		if !k.IsValid() {
			return fmt.Errorf("%w: unknown question type %q", ErrInvalidRequest, k)
		}
	}
	for _, d := range r.Difficulties {
		if !d.IsValid() {
			return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequest, d)
		}
	}
	if r.Mode != "" && !r.Mode.IsValid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode)
	}
	if l.MaxQuestions > 0 && r.Total > l.MaxQuestions {
		return fmt.Errorf("%w: %d questions requested, at most %d allowed", ErrInvalidRequest, r.Total, l.MaxQuestions)
	}
	if l.RequireEveryType && r.Total < len(r.Types) {
		return fmt.Errorf("%w: %d questions cannot cover %d selected types", ErrInvalidRequest, r.Total, len(r.Types))
	}
	return nil
}

// Plan is a validated request with its quotas.
type Plan struct {
	Request         Request                        `json:"request"`
	TypeQuota       []quota.Share[model.Kind]       `json:"type_quota"`
	DifficultyQuota []quota.Share[model.Difficulty] `json:"difficulty_quota"`
}

// NewPlan validates r and splits its total across the selected kinds and,
// independently, across difficulties. An empty difficulty list means all
// difficulties; an empty mode means quiz.
func NewPlan(r Request, l Limits) (Plan, error) {
	if err := r.Validate(l); err != nil {
		return Plan{}, err
	}
	if len(r.Difficulties) == 0 {
		r.Difficulties = append([]model.Difficulty(nil), model.Difficulties...)
	}
	if r.Mode == "" {
		r.Mode = model.ModeQuiz
	}
	types, err := quota.Allocate(r.Total, r.Types)
	if err != nil {
		return Plan{}, fmt.Errorf("type quota: %w", err)
	}
	difficulties, err := quota.Allocate(r.Total, r.Difficulties)
	if err != nil {
		return Plan{}, fmt.Errorf("difficulty quota: %w", err)
	}
	return Plan{Request: r, TypeQuota: types, DifficultyQuota: difficulties}, nil
}

// Counts tallies questions by kind and difficulty, for comparing generated
// output with a plan.
func Counts(questions []model.Question) (map[model.Kind]int, map[model.Difficulty]int) {
	kinds := make(map[model.Kind]int)
	diffs := make(map[model.Difficulty]int)
	for _, q := range questions {
		kinds[q.Kind]++
		diffs[q.Difficulty]++
	}
	return kinds, diffs
}

// Matches reports whether questions satisfy the plan's type and difficulty
// quotas exactly.
func (p Plan) Matches(questions []model.Question) bool {
	kinds, diffs := Counts(questions)
	wantKinds := make(map[model.Kind]int)
	for _, s := range p.TypeQuota {
		wantKinds[s.Category] += s.Count
	}
	wantDiffs := make(map[model.Difficulty]int)
	for _, s := range p.DifficultyQuota {
		wantDiffs[s.Category] += s.Count
	}
	return sameCounts(kinds, wantKinds) && sameCounts(diffs, wantDiffs)
}

func sameCounts[K comparable](got, want map[K]int) bool {
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	for k, v := range got {
		if want[k] != v {
			return false
		}
	}
	return true
}
