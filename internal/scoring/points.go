package scoring

import (
	"fmt"
	"math"

	"github.com/pavelanni/studyscore/internal/model"
)

// PointTable maps a question's difficulty to its maximum points. Open-ended
// questions receive OpenEndedBonus on top of the base.
type PointTable struct {
	Easy           int `mapstructure:"easy" json:"easy"`
	Medium         int `mapstructure:"medium" json:"medium"`
	Hard           int `mapstructure:"hard" json:"hard"`
	OpenEndedBonus int `mapstructure:"open_ended_bonus" json:"open_ended_bonus"`
}

// QuizPoints is the flat per-difficulty table used for quizzes.
var QuizPoints = PointTable{Easy: 3, Medium: 5, Hard: 7, OpenEndedBonus: 1}

// ExamPoints is the table used for exams. Configured independently of QuizPoints.
var ExamPoints = PointTable{Easy: 3, Medium: 5, Hard: 7, OpenEndedBonus: 1}

// TableFor returns the default table for an attempt mode.
func TableFor(mode model.AttemptMode) PointTable {
	if mode == model.ModeExam {
		return ExamPoints
	}
	return QuizPoints
}

// Validate checks that every lookup yields at least one point.
func (t PointTable) Validate() error {
	if t.Easy < 1 || t.Medium < 1 || t.Hard < 1 {
		return fmt.Errorf("point table %+v: base points must be >= 1", t)
	}
	if t.OpenEndedBonus < 0 {
		return fmt.Errorf("point table %+v: open-ended bonus must be >= 0", t)
	}
	return nil
}

// MaxPoints returns the maximum points for a question of difficulty d.
func (t PointTable) MaxPoints(d model.Difficulty, isOpenEnded bool) (int, error) {
	var base int
	switch d {
	case model.DifficultyEasy:
		base = t.Easy
	case model.DifficultyMedium:
		base = t.Medium
	case model.DifficultyHard:
		base = t.Hard
	default:
		return 0, fmt.Errorf("%w: unknown difficulty %q", ErrMalformedQuestion, d)
	}
	if isOpenEnded {
		base += t.OpenEndedBonus
	}
	return base, nil
}

// MaxPoints looks d up in QuizPoints.
func MaxPoints(d model.Difficulty, isOpenEnded bool) (int, error) {
	return QuizPoints.MaxPoints(d, isOpenEnded)
}

// PointsEarned converts a percentage into points out of maxPoints, rounded to
// one decimal.
func PointsEarned(pct, maxPoints int) float64 {
	return roundTenth(float64(pct) / 100 * float64(maxPoints))
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
