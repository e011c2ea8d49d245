package scoring

import (
	"context"
	"errors"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/studyscore/internal/model"
)

// Item pairs a question with the learner's submission for it. A zero
// Submission means the question was left unanswered.
type Item struct {
	Question   model.Question
	Submission model.Submission
}

// Option configures an Engine.
type Option func(*Engine)

// WithPointTable sets the table used to allocate maximum points.
func WithPointTable(t PointTable) Option { return func(e *Engine) { e.points = t } }

// WithWorkers bounds the number of questions scored concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// Engine scores full attempts. It holds only configuration and is safe for
// concurrent use.
type Engine struct {
	points  PointTable
	workers int
}

// NewEngine returns an engine using QuizPoints unless configured otherwise.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		points:  QuizPoints,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// PointTable returns the table the engine allocates points with.
func (e *Engine) PointTable() PointTable { return e.points }

// ScoreQuestion validates and scores a single question.
func (e *Engine) ScoreQuestion(q model.Question, sub model.Submission) (model.ScoreResult, error) {
	if err := ValidateQuestion(q); err != nil {
		return model.ScoreResult{}, err
	}
	return e.score(q, sub)
}

func (e *Engine) score(q model.Question, sub model.Submission) (model.ScoreResult, error) {
	maxPoints, err := e.points.MaxPoints(q.Difficulty, q.IsOpenEnded())
	if err != nil {
		return model.ScoreResult{}, err
	}
	pct := scorePercentage(q, sub)
	return model.ScoreResult{
		QuestionID:     q.ID,
		Percentage:     pct,
		PointsEarned:   PointsEarned(pct, maxPoints),
		MaxPoints:      maxPoints,
		IsFullyCorrect: IsFullyCorrect(pct),
		TimeSpentMS:    sub.TimeSpentMS,
	}, nil
}

// Score grades every item and aggregates the totals. All questions are
// validated before any scoring happens; malformed questions abort the attempt
// with their errors joined. Results keep the order of items.
func (e *Engine) Score(ctx context.Context, items []Item) (model.AttemptResult, error) {
	var errs []error
	for _, it := range items {
		if err := ValidateQuestion(it.Question); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return model.AttemptResult{}, errors.Join(errs...)
	}

	results := make([]model.ScoreResult, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, it := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := e.score(it.Question, it.Submission)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.AttemptResult{}, err
	}
	return Aggregate(results), nil
}

// Aggregate sums per-question results. An empty result set has a percentage
// score of 0.
func Aggregate(results []model.ScoreResult) model.AttemptResult {
	out := model.AttemptResult{Questions: results}
	if out.Questions == nil {
		out.Questions = []model.ScoreResult{}
	}
	for _, r := range results {
		out.TotalEarned += r.PointsEarned
		out.TotalMax += r.MaxPoints
	}
	out.TotalEarned = roundTenth(out.TotalEarned)
	if out.TotalMax > 0 {
		out.PercentageScore = int(math.Round(100 * out.TotalEarned / float64(out.TotalMax)))
	}
	return out
}
