package store

import (
	"fmt"
	"slices"
	"time"

	"github.com/pavelanni/studyscore/internal/model"
)

// ExportAttempts builds export-ready records for every stored attempt, oldest
// first, with question details joined in. Results whose question has since
// been removed keep their scores with empty question fields.
func (s *Store) ExportAttempts() (model.AttemptExport, error) {
	attempts, err := s.ListAttempts()
	if err != nil {
		return model.AttemptExport{}, fmt.Errorf("list attempts: %w", err)
	}
	slices.Reverse(attempts)

	rows, err := s.db.Query(
		`SELECT r.attempt_id, r.question_id,
			COALESCE(q.prompt, ''), COALESCE(q.kind, ''), COALESCE(q.difficulty, ''), COALESCE(q.subject, ''),
			r.percentage, r.points_earned, r.max_points, r.is_fully_correct, r.time_spent_ms
		 FROM score_results r
		 LEFT JOIN questions q ON q.id = r.question_id
		 ORDER BY r.attempt_id, r.position`,
	)
	if err != nil {
		return model.AttemptExport{}, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	byAttempt := make(map[string][]model.QuestionResult)
	for rows.Next() {
		var (
			attemptID string
			qr        model.QuestionResult
		)
		if err := rows.Scan(&attemptID, &qr.QuestionID, &qr.Prompt, &qr.Kind, &qr.Difficulty, &qr.Subject,
			&qr.Percentage, &qr.PointsEarned, &qr.MaxPoints, &qr.IsFullyCorrect, &qr.TimeSpentMS); err != nil {
			return model.AttemptExport{}, err
		}
		byAttempt[attemptID] = append(byAttempt[attemptID], qr)
	}
	if err := rows.Err(); err != nil {
		return model.AttemptExport{}, err
	}

	records := make([]model.AttemptRecord, 0, len(attempts))
	for _, a := range attempts {
		questions := byAttempt[a.ID]
		if questions == nil {
			questions = []model.QuestionResult{}
		}
		records = append(records, model.AttemptRecord{
			ID:              a.ID,
			Mode:            a.Mode,
			CreatedAt:       a.CreatedAt,
			TotalEarned:     a.Result.TotalEarned,
			TotalMax:        a.Result.TotalMax,
			PercentageScore: a.Result.PercentageScore,
			Questions:       questions,
		})
	}

	return model.AttemptExport{
		ExportedAt:  time.Now().UTC(),
		NumAttempts: len(records),
		Attempts:    records,
	}, nil
}
