package model

import "time"

// AttemptExport is the top-level JSON structure for attempt export.
type AttemptExport struct {
	ExportedAt  time.Time       `json:"exported_at"`
	NumAttempts int             `json:"num_attempts"`
	Attempts    []AttemptRecord `json:"attempts"`
}

// AttemptRecord holds one stored attempt with its per-question detail.
type AttemptRecord struct {
	ID              string           `json:"id"`
	Mode            AttemptMode      `json:"mode"`
	CreatedAt       time.Time        `json:"created_at"`
	TotalEarned     float64          `json:"total_earned"`
	TotalMax        int              `json:"total_max"`
	PercentageScore int              `json:"percentage_score"`
	Questions       []QuestionResult `json:"questions"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	QuestionID     string     `json:"question_id"`
	Prompt         string     `json:"prompt"`
	Kind           Kind       `json:"kind"`
	Difficulty     Difficulty `json:"difficulty"`
	Subject        string     `json:"subject,omitempty"`
	Percentage     int        `json:"percentage"`
	PointsEarned   float64    `json:"points_earned"`
	MaxPoints      int        `json:"max_points"`
	IsFullyCorrect bool       `json:"is_fully_correct"`
	TimeSpentMS    int64      `json:"time_spent_ms,omitempty"`
}
