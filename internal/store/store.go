package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pavelanni/studyscore/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a question or attempt does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers. Queries must not be issued on s.db while a transaction is open.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		kind TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		correct_index INTEGER,
		correct_indices TEXT NOT NULL DEFAULT '[]',
		reference_answer TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_questions_difficulty ON questions(difficulty);
	CREATE INDEX IF NOT EXISTS idx_questions_subject ON questions(subject);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		total_earned REAL NOT NULL DEFAULT 0,
		total_max INTEGER NOT NULL DEFAULT 0,
		percentage_score INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS score_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		percentage INTEGER NOT NULL,
		points_earned REAL NOT NULL,
		max_points INTEGER NOT NULL,
		is_fully_correct INTEGER NOT NULL,
		time_spent_ms INTEGER NOT NULL DEFAULT 0,
		UNIQUE (attempt_id, position),
		FOREIGN KEY (attempt_id) REFERENCES attempts(id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const questionColumns = `id, prompt, kind, options, correct_index, correct_indices, reference_answer, difficulty, subject`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(r rowScanner) (model.Question, error) {
	var (
		qi             model.QuestionImport
		options        string
		correctIndex   sql.NullInt64
		correctIndices string
	)
	if err := r.Scan(&qi.ID, &qi.Prompt, &qi.Kind, &options, &correctIndex, &correctIndices,
		&qi.ReferenceAnswer, &qi.Difficulty, &qi.Subject); err != nil {
		return model.Question{}, err
	}
	if err := json.Unmarshal([]byte(options), &qi.Options); err != nil {
		return model.Question{}, fmt.Errorf("question %s options: %w", qi.ID, err)
	}
	if err := json.Unmarshal([]byte(correctIndices), &qi.CorrectIndices); err != nil {
		return model.Question{}, fmt.Errorf("question %s correct indices: %w", qi.ID, err)
	}
	if correctIndex.Valid {
		idx := int(correctIndex.Int64)
		qi.CorrectIndex = &idx
	}
	return qi.Question()
}

func scanQuestions(rows *sql.Rows) ([]model.Question, error) {
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// UpsertQuestion inserts a question or replaces the stored one with the same ID.
func (s *Store) UpsertQuestion(q model.Question) error {
	qi := model.NewQuestionImport(q)
	options, err := json.Marshal(nonNil(qi.Options))
	if err != nil {
		return err
	}
	correctIndices, err := json.Marshal(nonNil(qi.CorrectIndices))
	if err != nil {
		return err
	}
	var correctIndex sql.NullInt64
	if qi.CorrectIndex != nil {
		correctIndex = sql.NullInt64{Int64: int64(*qi.CorrectIndex), Valid: true}
	}
	_, err = s.db.Exec(
		`INSERT INTO questions (`+questionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			prompt = excluded.prompt,
			kind = excluded.kind,
			options = excluded.options,
			correct_index = excluded.correct_index,
			correct_indices = excluded.correct_indices,
			reference_answer = excluded.reference_answer,
			difficulty = excluded.difficulty,
			subject = excluded.subject`,
		qi.ID, qi.Prompt, qi.Kind, string(options), correctIndex, string(correctIndices),
		qi.ReferenceAnswer, qi.Difficulty, qi.Subject,
	)
	return err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id string) (model.Question, error) {
	q, err := scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return q, fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	return q, err
}

// GetQuestions returns the questions with the given IDs in the order given.
// Every ID must exist.
func (s *Store) GetQuestions(ids []string) ([]model.Question, error) {
	if len(ids) == 0 {
		return []model.Question{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(`SELECT `+questionColumns+` FROM questions WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	found, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]model.Question, len(ids))
	for i, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %q: %w", id, ErrNotFound)
		}
		out[i] = q
	}
	return out, nil
}

// ListQuestions returns all questions.
func (s *Store) ListQuestions() ([]model.Question, error) {
	return s.ListQuestionsFiltered("", "")
}

// ListQuestionsFiltered returns questions matching the given filters.
// Empty strings mean no filtering on that field.
func (s *Store) ListQuestionsFiltered(difficulty string, subject string) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	var args []any
	if difficulty != "" {
		query += ` AND difficulty = ?`
		args = append(args, difficulty)
	}
	if subject != "" {
		query += ` AND subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY rowid`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

// ListDistinctSubjects returns the subjects used by stored questions in
// alphabetical order.
func (s *Store) ListDistinctSubjects() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT subject FROM questions WHERE subject != '' ORDER BY subject`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subjects := []string{}
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, err
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// SaveAttempt stores a scored attempt with its per-question results.
func (s *Store) SaveAttempt(a model.Attempt) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO attempts (id, mode, created_at, total_earned, total_max, percentage_score)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Mode, a.CreatedAt.UTC(), a.Result.TotalEarned, a.Result.TotalMax, a.Result.PercentageScore,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	for i, r := range a.Result.Questions {
		_, err := tx.Exec(
			`INSERT INTO score_results (attempt_id, position, question_id, percentage, points_earned, max_points, is_fully_correct, time_spent_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, i, r.QuestionID, r.Percentage, r.PointsEarned, r.MaxPoints, r.IsFullyCorrect, r.TimeSpentMS,
		)
		if err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetAttempt returns an attempt with its per-question results.
func (s *Store) GetAttempt(id string) (model.Attempt, error) {
	var a model.Attempt
	err := s.db.QueryRow(
		`SELECT id, mode, created_at, total_earned, total_max, percentage_score FROM attempts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Mode, &a.CreatedAt, &a.Result.TotalEarned, &a.Result.TotalMax, &a.Result.PercentageScore)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("attempt %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return a, err
	}
	a.Result.Questions, err = s.getScoreResults(id)
	return a, err
}

func (s *Store) getScoreResults(attemptID string) ([]model.ScoreResult, error) {
	rows, err := s.db.Query(
		`SELECT question_id, percentage, points_earned, max_points, is_fully_correct, time_spent_ms
		 FROM score_results WHERE attempt_id = ? ORDER BY position`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []model.ScoreResult{}
	for rows.Next() {
		var r model.ScoreResult
		if err := rows.Scan(&r.QuestionID, &r.Percentage, &r.PointsEarned, &r.MaxPoints, &r.IsFullyCorrect, &r.TimeSpentMS); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListAttempts returns attempt summaries, newest first. Per-question results
// are not loaded.
func (s *Store) ListAttempts() ([]model.Attempt, error) {
	rows, err := s.db.Query(
		`SELECT id, mode, created_at, total_earned, total_max, percentage_score
		 FROM attempts ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	attempts := []model.Attempt{}
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.Mode, &a.CreatedAt, &a.Result.TotalEarned, &a.Result.TotalMax, &a.Result.PercentageScore); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
