package store

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/pavelanni/studyscore/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestQuestion(t *testing.T, s *Store, id string, difficulty model.Difficulty, subject string) model.Question {
	t.Helper()
	q := model.Question{
		ID:         id,
		Prompt:     "prompt for " + id,
		Kind:       model.KindWritten,
		Key:        model.WrittenKey{Reference: "answer for " + id},
		Difficulty: difficulty,
		Subject:    subject,
	}
	if err := s.UpsertQuestion(q); err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	return q
}

func TestQuestionCRUD(t *testing.T) {
	s := newTestStore(t)

	// Empty DB should return zero count and empty list.
	count, err := s.QuestionCount()
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}

	list, err := s.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	insertTestQuestion(t, s, "q1", model.DifficultyEasy, "biology")
	q, err := s.GetQuestion("q1")
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Prompt != "prompt for q1" || q.Kind != model.KindWritten || q.Subject != "biology" {
		t.Errorf("unexpected question: %+v", q)
	}
	if k, ok := q.Key.(model.WrittenKey); !ok || k.Reference != "answer for q1" {
		t.Errorf("unexpected key: %#v", q.Key)
	}

	// Upsert replaces.
	q.Prompt = "updated"
	if err := s.UpsertQuestion(q); err != nil {
		t.Fatalf("UpsertQuestion: %v", err)
	}
	q, _ = s.GetQuestion("q1")
	if q.Prompt != "updated" {
		t.Errorf("expected updated prompt, got %q", q.Prompt)
	}
	count, _ = s.QuestionCount()
	if count != 1 {
		t.Errorf("expected 1 question after upsert, got %d", count)
	}

	_, err = s.GetQuestion("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQuestionKeysRoundTrip(t *testing.T) {
	s := newTestStore(t)
	questions := []model.Question{
		{
			ID: "sc", Prompt: "pick", Kind: model.KindSingleChoice,
			Options: []string{"a", "b", "c"}, Key: model.SingleChoiceKey{Index: 0},
			Difficulty: model.DifficultyMedium,
		},
		{
			ID: "ms", Prompt: "pick many", Kind: model.KindMultiSelect,
			Options: []string{"a", "b", "c"}, Key: model.MultiSelectKey{Indices: []int{0, 2}},
			Difficulty: model.DifficultyHard,
		},
		{
			ID: "tf", Prompt: "true?", Kind: model.KindTrueFalse,
			Options: []string{"True", "False"}, Key: model.SingleChoiceKey{Index: 1},
			Difficulty: model.DifficultyEasy,
		},
	}
	for _, q := range questions {
		if err := s.UpsertQuestion(q); err != nil {
			t.Fatalf("UpsertQuestion(%s): %v", q.ID, err)
		}
	}

	got, err := s.GetQuestions([]string{"tf", "sc", "ms"})
	if err != nil {
		t.Fatalf("GetQuestions: %v", err)
	}
	if got[0].ID != "tf" || got[1].ID != "sc" || got[2].ID != "ms" {
		t.Fatalf("GetQuestions did not keep order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
	if k, ok := got[0].Key.(model.SingleChoiceKey); !ok || k.Index != 1 {
		t.Errorf("tf key = %#v", got[0].Key)
	}
	if k, ok := got[1].Key.(model.SingleChoiceKey); !ok || k.Index != 0 {
		t.Errorf("sc key = %#v", got[1].Key)
	}
	if k, ok := got[2].Key.(model.MultiSelectKey); !ok || !slices.Equal(k.Indices, []int{0, 2}) {
		t.Errorf("ms key = %#v", got[2].Key)
	}
	if !slices.Equal(got[1].Options, []string{"a", "b", "c"}) {
		t.Errorf("options = %v", got[1].Options)
	}
}

func TestGetQuestionsMissing(t *testing.T) {
	s := newTestStore(t)
	insertTestQuestion(t, s, "q1", model.DifficultyEasy, "")

	_, err := s.GetQuestions([]string{"q1", "nope"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	empty, err := s.GetQuestions(nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("GetQuestions(nil) = %v, %v", empty, err)
	}
}

func TestListQuestionsFiltered(t *testing.T) {
	s := newTestStore(t)
	insertTestQuestion(t, s, "q1", model.DifficultyEasy, "biology")
	insertTestQuestion(t, s, "q2", model.DifficultyHard, "biology")
	insertTestQuestion(t, s, "q3", model.DifficultyEasy, "chemistry")

	tests := []struct {
		name       string
		difficulty string
		subject    string
		want       []string
	}{
		{"no filter", "", "", []string{"q1", "q2", "q3"}},
		{"difficulty", "easy", "", []string{"q1", "q3"}},
		{"subject", "", "biology", []string{"q1", "q2"}},
		{"both", "hard", "biology", []string{"q2"}},
		{"no match", "medium", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListQuestionsFiltered(tt.difficulty, tt.subject)
			if err != nil {
				t.Fatalf("ListQuestionsFiltered: %v", err)
			}
			var ids []string
			for _, q := range list {
				ids = append(ids, q.ID)
			}
			if !slices.Equal(ids, tt.want) {
				t.Errorf("got %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestListDistinctSubjects(t *testing.T) {
	s := newTestStore(t)

	subjects, err := s.ListDistinctSubjects()
	if err != nil {
		t.Fatalf("ListDistinctSubjects: %v", err)
	}
	if len(subjects) != 0 {
		t.Errorf("expected 0 subjects, got %d", len(subjects))
	}

	insertTestQuestion(t, s, "q1", model.DifficultyEasy, "physics")
	insertTestQuestion(t, s, "q2", model.DifficultyEasy, "biology")
	insertTestQuestion(t, s, "q3", model.DifficultyEasy, "physics")
	insertTestQuestion(t, s, "q4", model.DifficultyEasy, "")
	subjects, _ = s.ListDistinctSubjects()
	if !slices.Equal(subjects, []string{"biology", "physics"}) {
		t.Errorf("expected [biology physics], got %v", subjects)
	}
}

func testAttempt(id string, created time.Time) model.Attempt {
	return model.Attempt{
		ID:        id,
		Mode:      model.ModeExam,
		CreatedAt: created,
		Result: model.AttemptResult{
			Questions: []model.ScoreResult{
				{QuestionID: "q1", Percentage: 100, PointsEarned: 3, MaxPoints: 3, IsFullyCorrect: true, TimeSpentMS: 1200},
				{QuestionID: "q2", Percentage: 50, PointsEarned: 4, MaxPoints: 8},
			},
			TotalEarned:     7,
			TotalMax:        11,
			PercentageScore: 64,
		},
	}
}

func TestAttemptLifecycle(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	want := testAttempt("a1", created)

	if err := s.SaveAttempt(want); err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}

	got, err := s.GetAttempt("a1")
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if got.Mode != model.ModeExam || !got.CreatedAt.Equal(created) {
		t.Errorf("unexpected attempt header: %+v", got)
	}
	if got.Result.TotalEarned != 7 || got.Result.TotalMax != 11 || got.Result.PercentageScore != 64 {
		t.Errorf("unexpected totals: %+v", got.Result)
	}
	if !slices.Equal(got.Result.Questions, want.Result.Questions) {
		t.Errorf("results = %+v, want %+v", got.Result.Questions, want.Result.Questions)
	}

	// Duplicate ID is rejected and leaves no partial rows.
	if err := s.SaveAttempt(want); err == nil {
		t.Error("expected error saving duplicate attempt")
	}
	got, _ = s.GetAttempt("a1")
	if len(got.Result.Questions) != 2 {
		t.Errorf("expected 2 results after failed save, got %d", len(got.Result.Questions))
	}

	_, err = s.GetAttempt("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEmptyAttempt(t *testing.T) {
	s := newTestStore(t)
	a := model.Attempt{ID: "empty", Mode: model.ModeQuiz, CreatedAt: time.Now()}
	if err := s.SaveAttempt(a); err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}
	got, err := s.GetAttempt("empty")
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if got.Result.Questions == nil || len(got.Result.Questions) != 0 {
		t.Errorf("expected empty non-nil results, got %#v", got.Result.Questions)
	}
}

func TestListAttempts(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		offset := []time.Duration{0, 2 * time.Hour, time.Hour}[i]
		if err := s.SaveAttempt(testAttempt(id, base.Add(offset))); err != nil {
			t.Fatalf("SaveAttempt(%s): %v", id, err)
		}
	}

	list, err := s.ListAttempts()
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	var ids []string
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	if !slices.Equal(ids, []string{"new", "mid", "old"}) {
		t.Errorf("expected newest first, got %v", ids)
	}
}

func TestExportAttempts(t *testing.T) {
	s := newTestStore(t)
	insertTestQuestion(t, s, "q1", model.DifficultyEasy, "biology")
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.SaveAttempt(testAttempt("later", base.Add(time.Hour))); err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}
	if err := s.SaveAttempt(testAttempt("earlier", base)); err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}

	export, err := s.ExportAttempts()
	if err != nil {
		t.Fatalf("ExportAttempts: %v", err)
	}
	if export.NumAttempts != 2 || len(export.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", export.NumAttempts)
	}
	if export.Attempts[0].ID != "earlier" {
		t.Errorf("expected oldest first, got %s", export.Attempts[0].ID)
	}
	qs := export.Attempts[0].Questions
	if len(qs) != 2 {
		t.Fatalf("expected 2 question results, got %d", len(qs))
	}
	if qs[0].Prompt != "prompt for q1" || qs[0].Subject != "biology" || qs[0].Kind != model.KindWritten {
		t.Errorf("question details not joined: %+v", qs[0])
	}
	// q2 was never stored.
	if qs[1].Prompt != "" || qs[1].PointsEarned != 4 {
		t.Errorf("unexpected result for missing question: %+v", qs[1])
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}
