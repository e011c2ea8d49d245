package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pavelanni/studyscore/internal/generation"
	appI18n "github.com/pavelanni/studyscore/internal/i18n"
	"github.com/pavelanni/studyscore/internal/llm/prompts"
	"github.com/pavelanni/studyscore/internal/model"
	"github.com/pavelanni/studyscore/internal/scoring"
	"github.com/pavelanni/studyscore/internal/store"
)

// QuestionGenerator produces questions for a generation plan.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, plan generation.Plan, material string) ([]model.Question, error)
}

// Config holds the API settings.
type Config struct {
	Limits     generation.Limits
	QuizPoints scoring.PointTable
	ExamPoints scoring.PointTable
	// Workers bounds concurrent scoring per attempt. Zero uses GOMAXPROCS.
	Workers int
	// TokenHash is a bcrypt hash of the API token. Empty disables auth.
	TokenHash       string
	MaxBodyBytes    int64
	GenerateTimeout time.Duration
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	gen     QuestionGenerator
	engines map[model.AttemptMode]*scoring.Engine
	tokens  *tokenVerifier
	config  Config
	now     func() time.Time
}

// New creates a new Handler. gen may be nil, in which case generation
// endpoints respond with 503.
func New(s *store.Store, gen QuestionGenerator, cfg Config) (*Handler, error) {
	if cfg.QuizPoints == (scoring.PointTable{}) {
		cfg.QuizPoints = scoring.QuizPoints
	}
	if cfg.ExamPoints == (scoring.PointTable{}) {
		cfg.ExamPoints = scoring.ExamPoints
	}
	if err := cfg.QuizPoints.Validate(); err != nil {
		return nil, fmt.Errorf("quiz points: %w", err)
	}
	if err := cfg.ExamPoints.Validate(); err != nil {
		return nil, fmt.Errorf("exam points: %w", err)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 2 * time.Minute
	}
	h := &Handler{
		store: s,
		gen:   gen,
		engines: map[model.AttemptMode]*scoring.Engine{
			model.ModeQuiz: scoring.NewEngine(scoring.WithPointTable(cfg.QuizPoints), scoring.WithWorkers(cfg.Workers)),
			model.ModeExam: scoring.NewEngine(scoring.WithPointTable(cfg.ExamPoints), scoring.WithWorkers(cfg.Workers)),
		},
		tokens: newTokenVerifier(cfg.TokenHash),
		config: cfg,
		now:    time.Now,
	}
	return h, nil
}

// Router builds the HTTP router with logging, recovery and localization.
func (h *Handler) Router(lang string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(api chi.Router) {
		api.Use(h.requireToken)
		api.Get("/questions", h.handleListQuestions)
		api.Get("/subjects", h.handleListSubjects)
		api.Post("/attempts", h.handleCreateAttempt)
		api.Get("/attempts", h.handleListAttempts)
		api.Get("/attempts/{attemptID}", h.handleGetAttempt)
		api.Post("/generation/plan", h.handlePlan)
		api.Post("/generation", h.handleGenerate)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type questionsResponse struct {
	Questions []model.PublicQuestion `json:"questions"`
	Count     int                    `json:"count"`
	Message   string                 `json:"message"`
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	difficulty := r.URL.Query().Get("difficulty")
	if difficulty != "" && !model.Difficulty(difficulty).IsValid() {
		h.writeError(w, r, fmt.Errorf("%w: unknown difficulty %q", errBadRequest, difficulty))
		return
	}
	questions, err := h.store.ListQuestionsFiltered(difficulty, r.URL.Query().Get("subject"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	public := make([]model.PublicQuestion, len(questions))
	for i, q := range questions {
		public[i] = q.Public()
	}
	writeJSON(w, http.StatusOK, questionsResponse{
		Questions: public,
		Count:     len(public),
		Message:   appI18n.Tp(r.Context(), "QuestionsAvailable", len(public)),
	})
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.ListDistinctSubjects()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"subjects": subjects})
}

type attemptRequest struct {
	Mode        model.AttemptMode  `json:"mode"`
	QuestionIDs []string           `json:"question_ids,omitempty"`
	Submissions []model.Submission `json:"submissions"`
}

type attemptResponse struct {
	Attempt model.Attempt `json:"attempt"`
	Summary string        `json:"summary"`
}

func (h *Handler) handleCreateAttempt(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Mode == "" {
		req.Mode = model.ModeQuiz
	}
	engine, ok := h.engines[req.Mode]
	if !ok {
		h.writeError(w, r, fmt.Errorf("%w: unknown mode %q", errBadRequest, req.Mode))
		return
	}

	items, err := h.attemptItems(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := engine.Score(r.Context(), items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	attempt := model.Attempt{
		ID:        uuid.NewString(),
		Mode:      req.Mode,
		CreatedAt: h.now().UTC(),
		Result:    result,
	}
	if err := h.store.SaveAttempt(attempt); err != nil {
		h.writeError(w, r, fmt.Errorf("save attempt: %w", err))
		return
	}
	slog.Info("attempt scored",
		"attempt_id", attempt.ID,
		"mode", attempt.Mode,
		"questions", len(result.Questions),
		"percentage", result.PercentageScore)

	writeJSON(w, http.StatusCreated, attemptResponse{
		Attempt: attempt,
		Summary: attemptSummary(r.Context(), result),
	})
}

// attemptItems pairs the requested questions with their submissions. Without
// explicit question IDs the attempt covers the submitted questions in order.
// Questions without a submission are scored as unanswered.
func (h *Handler) attemptItems(req attemptRequest) ([]scoring.Item, error) {
	subs := make(map[string]model.Submission, len(req.Submissions))
	var order []string
	for _, s := range req.Submissions {
		if s.QuestionID == "" {
			return nil, fmt.Errorf("%w: submission without question_id", errBadRequest)
		}
		if _, dup := subs[s.QuestionID]; dup {
			return nil, fmt.Errorf("%w: duplicate submission for question %q", errBadRequest, s.QuestionID)
		}
		subs[s.QuestionID] = s
		order = append(order, s.QuestionID)
	}

	ids := req.QuestionIDs
	if len(ids) == 0 {
		ids = order
	} else {
		wanted := make(map[string]bool, len(ids))
		for _, id := range ids {
			if wanted[id] {
				return nil, fmt.Errorf("%w: question %q listed twice", errBadRequest, id)
			}
			wanted[id] = true
		}
		for _, id := range order {
			if !wanted[id] {
				return nil, fmt.Errorf("%w: submission for question %q outside the attempt", errBadRequest, id)
			}
		}
	}

	questions, err := h.store.GetQuestions(ids)
	if err != nil {
		return nil, err
	}
	items := make([]scoring.Item, len(questions))
	for i, q := range questions {
		sub, ok := subs[q.ID]
		if !ok {
			sub = model.Submission{QuestionID: q.ID}
		}
		items[i] = scoring.Item{Question: q, Submission: sub}
	}
	return items, nil
}

func attemptSummary(ctx context.Context, result model.AttemptResult) string {
	return appI18n.Td(ctx, "AttemptSummary", map[string]any{
		"Earned":     result.TotalEarned,
		"Max":        result.TotalMax,
		"Percentage": result.PercentageScore,
	})
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.store.ListAttempts()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.Attempt{"attempts": attempts})
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.store.GetAttempt(chi.URLParam(r, "attemptID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attemptResponse{
		Attempt: attempt,
		Summary: attemptSummary(r.Context(), attempt.Result),
	})
}

type generationRequest struct {
	generation.Request
	Material string `json:"material"`
}

type planResponse struct {
	Plan   generation.Plan `json:"plan"`
	Prompt string          `json:"prompt"`
}

func (h *Handler) decodePlan(w http.ResponseWriter, r *http.Request) (generation.Plan, string, error) {
	var req generationRequest
	if err := h.decode(w, r, &req); err != nil {
		return generation.Plan{}, "", err
	}
	plan, err := generation.NewPlan(req.Request, h.config.Limits)
	if err != nil {
		return generation.Plan{}, "", err
	}
	return plan, req.Material, nil
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	plan, material, err := h.decodePlan(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	prompt, err := prompts.BuildGeneratePrompt(prompts.VariantFor(plan.Request.Mode), plan, material)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse{Plan: plan, Prompt: prompt})
}

type generateResponse struct {
	Plan      generation.Plan        `json:"plan"`
	Questions []model.PublicQuestion `json:"questions"`
	Matches   bool                   `json:"matches_plan"`
	Message   string                 `json:"message"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if h.gen == nil {
		h.writeError(w, r, errGenerationDisabled)
		return
	}
	plan, material, err := h.decodePlan(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.GenerateTimeout)
	defer cancel()
	questions, err := h.gen.GenerateQuestions(ctx, plan, material)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errGenerationFailed, err))
		return
	}

	public := make([]model.PublicQuestion, len(questions))
	for i, q := range questions {
		if err := h.store.UpsertQuestion(q); err != nil {
			h.writeError(w, r, fmt.Errorf("store question %s: %w", q.ID, err))
			return
		}
		public[i] = q.Public()
	}
	slog.Info("questions generated", "requested", plan.Request.Total, "stored", len(questions))

	writeJSON(w, http.StatusCreated, generateResponse{
		Plan:      plan,
		Questions: public,
		Matches:   plan.Matches(questions),
		Message:   appI18n.Tp(r.Context(), "QuestionsGenerated", len(questions)),
	})
}

// decode reads a JSON body into v, rejecting unknown fields and oversized
// bodies.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

var _ QuestionGenerator = (QuestionGeneratorFunc)(nil)

// QuestionGeneratorFunc adapts a function to QuestionGenerator.
type QuestionGeneratorFunc func(ctx context.Context, plan generation.Plan, material string) ([]model.Question, error)

// GenerateQuestions calls f.
func (f QuestionGeneratorFunc) GenerateQuestions(ctx context.Context, plan generation.Plan, material string) ([]model.Question, error) {
	return f(ctx, plan, material)
}
