package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/studyscore/internal/generation"
	"github.com/pavelanni/studyscore/internal/handler"
	"github.com/pavelanni/studyscore/internal/llm/prompts"
	"github.com/pavelanni/studyscore/internal/model"
	"github.com/pavelanni/studyscore/internal/scoring"
	"github.com/pavelanni/studyscore/internal/store"
)

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score submissions against a question file without a database",
		RunE:  runScore,
	}
	f := cmd.Flags()
	f.StringP("questions", "q", "", "Question bank JSON file (required)")
	f.StringP("submissions", "s", "", "Submissions JSON file (required)")
	f.StringP("mode", "m", string(model.ModeQuiz), "Attempt mode (quiz, exam)")
	f.Int("workers", 0, "Questions scored concurrently (0 = GOMAXPROCS)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("questions")
	_ = cmd.MarkFlagRequired("submissions")

	return cmd
}

func runScore(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	mode := model.AttemptMode(v.GetString("mode"))
	if !mode.IsValid() {
		return fmt.Errorf("unknown mode %q", mode)
	}
	quiz, exam, err := pointTables(v)
	if err != nil {
		return err
	}
	table := quiz
	if mode == model.ModeExam {
		table = exam
	}

	questions, err := readQuestionFile(v.GetString("questions"))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(v.GetString("submissions"))
	if err != nil {
		return fmt.Errorf("read submissions: %w", err)
	}
	var submissions []model.Submission
	if err := json.Unmarshal(data, &submissions); err != nil {
		return fmt.Errorf("parse submissions: %w", err)
	}

	items := pairSubmissions(questions, submissions)
	engine := scoring.NewEngine(scoring.WithPointTable(table), scoring.WithWorkers(v.GetInt("workers")))
	result, err := engine.Score(cmd.Context(), items)
	if err != nil {
		return fmt.Errorf("score attempt: %w", err)
	}
	slog.Info("attempt scored", "questions", len(result.Questions), "percentage", result.PercentageScore)

	return writeOutput(v.GetString("output"), result)
}

// pairSubmissions matches submissions to questions by ID, keeping question
// order. Submissions for unknown questions are logged and ignored.
func pairSubmissions(questions []model.Question, submissions []model.Submission) []scoring.Item {
	byID := make(map[string]model.Submission, len(submissions))
	for _, s := range submissions {
		byID[s.QuestionID] = s
	}
	items := make([]scoring.Item, len(questions))
	for i, q := range questions {
		sub, ok := byID[q.ID]
		if !ok {
			sub = model.Submission{QuestionID: q.ID}
		}
		delete(byID, q.ID)
		items[i] = scoring.Item{Question: q, Submission: sub}
	}
	for id := range byID {
		slog.Warn("submission for unknown question ignored", "question_id", id)
	}
	return items
}

func addPlanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("total", "n", 10, "Number of questions")
	f.StringSlice("types", []string{string(model.KindSingleChoice), string(model.KindTrueFalse), string(model.KindWritten)}, "Question types in priority order")
	f.StringSlice("difficulties", nil, "Difficulties in priority order (default all)")
	f.String("subject", "", "Subject of the questions")
	f.StringP("mode", "m", string(model.ModeQuiz), "Attempt mode, selects the prompt variant (quiz, exam)")
	f.String("material", "", "Source material file (- for stdin)")
	f.Int("max-questions", generation.DefaultLimits.MaxQuestions, "Maximum questions per request (0 = no limit)")
	f.Bool("require-every-type", generation.DefaultLimits.RequireEveryType, "Reject requests that leave a selected type empty")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
}

func planFromFlags(v *viper.Viper) (generation.Plan, string, error) {
	req := generation.Request{
		Total:   v.GetInt("total"),
		Subject: v.GetString("subject"),
		Mode:    model.AttemptMode(v.GetString("mode")),
	}
	for _, t := range v.GetStringSlice("types") {
		req.Types = append(req.Types, model.Kind(strings.TrimSpace(t)))
	}
	for _, d := range v.GetStringSlice("difficulties") {
		req.Difficulties = append(req.Difficulties, model.Difficulty(strings.TrimSpace(d)))
	}
	plan, err := generation.NewPlan(req, generation.Limits{
		MaxQuestions:     v.GetInt("max-questions"),
		RequireEveryType: v.GetBool("require-every-type"),
	})
	if err != nil {
		return plan, "", err
	}
	material, err := readMaterial(v.GetString("material"))
	if err != nil {
		return plan, "", err
	}
	return plan, material, nil
}

func readMaterial(path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return "", fmt.Errorf("read material from stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read material: %w", err)
		}
		return string(data), nil
	}
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the question quota and generation prompt for a request",
		RunE:  runPlan,
	}
	addPlanFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

type planOutput struct {
	Plan   generation.Plan `json:"plan"`
	Prompt string          `json:"prompt"`
}

func runPlan(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	plan, material, err := planFromFlags(v)
	if err != nil {
		return err
	}
	prompt, err := prompts.BuildGeneratePrompt(prompts.VariantFor(plan.Request.Mode), plan, material)
	if err != nil {
		return fmt.Errorf("build prompt: %w", err)
	}
	return writeOutput(v.GetString("output"), planOutput{Plan: plan, Prompt: prompt})
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a question bank file with an LLM",
		RunE:  runGenerate,
	}
	addPlanFlags(cmd)
	addLLMFlags(cmd)
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("material")
	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	plan, material, err := planFromFlags(v)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	client, err := newLLMClient(ctx, v)
	if err != nil {
		return err
	}
	questions, err := client.GenerateQuestions(ctx, plan, material)
	if err != nil {
		return fmt.Errorf("generate questions: %w", err)
	}
	slog.Info("questions generated", "requested", plan.Request.Total, "received", len(questions), "matches_plan", plan.Matches(questions))

	out := make([]model.QuestionImport, len(questions))
	for i, q := range questions {
		out[i] = model.NewQuestionImport(q)
	}
	return writeOutput(v.GetString("output"), out)
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored attempts as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "studyscore.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAttempts()
	if err != nil {
		return fmt.Errorf("export attempts: %w", err)
	}
	return writeOutput(v.GetString("output"), export)
}

func hashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash of an API token (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return errors.New("token must not be empty")
			}
			hash, err := handler.HashToken(token)
			if err != nil {
				return fmt.Errorf("hash token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

// writeOutput writes v as indented JSON to path, or stdout for "-".
func writeOutput(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
