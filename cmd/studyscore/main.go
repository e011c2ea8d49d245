package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/studyscore/internal/generation"
	"github.com/pavelanni/studyscore/internal/handler"
	appI18n "github.com/pavelanni/studyscore/internal/i18n"
	"github.com/pavelanni/studyscore/internal/llm"
	"github.com/pavelanni/studyscore/internal/scoring"
	"github.com/pavelanni/studyscore/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studyscore",
		Short: "Scoring and question planning service for study quizzes and exams",
	}

	serve := serveCmd()
	root.AddCommand(serve, scoreCmd(), planCmd(), generateCmd(), exportCmd(), hashTokenCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `studyscore --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "text", "Log format (text, json)")
}

func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scoring API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "studyscore.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Paths to question bank JSON files (repeatable)")
	f.StringP("lang", "l", "en", "Default response language (en, ru)")
	f.Int("max-questions", generation.DefaultLimits.MaxQuestions, "Maximum questions per generation request (0 = no limit)")
	f.Bool("require-every-type", generation.DefaultLimits.RequireEveryType, "Reject generation requests that leave a selected type empty")
	f.Int("workers", 0, "Questions scored concurrently per attempt (0 = GOMAXPROCS)")
	f.String("api-token-hash", "", "bcrypt hash of the API bearer token (see hash-token); empty disables auth")
	f.Bool("generation", false, "Enable LLM question generation")
	f.Duration("generate-timeout", 2*time.Minute, "Timeout for one generation request")
	addLLMFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("STUDYSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	setPointDefaults(v, "points.quiz", scoring.QuizPoints)
	setPointDefaults(v, "points.exam", scoring.ExamPoints)

	v.SetConfigName("studyscore")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/studyscore")
	v.AddConfigPath("/etc/studyscore")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func setPointDefaults(v *viper.Viper, prefix string, t scoring.PointTable) {
	v.SetDefault(prefix+".easy", t.Easy)
	v.SetDefault(prefix+".medium", t.Medium)
	v.SetDefault(prefix+".hard", t.Hard)
	v.SetDefault(prefix+".open_ended_bonus", t.OpenEndedBonus)
}

// pointTables reads the quiz and exam point tables from config.
func pointTables(v *viper.Viper) (quiz, exam scoring.PointTable, err error) {
	if err := v.UnmarshalKey("points.quiz", &quiz); err != nil {
		return quiz, exam, fmt.Errorf("points.quiz: %w", err)
	}
	if err := v.UnmarshalKey("points.exam", &exam); err != nil {
		return quiz, exam, fmt.Errorf("points.exam: %w", err)
	}
	if err := quiz.Validate(); err != nil {
		return quiz, exam, fmt.Errorf("points.quiz: %w", err)
	}
	if err := exam.Validate(); err != nil {
		return quiz, exam, fmt.Errorf("points.exam: %w", err)
	}
	return quiz, exam, nil
}

func newLLMClient(ctx context.Context, v *viper.Viper) (*llm.Client, error) {
	client := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", client.Model())
	return client, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := loadQuestions(db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	if !appI18n.Supported(lang) {
		slog.Warn("no translations for language, messages fall back to message IDs", "lang", lang)
	}

	quiz, exam, err := pointTables(v)
	if err != nil {
		return err
	}

	var gen handler.QuestionGenerator
	if v.GetBool("generation") {
		client, err := newLLMClient(ctx, v)
		if err != nil {
			return err
		}
		gen = client
	}

	cfg := handler.Config{
		Limits: generation.Limits{
			MaxQuestions:     v.GetInt("max-questions"),
			RequireEveryType: v.GetBool("require-every-type"),
		},
		QuizPoints:      quiz,
		ExamPoints:      exam,
		Workers:         v.GetInt("workers"),
		TokenHash:       v.GetString("api-token-hash"),
		GenerateTimeout: v.GetDuration("generate-timeout"),
	}
	h, err := handler.New(db, gen, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(lang),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"generation", gen != nil,
		"max_questions", cfg.Limits.MaxQuestions,
		"require_every_type", cfg.Limits.RequireEveryType,
		"auth", cfg.TokenHash != "",
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
