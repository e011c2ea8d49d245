package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pavelanni/studyscore/internal/generation"
	"github.com/pavelanni/studyscore/internal/llm/prompts"
	"github.com/pavelanni/studyscore/internal/model"
	"github.com/pavelanni/studyscore/internal/scoring"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoQuestions is returned when the provider response holds no usable
// question.
var ErrNoQuestions = errors.New("LLM returned no usable questions")

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Ping checks that the provider is reachable and the API key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM list models: %w", err)
	}
	return nil
}

type generateResponse struct {
	Questions []model.QuestionImport `json:"questions"`
}

// GenerateQuestions asks the provider for questions matching plan, drawn from
// material. Malformed questions are logged and dropped. A result that does not
// match the plan's quotas is returned as is with a warning.
func (c *Client) GenerateQuestions(ctx context.Context, plan generation.Plan, material string) ([]model.Question, error) {
	prompt, err := prompts.BuildGeneratePrompt(prompts.VariantFor(plan.Request.Mode), plan, material)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	questions, err := parseQuestions(raw, plan.Request.Subject)
	if err != nil {
		return nil, err
	}
	if !plan.Matches(questions) {
		kinds, diffs := generation.Counts(questions)
		slog.Warn("generated questions do not match plan",
			"requested", plan.Request.Total,
			"received", len(questions),
			"kinds", kinds,
			"difficulties", diffs)
	}
	return questions, nil
}

// parseQuestions decodes a provider response. Questions without an ID get a
// fresh uuid and questions without a subject inherit defaultSubject.
func parseQuestions(raw, defaultSubject string) ([]model.Question, error) {
	raw = stripCodeFence(raw)
	var gr generateResponse
	if err := json.Unmarshal([]byte(raw), &gr); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}

	questions := make([]model.Question, 0, len(gr.Questions))
	var dropped []error
	for _, qi := range gr.Questions {
		if qi.ID == "" {
			qi.ID = uuid.NewString()
		}
		if qi.Subject == "" {
			qi.Subject = defaultSubject
		}
		q, err := qi.Question()
		if err == nil {
			err = scoring.ValidateQuestion(q)
		}
		if err != nil {
			slog.Warn("dropping generated question", "id", qi.ID, "error", err)
			dropped = append(dropped, err)
			continue
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		if len(dropped) > 0 {
			return nil, fmt.Errorf("%w: %w", ErrNoQuestions, errors.Join(dropped...))
		}
		return nil, ErrNoQuestions
	}
	return questions, nil
}

// stripCodeFence removes a markdown code fence some models wrap JSON in even
// when asked for a JSON object.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
