package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/studyscore/internal/generation"
	"github.com/pavelanni/studyscore/internal/model"
	"github.com/pavelanni/studyscore/internal/quota"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// maxMaterialRunes caps the source material embedded in a prompt.
const maxMaterialRunes = 20000

var (
	sourceMaterialRegex     = regexp.MustCompile(`(?i)</?\s*source-material\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// PromptVariant represents a generation prompt variant.
type PromptVariant string

const (
	// PromptQuiz produces short practice questions.
	PromptQuiz PromptVariant = "quiz"
	// PromptExam produces exam-style questions with stronger distractors.
	PromptExam PromptVariant = "exam"
)

var validVariants = map[PromptVariant]bool{
	PromptQuiz: true,
	PromptExam: true,
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// VariantFor returns the prompt variant matching an attempt mode.
func VariantFor(mode model.AttemptMode) PromptVariant {
	if mode == model.ModeExam {
		return PromptExam
	}
	return PromptQuiz
}

// GenerateData holds template data for generation prompts.
type GenerateData struct {
	Total           int
	Subject         string
	TypeQuota       []quota.Share[model.Kind]
	DifficultyQuota []quota.Share[model.Difficulty]
	TypeSummary     string
	DifficultyMix   string
	Material        string
}

func load() error {
	loadOnce.Do(func() {
		templates = make(map[PromptVariant]*template.Template)
		for _, v := range []PromptVariant{PromptQuiz, PromptExam} {
			name := "templates/" + string(v) + ".tmpl"
			content, err := templateFS.ReadFile(name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(v)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// BuildGeneratePrompt renders the generation instructions for plan. The quotas
// are embedded as literal text so the provider is told exactly how many
// questions of each kind and difficulty to produce.
func BuildGeneratePrompt(variant PromptVariant, plan generation.Plan, material string) (string, error) {
	if err := load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := GenerateData{
		Total:           plan.Request.Total,
		Subject:         strings.TrimSpace(plan.Request.Subject),
		TypeQuota:       plan.TypeQuota,
		DifficultyQuota: plan.DifficultyQuota,
		TypeSummary:     quota.Describe(plan.TypeQuota),
		DifficultyMix:   quota.Describe(plan.DifficultyQuota),
		Material:        sanitizeMaterial(material),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SystemPrompt is the fixed system message sent with every generation request.
const SystemPrompt = "You write study questions from source material. " +
	"Follow the requested counts exactly and answer with a single JSON object only."

func sanitizeMaterial(material string) string {
	material = sourceMaterialRegex.ReplaceAllString(material, "")
	material = systemInstructionsRegex.ReplaceAllString(material, "")
	material = strings.TrimSpace(material)

	if material == "" {
		return "[No source material provided]"
	}

	if utf8.RuneCountInString(material) > maxMaterialRunes {
		runes := []rune(material)
		material = string(runes[:maxMaterialRunes]) + "\n\n[Material truncated due to length]"
	}
	return material
}
