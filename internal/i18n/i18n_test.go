package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "ErrNotFound")
	if got != "Not found." {
		t.Errorf("T(ErrNotFound) = %q, want 'Not found.'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "ErrNotFound")
	if got != "Не найдено." {
		t.Errorf("T(ErrNotFound) = %q, want 'Не найдено.'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsGenerated", 1); got != "1 question generated." {
		t.Errorf("Tp(QuestionsGenerated, 1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsGenerated", 5); got != "5 questions generated." {
		t.Errorf("Tp(QuestionsGenerated, 5) = %q", got)
	}
}

func TestPluralTranslationRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	tests := []struct {
		count int
		want  string
	}{
		{1, "Создан 1 вопрос."},
		{3, "Создано 3 вопроса."},
		{5, "Создано 5 вопросов."},
		{21, "Создан 21 вопрос."},
	}
	for _, tt := range tests {
		if got := Tp(ctx, "QuestionsGenerated", tt.count); got != tt.want {
			t.Errorf("Tp(QuestionsGenerated, %d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "AttemptSummary", map[string]any{"Earned": 7.5, "Max": 18, "Percentage": 42})
	if got != "You scored 7.5 of 18 points (42%)." {
		t.Errorf("Td(AttemptSummary) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestFallbackWithoutLocalizer(t *testing.T) {
	if err := Init("ru"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := T(context.Background(), "ErrNotFound"); got != "Не найдено." {
		t.Errorf("expected default language, got %q", got)
	}
}

func TestInitInvalidLanguage(t *testing.T) {
	if err := Init("not a language"); err == nil {
		t.Error("expected error for invalid language tag")
	}
}

func TestSupported(t *testing.T) {
	initLang(t, "en")
	tests := []struct {
		lang string
		want bool
	}{
		{"en", true},
		{"ru", true},
		{"fr", false},
		{"???", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.lang); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.lang, got, tt.want)
		}
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrNotFound")
	}))

	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"default", "/", "", "Not found."},
		{"accept-language", "/", "ru-RU,ru;q=0.9,en;q=0.8", "Не найдено."},
		{"unsupported header", "/", "fr", "Not found."},
		{"query overrides header", "/?lang=en", "ru", "Not found."},
		{"query", "/?lang=ru", "", "Не найдено."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
