package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "TestCompleted")
	if got != "Test completed." {
		t.Errorf("T(TestCompleted) = %q, want 'Test completed.'", got)
	}

	got = T(ctx, "AppTitle")
	if got != "Adaptive Test" {
		t.Errorf("T(AppTitle) = %q, want 'Adaptive Test'", got)
	}
}

func TestTranslatePortuguese(t *testing.T) {
	ctx := initLang(t, "pt")

	got := T(ctx, "TestCompleted")
	if got != "Teste concluído." {
		t.Errorf("T(TestCompleted) = %q, want 'Teste concluído.'", got)
	}

	got = T(ctx, "AlreadyAnswered")
	if got != "A questão já foi respondida." {
		t.Errorf("T(AlreadyAnswered) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "ItemsImported", 1)
	if got1 != "1 item imported." {
		t.Errorf("Tp(ItemsImported, 1) = %q, want '1 item imported.'", got1)
	}

	got5 := Tp(ctx, "ItemsImported", 5)
	if got5 != "5 items imported." {
		t.Errorf("Tp(ItemsImported, 5) = %q, want '5 items imported.'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "MissingFields", map[string]any{"Fields": "user_id"})
	if got != "Missing required fields: user_id" {
		t.Errorf("Td(MissingFields) = %q", got)
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
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	got := T(context.Background(), "TestCompleted")
	if got != "Test completed." {
		t.Errorf("T without localizer = %q, want default language", got)
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(T(r.Context(), "SessionEnded")))
	}))

	tests := []struct {
		name   string
		query  string
		header string
		want   string
	}{
		{"default", "", "", "Session ended."},
		{"accept-language", "", "pt-BR,pt;q=0.9", "Sessão encerrada."},
		{"query wins", "?lang=en", "pt", "Session ended."},
		{"unsupported", "", "de", "Session ended."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}
