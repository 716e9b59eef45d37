package ai

import (
	"strings"
	"testing"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
)

func TestSanitize_DropsBulkyKeys(t *testing.T) {
	out := Sanitize(assets.Result{
		"text":         "hello",
		"raw_response": map[string]any{"huge": true},
		"blocks":       []any{1, 2, 3},
		"provider":     "mistral",
	})
	if _, ok := out["raw_response"]; ok {
		t.Fatalf("raw_response survived sanitization")
	}
	if _, ok := out["blocks"]; ok {
		t.Fatalf("blocks survived sanitization")
	}
	if out.Text("provider") != "mistral" || out.Text("text") != "hello" {
		t.Fatalf("small keys were lost: %+v", out)
	}
}

func TestSanitize_CapsLongText(t *testing.T) {
	long := strings.Repeat("a", maxSanitizedText+500)
	out := Sanitize(assets.Result{"text": long})

	text := out.Text("text")
	if !strings.HasSuffix(text, truncationMarker) {
		t.Fatalf("truncation marker missing")
	}
	if len([]rune(text)) != maxSanitizedText+len([]rune(truncationMarker)) {
		t.Fatalf("unexpected capped length %d", len([]rune(text)))
	}
}

func TestSanitize_ShortTextUntouched(t *testing.T) {
	out := Sanitize(assets.Result{"text": "short"})
	if out.Text("text") != "short" {
		t.Fatalf("short text mutated: %q", out.Text("text"))
	}
}

func TestSanitize_DoesNotMutateOriginal(t *testing.T) {
	orig := assets.Result{"text": strings.Repeat("b", maxSanitizedText+1), "raw_response": "x"}
	Sanitize(orig)
	if len(orig["text"].(string)) != maxSanitizedText+1 {
		t.Fatalf("original text mutated")
	}
	if _, ok := orig["raw_response"]; !ok {
		t.Fatalf("original raw_response removed")
	}
}

func TestSanitize_Nil(t *testing.T) {
	if Sanitize(nil) != nil {
		t.Fatalf("nil input should stay nil")
	}
}
