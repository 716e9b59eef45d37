package tasks

import (
	"context"
	"strings"
	"testing"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

type fakeAIClient struct {
	lastUser string
	response map[string]any
	usage    openai.Usage
	calls    int
}

func (c *fakeAIClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, openai.Usage, error) {
	c.calls++
	c.lastUser = user
	return c.response, c.usage, nil
}

func (c *fakeAIClient) GenerateJSONWithImages(ctx context.Context, system, user string, images []openai.ImageInput, schemaName string, schema map[string]any) (map[string]any, openai.Usage, error) {
	c.calls++
	c.lastUser = user
	return c.response, c.usage, nil
}

func TestTranslate_SkipsWithoutSourceText(t *testing.T) {
	client := &fakeAIClient{}
	task := NewTranslate(testLog(t), client)
	a := assets.New("https://example.com/a.jpg")

	res, err := task.Run(context.Background(), a, map[string]assets.Result{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Skipped() {
		t.Fatalf("expected structured skip, got %+v", res)
	}
	if client.calls != 0 {
		t.Fatalf("provider called with no source text")
	}
}

func TestTranslate_PrefersLayoutOCROverPlain(t *testing.T) {
	client := &fakeAIClient{
		response: map[string]any{"text": "translated", "source_language": "de"},
		usage:    openai.Usage{Total: 12},
	}
	task := NewTranslate(testLog(t), client)
	a := assets.New("https://example.com/a.jpg")

	prior := map[string]assets.Result{
		"transcribe_handwriting": {"text": "handwritten source"},
		"ocr":                    {"text": "plain source"},
		"ocr_layout":             {"text": "layout source"},
	}
	res, err := task.Run(context.Background(), a, prior)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(client.lastUser, "layout source") {
		t.Fatalf("prompt did not use layout OCR text: %q", client.lastUser)
	}
	if res.Text("text") != "translated" {
		t.Fatalf("unexpected result: %+v", res)
	}
	tokens := res["_tokens"].(map[string]any)
	if tokens["total"] != 12 {
		t.Fatalf("usage not recorded: %v", tokens)
	}
}

func TestTranslate_FallsBackToHandwriting(t *testing.T) {
	client := &fakeAIClient{response: map[string]any{"text": "x"}}
	task := NewTranslate(testLog(t), client)
	a := assets.New("https://example.com/a.jpg")

	prior := map[string]assets.Result{
		"transcribe_handwriting": {"text": "handwritten source"},
	}
	if _, err := task.Run(context.Background(), a, prior); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(client.lastUser, "handwritten source") {
		t.Fatalf("prompt did not fall back to handwriting text: %q", client.lastUser)
	}
}

func TestBuildPromptContext_DescriptionFallback(t *testing.T) {
	a := assets.New("https://example.com/a.jpg")
	pc := buildPromptContext(a, map[string]assets.Result{
		"basic_description": {"description": "basic"},
		"classify":          {"type": "letter"},
	})
	if pc.Description != "basic" || pc.DocumentType != "letter" {
		t.Fatalf("unexpected context: %+v", pc)
	}

	pc = buildPromptContext(a, map[string]assets.Result{
		"basic_description":   {"description": "basic"},
		"context_description": {"description": "rich"},
	})
	if pc.Description != "rich" {
		t.Fatalf("context description should win: %+v", pc)
	}
}
