package tasks

import (
	"context"
	"strings"
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/ai"
	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

var translatePrompt = template.Must(template.New("translate").Parse(
	`Translate the following recovered text into {{.Target}}. Keep line
breaks and do not add commentary. Text:

{{.Text}}`))

// TranslateTask translates recovered text. It is text-only: no image is
// sent, and when no earlier task produced text it records a skip instead
// of calling the provider.
type TranslateTask struct {
	log        *logger.Logger
	client     openai.Client
	targetLang string
}

func NewTranslate(log *logger.Logger, client openai.Client) *TranslateTask {
	return &TranslateTask{
		log:        log.With("task", "translate"),
		client:     client,
		targetLang: envutil.String("AI_TRANSLATE_TARGET", "English"),
	}
}

func (t *TranslateTask) Task() string { return "translate" }

func (t *TranslateTask) Describe() ai.TaskInfo {
	return ai.TaskInfo{Task: "translate", Kind: "text", Output: "translate"}
}

func (t *TranslateTask) Supports(asset *assets.Asset) bool { return true }

func (t *TranslateTask) Run(ctx context.Context, asset *assets.Asset, prior map[string]assets.Result) (assets.Result, error) {
	pc := buildPromptContext(asset, prior)
	if pc.OcrText == "" {
		return assets.Result{"skipped": true, "reason": "no source text to translate"}, nil
	}

	var sb strings.Builder
	if err := translatePrompt.Execute(&sb, struct {
		Target string
		Text   string
	}{Target: t.targetLang, Text: pc.OcrText}); err != nil {
		return nil, err
	}
	user := sb.String()

	out, usage, err := t.client.GenerateJSON(ctx, "You are a professional translator of historical documents.", user, "translate",
		objectSchema(map[string]any{
			"text":            stringProp("Full translation, original line breaks"),
			"source_language": stringProp("Detected source language"),
		}))
	if err != nil {
		return nil, err
	}

	result := assets.Result(out)
	result["target_language"] = t.targetLang
	result["_tokens"] = tokensOf(usage)
	return result, nil
}
