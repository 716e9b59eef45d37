// Package tasks holds the enrichment task handlers. Most are thin
// declarations over the vision client: a prompt pair, an output schema, and
// a support predicate.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/ai"
	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

// promptContext is what prompt templates can reference. Fields are filled
// from the sanitized results of earlier tasks on the same asset.
type promptContext struct {
	OriginalURL  string
	Mime         string
	DocumentType string
	Title        string
	Description  string
	OcrText      string
	Metadata     map[string]any
}

// ocrSourceOrder is the preference order for recovered text: layout-aware
// OCR beats plain OCR beats handwriting transcription.
var ocrSourceOrder = []string{"ocr_layout", "ocr", "transcribe_handwriting"}

func buildPromptContext(asset *assets.Asset, prior map[string]assets.Result) promptContext {
	pc := promptContext{
		OriginalURL: asset.OriginalURL,
		Mime:        asset.Mime,
	}
	for _, task := range ocrSourceOrder {
		if res, ok := prior[task]; ok {
			if text := res.Text("text"); text != "" {
				pc.OcrText = text
				break
			}
		}
	}
	if res, ok := prior["classify"]; ok {
		pc.DocumentType = res.Text("type")
	}
	if res, ok := prior["generate_title"]; ok {
		pc.Title = res.Text("title")
	}
	if res, ok := prior["context_description"]; ok {
		pc.Description = res.Text("description")
	}
	if pc.Description == "" {
		if res, ok := prior["basic_description"]; ok {
			pc.Description = res.Text("description")
		}
	}
	if res, ok := prior["extract_metadata"]; ok {
		pc.Metadata = res
	}
	return pc
}

func render(tmpl *template.Template, pc promptContext) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, pc); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}

// tokensOf converts provider usage into the "_tokens" result entry.
func tokensOf(usage openai.Usage) map[string]any {
	return map[string]any{
		"prompt":     usage.Prompt,
		"completion": usage.Completion,
		"total":      usage.Total,
		"cached":     usage.Cached,
	}
}

// visionTask is the common handler shape: render the user prompt from the
// asset and prior results, send it with the asset's best image, and record
// the structured response plus token usage.
type visionTask struct {
	task       string
	log        *logger.Logger
	client     openai.Client
	system     string
	user       *template.Template
	schemaName string
	schema     map[string]any
	detail     string
	// When false the image is omitted and the prompt runs text-only.
	withImage bool
}

func (t *visionTask) Task() string { return t.task }

func (t *visionTask) Describe() ai.TaskInfo {
	kind := "text"
	if t.withImage {
		kind = "vision"
	}
	return ai.TaskInfo{Task: t.task, Kind: kind, UsesImage: t.withImage, Output: t.schemaName}
}

func (t *visionTask) Supports(asset *assets.Asset) bool {
	if t.withImage && asset.ImageURL() == "" {
		return false
	}
	return true
}

func (t *visionTask) Run(ctx context.Context, asset *assets.Asset, prior map[string]assets.Result) (assets.Result, error) {
	pc := buildPromptContext(asset, prior)
	user, err := render(t.user, pc)
	if err != nil {
		return nil, err
	}

	var (
		out   map[string]any
		usage openai.Usage
	)
	if t.withImage {
		images := []openai.ImageInput{{ImageURL: asset.ImageURL(), Detail: t.detail}}
		out, usage, err = t.client.GenerateJSONWithImages(ctx, t.system, user, images, t.schemaName, t.schema)
	} else {
		out, usage, err = t.client.GenerateJSON(ctx, t.system, user, t.schemaName, t.schema)
	}
	if err != nil {
		return nil, err
	}

	result := assets.Result(out)
	result["_tokens"] = tokensOf(usage)
	return result, nil
}

// objectSchema builds a strict json_schema with all properties required,
// which is what the structured-output endpoint expects.
func objectSchema(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func stringArrayProp(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": desc,
		"items":       map[string]any{"type": "string"},
	}
}
