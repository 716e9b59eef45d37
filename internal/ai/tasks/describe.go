package tasks

import (
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

var basicDescriptionPrompt = template.Must(template.New("basic_description").Parse(
	`Describe this image in two or three factual sentences. Mention the medium
(photo, scan, drawing), the main subject, and any visible text or dates.
{{if .OcrText}}
Recognized text on the document:
{{.OcrText}}
{{end}}`))

// NewBasicDescription captions the asset without any prior context. Runs
// early in pipelines so later tasks have a description to lean on.
func NewBasicDescription(log *logger.Logger, client openai.Client) *visionTask {
	return &visionTask{
		task:       "basic_description",
		log:        log.With("task", "basic_description"),
		client:     client,
		system:     "You are an archivist describing items from a scanned media collection. Be factual and concise. Answer in the language of the document when it has text, otherwise in English.",
		user:       basicDescriptionPrompt,
		schemaName: "basic_description",
		schema: objectSchema(map[string]any{
			"description": stringProp("Two to three sentence factual description"),
		}),
		detail:    "low",
		withImage: true,
	}
}

var contextDescriptionPrompt = template.Must(template.New("context_description").Parse(
	`Write a rich archival description of this item, using everything known
about it so far.
{{if .DocumentType}}Document type: {{.DocumentType}}
{{end}}{{if .Title}}Working title: {{.Title}}
{{end}}{{if .Description}}Earlier description: {{.Description}}
{{end}}{{if .OcrText}}Recognized text:
{{.OcrText}}
{{end}}
Cover the subject, the likely period and place, and anything notable for a
catalogue entry. Four to six sentences.`))

// NewContextDescription rewrites the description with accumulated context
// from classification, OCR and metadata extraction.
func NewContextDescription(log *logger.Logger, client openai.Client) *visionTask {
	return &visionTask{
		task:       "context_description",
		log:        log.With("task", "context_description"),
		client:     client,
		system:     "You are an archivist writing catalogue entries for a media archive. Use only what is visible or given; never invent facts.",
		user:       contextDescriptionPrompt,
		schemaName: "context_description",
		schema: objectSchema(map[string]any{
			"description": stringProp("Four to six sentence archival description"),
		}),
		detail:    "high",
		withImage: true,
	}
}
