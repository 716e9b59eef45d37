package tasks

import (
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

var summarizePrompt = template.Must(template.New("summarize").Parse(
	`Summarize everything known about this item in one short paragraph for a
search result snippet.
{{if .DocumentType}}Document type: {{.DocumentType}}
{{end}}{{if .Title}}Title: {{.Title}}
{{end}}{{if .Description}}Description: {{.Description}}
{{end}}{{if .OcrText}}Recognized text:
{{.OcrText}}
{{end}}`))

// NewSummarize condenses the accumulated results into a snippet. Text-only;
// it runs last so the image adds nothing the earlier tasks missed.
func NewSummarize(log *logger.Logger, client openai.Client) *visionTask {
	return &visionTask{
		task:       "summarize",
		log:        log.With("task", "summarize"),
		client:     client,
		system:     "You write one-paragraph summaries of archival items for search snippets. Maximum 60 words.",
		user:       summarizePrompt,
		schemaName: "summarize",
		schema: objectSchema(map[string]any{
			"summary": stringProp("One paragraph, at most 60 words"),
		}),
		withImage: false,
	}
}
