package tasks

import (
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

var titlePrompt = template.Must(template.New("generate_title").Parse(
	`Propose a short catalogue title for this item.
{{if .DocumentType}}Document type: {{.DocumentType}}
{{end}}{{if .Description}}Description: {{.Description}}
{{end}}{{if .OcrText}}Recognized text:
{{.OcrText}}
{{end}}
Maximum 80 characters, no trailing period, no quotes.`))

func NewGenerateTitle(log *logger.Logger, client openai.Client) *visionTask {
	return &visionTask{
		task:       "generate_title",
		log:        log.With("task", "generate_title"),
		client:     client,
		system:     "You write short, specific catalogue titles for archival items.",
		user:       titlePrompt,
		schemaName: "generate_title",
		schema: objectSchema(map[string]any{
			"title": stringProp("Catalogue title, at most 80 characters"),
		}),
		detail:    "low",
		withImage: true,
	}
}
