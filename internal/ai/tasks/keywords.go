package tasks

import (
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

var keywordsPrompt = template.Must(template.New("keywords").Parse(
	`Assign search keywords to this item.
{{if .DocumentType}}Document type: {{.DocumentType}}
{{end}}{{if .Description}}Description: {{.Description}}
{{end}}{{if .OcrText}}Recognized text:
{{.OcrText}}
{{end}}
Between 5 and 12 keywords, lowercase, single concepts, no near-duplicates.`))

func NewKeywords(log *logger.Logger, client openai.Client) *visionTask {
	return &visionTask{
		task:       "keywords",
		log:        log.With("task", "keywords"),
		client:     client,
		system:     "You assign searchable keywords to archival items for a faceted catalogue.",
		user:       keywordsPrompt,
		schemaName: "keywords",
		schema: objectSchema(map[string]any{
			"keywords": stringArrayProp("5 to 12 lowercase keywords"),
		}),
		detail:    "low",
		withImage: true,
	}
}
