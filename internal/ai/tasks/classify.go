package tasks

import (
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

// documentTypes is the closed classification vocabulary. The primary type
// lands in a dedicated column, so additions here should be deliberate.
var documentTypes = []string{
	"photo",
	"portrait",
	"group_photo",
	"postcard",
	"letter",
	"document",
	"certificate",
	"newspaper",
	"map",
	"drawing",
	"painting",
	"book_page",
	"other",
}

var classifyPrompt = template.Must(template.New("classify").Parse(
	`Classify this archival item.
{{if .Description}}Known description: {{.Description}}
{{end}}{{if .OcrText}}Recognized text:
{{.OcrText}}
{{end}}
Pick the single best matching type and, when applicable, a free-form
subtype (e.g. "wedding" for a group_photo).`))

// NewClassify assigns a document type from the closed vocabulary. The
// runner denormalizes the primary type for SQL filtering.
func NewClassify(log *logger.Logger, client openai.Client) *visionTask {
	return &visionTask{
		task:       "classify",
		log:        log.With("task", "classify"),
		client:     client,
		system:     "You classify items of a scanned family and media archive into a fixed set of document types.",
		user:       classifyPrompt,
		schemaName: "classify",
		schema: objectSchema(map[string]any{
			"type": map[string]any{
				"type":        "string",
				"description": "Primary document type",
				"enum":        documentTypes,
			},
			"subtype":    stringProp("Optional free-form refinement, empty string when none"),
			"confidence": map[string]any{"type": "number", "description": "0..1 confidence"},
		}),
		detail:    "low",
		withImage: true,
	}
}
