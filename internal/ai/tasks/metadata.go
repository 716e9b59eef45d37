package tasks

import (
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

var metadataPrompt = template.Must(template.New("extract_metadata").Parse(
	`Extract structured metadata from this item.
{{if .DocumentType}}Document type: {{.DocumentType}}
{{end}}{{if .OcrText}}Recognized text:
{{.OcrText}}
{{end}}
Dates must be ISO 8601 where the source allows it, otherwise the most
precise form visible (e.g. "1943" or "um 1920"). Use empty strings and
empty lists for anything not present.`))

// NewExtractMetadata pulls dates, people, places and organisations into a
// fixed shape that the read-side projection folds over.
func NewExtractMetadata(log *logger.Logger, client openai.Client) *visionTask {
	return &visionTask{
		task:       "extract_metadata",
		log:        log.With("task", "extract_metadata"),
		client:     client,
		system:     "You extract catalogue metadata from archival documents. Only report what is actually visible or written; never guess.",
		user:       metadataPrompt,
		schemaName: "extract_metadata",
		schema: objectSchema(map[string]any{
			"date_from":     stringProp("Earliest date on the item, empty when none"),
			"date_to":       stringProp("Latest date on the item, empty when none"),
			"people":        stringArrayProp("Person names mentioned or depicted"),
			"places":        stringArrayProp("Place names mentioned or depicted"),
			"organisations": stringArrayProp("Organisations, companies, authorities"),
			"language":      stringProp("Dominant language of the text, empty when no text"),
		}),
		detail:    "high",
		withImage: true,
	}
}
