package tasks

import (
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

var handwritingPrompt = template.Must(template.New("transcribe_handwriting").Parse(
	`Transcribe all handwritten text on this item, line by line, in reading
order. Keep the original language and spelling, including old scripts
(Kurrent, Sütterlin). Mark unreadable passages with [?].
{{if .DocumentType}}Document type: {{.DocumentType}}
{{end}}`))

// NewTranscribeHandwriting reads handwriting the plain OCR task cannot.
func NewTranscribeHandwriting(log *logger.Logger, client openai.Client) *visionTask {
	return &visionTask{
		task:       "transcribe_handwriting",
		log:        log.With("task", "transcribe_handwriting"),
		client:     client,
		system:     "You are an expert in historical handwriting. Transcribe faithfully, keep line breaks, never translate or modernize spelling.",
		user:       handwritingPrompt,
		schemaName: "transcribe_handwriting",
		schema: objectSchema(map[string]any{
			"text":     stringProp("Full transcription with original line breaks"),
			"script":   stringProp("Detected script, e.g. latin, kurrent, empty when unknown"),
			"language": stringProp("Language of the text, empty when unknown"),
		}),
		detail:    "high",
		withImage: true,
	}
}
