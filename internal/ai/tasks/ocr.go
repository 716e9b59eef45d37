package tasks

import (
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

var ocrPrompt = template.Must(template.New("ocr").Parse(
	`Read all printed and typewritten text on this image, top to bottom,
left to right. Preserve line breaks. Return the text exactly as printed;
do not correct, translate or summarize. Return an empty string when the
image has no readable text.`))

// NewOcr recovers printed text through the vision model. Layout-aware OCR
// against a dedicated document endpoint lives in the ocr_layout task.
func NewOcr(log *logger.Logger, client openai.Client) *visionTask {
	return &visionTask{
		task:       "ocr",
		log:        log.With("task", "ocr"),
		client:     client,
		system:     "You are an OCR engine. Output only the text that is actually on the image.",
		user:       ocrPrompt,
		schemaName: "ocr",
		schema: objectSchema(map[string]any{
			"text":     stringProp("All readable printed text, original line breaks"),
			"language": stringProp("Dominant language, empty when no text"),
		}),
		detail:    "high",
		withImage: true,
	}
}
