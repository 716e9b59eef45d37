package tasks

import (
	"text/template"

	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

var peopleAndPlacesPrompt = template.Must(template.New("people_and_places").Parse(
	`Identify the people and places connected to this item.
{{if .Description}}Description: {{.Description}}
{{end}}{{if .OcrText}}Recognized text:
{{.OcrText}}
{{end}}
List every person by the fullest name form that appears; list places from
the most specific (street, building) to the most general (city, region)
that the item supports. Do not deduce places from uniforms or styles.`))

func NewPeopleAndPlaces(log *logger.Logger, client openai.Client) *visionTask {
	return &visionTask{
		task:       "people_and_places",
		log:        log.With("task", "people_and_places"),
		client:     client,
		system:     "You identify named people and places in archival material. Report only names that are written on the item or given in the context.",
		user:       peopleAndPlacesPrompt,
		schemaName: "people_and_places",
		schema: objectSchema(map[string]any{
			"people": stringArrayProp("Person names, fullest form that appears"),
			"places": stringArrayProp("Place names, most specific first"),
		}),
		detail:    "high",
		withImage: true,
	}
}
