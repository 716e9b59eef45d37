package tasks

import (
	"github.com/mediavault/mediavault-backend/internal/ai"
	"github.com/mediavault/mediavault-backend/internal/platform/docscan"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
)

// All builds every production handler against the given providers.
func All(log *logger.Logger, client openai.Client, scanner docscan.Provider) []ai.Handler {
	return []ai.Handler{
		NewOcr(log, client),
		NewOcrLayout(log, scanner),
		NewLayout(log, scanner),
		NewBasicDescription(log, client),
		NewContextDescription(log, client),
		NewClassify(log, client),
		NewExtractMetadata(log, client),
		NewGenerateTitle(log, client),
		NewPeopleAndPlaces(log, client),
		NewKeywords(log, client),
		NewTranscribeHandwriting(log, client),
		NewTranslate(log, client),
		NewSummarize(log, client),
	}
}
