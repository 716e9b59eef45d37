package ai

import "github.com/mediavault/mediavault-backend/internal/domain/assets"

const (
	maxSanitizedText = 8000
	truncationMarker = "\n[… truncated for context]"
)

// Sanitize returns a copy of the result safe to feed into later prompts:
// bulky provider payloads are dropped and free text is capped.
func Sanitize(result assets.Result) assets.Result {
	if result == nil {
		return nil
	}
	out := make(assets.Result, len(result))
	for k, v := range result {
		switch k {
		case "raw_response", "blocks":
			continue
		}
		out[k] = v
	}
	if text, ok := out["text"].(string); ok {
		if runes := []rune(text); len(runes) > maxSanitizedText {
			out["text"] = string(runes[:maxSanitizedText]) + truncationMarker
		}
	}
	return out
}
