package workflow

import (
	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

const (
	VariantWorkflowName = "variant"

	// Generate/encode/store the rendition for this preset/format.
	TransitionResize = "resize"
	// Re-run the builder after an upstream failure.
	TransitionRetry = "retry"
	// Route a failed build to the error place.
	TransitionResizeFailed = "resize_failed"
)

// NewVariantMachine builds the per-rendition machine: new → done | error,
// with retry allowed from error.
func NewVariantMachine(log *logger.Logger) *Machine {
	transitions := []Transition{
		{
			Name:  TransitionResize,
			From:  []string{assets.PlaceVariantNew},
			To:    assets.PlaceVariantDone,
			Async: true,
		},
		{
			Name: TransitionResizeFailed,
			From: []string{assets.PlaceVariantNew},
			To:   assets.PlaceVariantError,
		},
		{
			Name:  TransitionRetry,
			From:  []string{assets.PlaceVariantError},
			To:    assets.PlaceVariantDone,
			Async: true,
		},
	}
	return NewMachine(VariantWorkflowName, log, transitions)
}
