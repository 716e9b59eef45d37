package workflow

import (
	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// Asset workflow transitions. Analysis happens before archive so object
// metadata is stamped at create time; variants are planned after archive
// and the await_variants fan-in gates finalization.
const (
	AssetWorkflowName = "asset"

	TransitionDownload       = "download"
	TransitionDownloadFailed = "download_failed"
	TransitionInvalidFile    = "invalid_file"
	TransitionAnalyze        = "analyze"
	TransitionArchive        = "archive"
	TransitionQueueVariants  = "queue_variants"
	TransitionAwaitVariants  = "await_variants"
	TransitionFinalize       = "finalize"

	// AI pipeline boundary transitions. These are observability self-loops:
	// the marking is untouched, only listeners and logs fire.
	TransitionQueueAI = "queue_ai"
	TransitionAITask  = "ai_task"
	TransitionAIDone  = "ai_done"
)

// nonFailedPlaces is where AI boundary transitions are allowed from.
var nonFailedPlaces = []string{
	assets.PlaceNew,
	assets.PlaceDownloaded,
	assets.PlaceAnalyzed,
	assets.PlaceArchived,
	assets.PlaceVariantsQueued,
	assets.PlaceVariantsBuilt,
	assets.PlaceComplete,
}

func asAsset(s Subject) *assets.Asset {
	a, _ := s.(*assets.Asset)
	return a
}

// NewAssetMachine builds the asset lifecycle machine. variantsReady is the
// fan-in predicate for the await_variants guard: it must report whether
// every preset required for the asset's media type is done.
func NewAssetMachine(log *logger.Logger, variantsReady func(*assets.Asset) bool) *Machine {
	transitions := []Transition{
		{
			Name:  TransitionDownload,
			From:  []string{assets.PlaceNew, assets.PlaceDownloaded, assets.PlaceFailed},
			To:    assets.PlaceDownloaded,
			Async: true,
		},
		{
			Name: TransitionDownloadFailed,
			From: []string{assets.PlaceDownloaded},
			To:   assets.PlaceFailed,
			Guard: func(s Subject) bool {
				return asAsset(s).StatusCode != 200
			},
		},
		{
			Name: TransitionInvalidFile,
			From: []string{assets.PlaceDownloaded},
			To:   assets.PlaceFailed,
			Guard: func(s Subject) bool {
				a := asAsset(s)
				return a.StatusCode == 200 && !a.IsMedia()
			},
		},
		{
			Name: TransitionAnalyze,
			From: []string{assets.PlaceDownloaded},
			To:   assets.PlaceAnalyzed,
			Guard: func(s Subject) bool {
				a := asAsset(s)
				return a.StatusCode == 200 && a.IsMedia()
			},
			Async: true,
		},
		{
			Name:  TransitionArchive,
			From:  []string{assets.PlaceAnalyzed},
			To:    assets.PlaceArchived,
			Async: true,
		},
		{
			Name: TransitionQueueVariants,
			From: []string{assets.PlaceArchived},
			To:   assets.PlaceVariantsQueued,
		},
		{
			Name: TransitionAwaitVariants,
			From: []string{assets.PlaceVariantsQueued},
			To:   assets.PlaceVariantsBuilt,
			Guard: func(s Subject) bool {
				return variantsReady(asAsset(s))
			},
			Async: true,
		},
		{
			Name: TransitionFinalize,
			From: []string{assets.PlaceVariantsBuilt},
			To:   assets.PlaceComplete,
		},
		{Name: TransitionQueueAI, From: nonFailedPlaces},
		{Name: TransitionAITask, From: nonFailedPlaces},
		{Name: TransitionAIDone, From: nonFailedPlaces},
	}
	return NewMachine(AssetWorkflowName, log, transitions)
}
