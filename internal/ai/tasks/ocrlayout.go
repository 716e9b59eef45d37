package tasks

import (
	"context"

	"github.com/mediavault/mediavault-backend/internal/ai"
	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/docscan"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// OcrLayoutTask runs layout-aware OCR through a document-analysis provider.
// The raw provider payload goes into the result so the layout task can
// reparse it later without another API call; sanitization strips it from
// prompts.
type OcrLayoutTask struct {
	log     *logger.Logger
	scanner docscan.Provider
}

func NewOcrLayout(log *logger.Logger, scanner docscan.Provider) *OcrLayoutTask {
	return &OcrLayoutTask{
		log:     log.With("task", "ocr_layout"),
		scanner: scanner,
	}
}

func (t *OcrLayoutTask) Task() string { return "ocr_layout" }

func (t *OcrLayoutTask) Describe() ai.TaskInfo {
	return ai.TaskInfo{Task: "ocr_layout", Kind: "document", UsesImage: true, Output: "ocr_pages"}
}

func (t *OcrLayoutTask) Supports(asset *assets.Asset) bool {
	return asset.ImageURL() != ""
}

func (t *OcrLayoutTask) Run(ctx context.Context, asset *assets.Asset, _ map[string]assets.Result) (assets.Result, error) {
	res, err := t.scanner.Analyze(ctx, asset.ImageURL())
	if err != nil {
		return nil, err
	}

	blocks := make([]any, 0, len(res.Pages))
	for _, p := range res.Pages {
		blocks = append(blocks, map[string]any{
			"index":    p.Index,
			"markdown": p.Markdown,
			"bbox":     p.BBox,
		})
	}

	return assets.Result{
		"text":         res.Text(),
		"provider":     res.Provider,
		"model":        res.Model,
		"pages":        len(res.Pages),
		"blocks":       blocks,
		"raw_response": res.Raw,
	}, nil
}
