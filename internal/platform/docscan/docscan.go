// Package docscan abstracts remote document-analysis providers that turn a
// document URL into per-page markdown with optional bounding boxes.
package docscan

import (
	"context"
	"fmt"
	"strings"

	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// Page is one analyzed page. Markdown preserves heading/table/list syntax
// so downstream region classification can work on plain text.
type Page struct {
	Index    int       `json:"index"`
	Markdown string    `json:"markdown"`
	BBox     []float64 `json:"bbox,omitempty"`
}

// Result is a provider response plus the raw payload for log storage. Raw
// can be several MB; the task runner strips it before prompts but keeps it
// in the append-only log for reuse.
type Result struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Pages    []Page         `json:"pages"`
	Raw      map[string]any `json:"raw,omitempty"`
}

// Text joins all page markdown into one document string.
func (r *Result) Text() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		parts = append(parts, p.Markdown)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// Provider analyzes a document reachable by URL.
type Provider interface {
	Analyze(ctx context.Context, documentURL string) (*Result, error)
}

// NewProviderFromEnv selects the configured provider. DOC_OCR_PROVIDER:
// "mistral" (default, direct HTTP) or "docai" (GCP Document AI, for
// GCS-hosted originals).
func NewProviderFromEnv(log *logger.Logger) (Provider, error) {
	switch name := envutil.String("DOC_OCR_PROVIDER", "mistral"); name {
	case "mistral":
		return NewMistralProvider(log)
	case "docai":
		return NewDocAIProvider(log)
	default:
		return nil, fmt.Errorf("unknown DOC_OCR_PROVIDER %q", name)
	}
}

// PagesFromRaw rebuilds pages from a previously logged raw payload, so the
// layout task can reuse an earlier OCR run at zero API cost. Returns false
// when the payload has no recognizable page list.
func PagesFromRaw(raw map[string]any) ([]Page, bool) {
	rawPages, ok := raw["pages"].([]any)
	if !ok {
		return nil, false
	}
	pages := make([]Page, 0, len(rawPages))
	for i, rp := range rawPages {
		m, ok := rp.(map[string]any)
		if !ok {
			continue
		}
		page := Page{Index: i}
		if idx, ok := m["index"].(float64); ok {
			page.Index = int(idx)
		}
		page.Markdown, _ = m["markdown"].(string)
		if bbox, ok := m["bbox"].([]any); ok {
			for _, v := range bbox {
				if f, ok := v.(float64); ok {
					page.BBox = append(page.BBox, f)
				}
			}
		}
		pages = append(pages, page)
	}
	return pages, len(pages) > 0
}
