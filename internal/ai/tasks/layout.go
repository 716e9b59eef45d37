package tasks

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/mediavault/mediavault-backend/internal/ai"
	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/docscan"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// LayoutTask classifies the markdown of a layout-aware OCR run into typed
// page regions. When the raw payload of an earlier ocr_layout run is still
// in the completed log it is reparsed instead of calling the provider again.
type LayoutTask struct {
	log     *logger.Logger
	scanner docscan.Provider
}

func NewLayout(log *logger.Logger, scanner docscan.Provider) *LayoutTask {
	return &LayoutTask{
		log:     log.With("task", "layout"),
		scanner: scanner,
	}
}

func (t *LayoutTask) Task() string { return "layout" }

func (t *LayoutTask) Describe() ai.TaskInfo {
	return ai.TaskInfo{Task: "layout", Kind: "document", UsesImage: true, Output: "page_regions"}
}

func (t *LayoutTask) Supports(asset *assets.Asset) bool {
	return asset.ImageURL() != ""
}

func (t *LayoutTask) Run(ctx context.Context, asset *assets.Asset, _ map[string]assets.Result) (assets.Result, error) {
	pages, reused, err := t.pages(ctx, asset)
	if err != nil {
		return nil, err
	}

	regions := []any{}
	counts := map[string]int{}
	for _, page := range pages {
		for _, reg := range regionsOf(page.Markdown) {
			counts[reg.kind]++
			regions = append(regions, map[string]any{
				"page": page.Index,
				"type": reg.kind,
				"text": reg.text,
			})
		}
	}

	countsAny := make(map[string]any, len(counts))
	for k, v := range counts {
		countsAny[k] = v
	}

	return assets.Result{
		"pages":         len(pages),
		"regions":       regions,
		"region_counts": countsAny,
		"reused_ocr":    reused,
	}, nil
}

// pages re-reads a logged ocr_layout raw payload when present, falling back
// to a fresh provider call.
func (t *LayoutTask) pages(ctx context.Context, asset *assets.Asset) ([]docscan.Page, bool, error) {
	if raw, ok := asset.RawResult("ocr_layout"); ok {
		if rawResp, ok := raw["raw_response"].(map[string]any); ok {
			if pages, ok := docscan.PagesFromRaw(rawResp); ok {
				t.log.Debug("reusing logged ocr payload", "asset_id", asset.ID, "pages", len(pages))
				return pages, true, nil
			}
		}
	}
	res, err := t.scanner.Analyze(ctx, asset.ImageURL())
	if err != nil {
		return nil, false, err
	}
	return res.Pages, false, nil
}

// regionMarkdown parses OCR page markdown. Providers emit GFM pipe tables,
// which need the table extension.
var regionMarkdown = goldmark.New(goldmark.WithExtensions(extension.Table))

type region struct {
	kind string
	text string
}

// regionsOf types the top-level blocks of one markdown page.
func regionsOf(markdown string) []region {
	src := []byte(markdown)
	doc := regionMarkdown.Parser().Parse(gmtext.NewReader(src))
	var out []region
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		text := blockText(n, src)
		if text == "" {
			continue
		}
		out = append(out, region{kind: regionType(n), text: text})
	}
	return out
}

func regionType(n ast.Node) string {
	switch v := n.(type) {
	case *ast.Heading:
		switch v.Level {
		case 1:
			return "heading_1"
		case 2:
			return "heading_2"
		default:
			return "heading_3"
		}
	case *extast.Table:
		return "table"
	case *ast.Blockquote:
		return "blockquote"
	case *ast.List:
		if v.IsOrdered() {
			return "ordered_list"
		}
		return "list"
	case *ast.Paragraph:
		if _, ok := v.FirstChild().(*ast.Image); ok && v.ChildCount() == 1 {
			return "figure"
		}
		return "paragraph"
	default:
		return "paragraph"
	}
}

// blockText recovers the source text of a block, descending into containers
// that carry no line segments of their own. Table cells bottom out in inline
// text nodes.
func blockText(n ast.Node, src []byte) string {
	if t, ok := n.(*ast.Text); ok {
		return string(t.Segment.Value(src))
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		var b strings.Builder
		for i := 0; i < n.Lines().Len(); i++ {
			seg := n.Lines().At(i)
			b.Write(seg.Value(src))
		}
		return strings.TrimSpace(b.String())
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := blockText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
