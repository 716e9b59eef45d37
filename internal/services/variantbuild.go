package services

import (
	"context"
	"fmt"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// VariantOutput is what a builder reports for one finished rendition.
type VariantOutput struct {
	URL            string
	StorageBackend string
	StorageKey     string
	Size           int64
	Width          int
	Height         int
}

// VariantBuilder produces one preset×format rendition of an asset. The
// actual image encoding happens in an external resize service; builders
// here only resolve where the rendition lives.
type VariantBuilder interface {
	Build(ctx context.Context, asset *assets.Asset, variant *assets.Variant) (*VariantOutput, error)
}

// ProxyVariantBuilder resolves renditions through an imgproxy-style resize
// service that encodes on first fetch and caches by URL. No bytes move
// through this process.
type ProxyVariantBuilder struct {
	log     *logger.Logger
	baseURL string
	presets map[string]int // preset name -> bounding-box edge in px
}

func NewProxyVariantBuilder(log *logger.Logger) *ProxyVariantBuilder {
	return &ProxyVariantBuilder{
		log:     log.With("service", "ProxyVariantBuilder"),
		baseURL: envutil.String("RESIZE_PROXY_URL", "https://resize.mediavault.dev"),
		presets: map[string]int{
			"small":  320,
			"medium": 1024,
			"large":  2048,
		},
	}
}

func (b *ProxyVariantBuilder) Build(ctx context.Context, asset *assets.Asset, variant *assets.Variant) (*VariantOutput, error) {
	source := asset.ArchiveURL
	if source == "" {
		source = asset.OriginalURL
	}
	if source == "" {
		return nil, fmt.Errorf("asset %s has no source URL for variant %s", asset.ID, variant.Preset)
	}

	edge, ok := b.presets[variant.Preset]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", variant.Preset)
	}

	url := fmt.Sprintf("%s/rs:fit:%d:%d/f:%s/plain/%s", b.baseURL, edge, edge, variant.Format, source)
	width, height := fitWithin(asset.Width, asset.Height, edge)

	b.log.Debug("variant resolved", "asset_id", asset.ID, "preset", variant.Preset, "url", url)
	return &VariantOutput{
		URL:            url,
		StorageBackend: "proxy",
		Width:          width,
		Height:         height,
	}, nil
}

// fitWithin scales (w, h) to fit a square bounding box, preserving aspect.
func fitWithin(w, h, edge int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= edge && h <= edge {
		return w, h
	}
	if w >= h {
		return edge, h * edge / w
	}
	return w * edge / h, edge
}
