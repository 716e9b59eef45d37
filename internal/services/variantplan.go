package services

import "strings"

// VariantPlan decides which preset renditions an asset needs based on its
// media type. The required set doubles as the fan-in gate: the parent
// asset advances only when every required preset is done.
type VariantPlan struct {
	imagePresets []string
}

// DefaultImagePresets are generated for every image asset.
var DefaultImagePresets = []string{"small", "medium"}

func NewVariantPlan() *VariantPlan {
	return &VariantPlan{imagePresets: DefaultImagePresets}
}

// RequiredPresets returns the presets needed for a mime type. Non-image
// media gets no renditions for now.
func (p *VariantPlan) RequiredPresets(mime string) []string {
	if !strings.HasPrefix(mime, "image/") {
		return nil
	}
	out := make([]string, len(p.imagePresets))
	copy(out, p.imagePresets)
	return out
}

// DefaultFormat is the encoding format for generated renditions.
func (p *VariantPlan) DefaultFormat() string { return "webp" }
