package services

import (
	"bytes"
	"image"
	"net/http"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ProbeResult is what we learn from sniffing downloaded bytes.
type ProbeResult struct {
	Mime   string
	Width  int
	Height int
}

// Probe sniffs the mime type and, for decodable images, the pixel
// dimensions of raw bytes. Dimension probing failures are non-fatal: the
// mime type alone is enough for lifecycle guards.
func Probe(data []byte) ProbeResult {
	out := ProbeResult{Mime: sniffMime(data)}
	if !strings.HasPrefix(out.Mime, "image/") {
		return out
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return out
	}
	out.Width = cfg.Width
	out.Height = cfg.Height
	return out
}

func sniffMime(data []byte) string {
	mime := http.DetectContentType(data)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	// DetectContentType has no webp/avif/tiff entries for some variants;
	// check magic bytes it misses.
	switch {
	case mime != "application/octet-stream":
		return mime
	case len(data) >= 12 && string(data[4:8]) == "ftyp" && string(data[8:12]) == "avif":
		return "image/avif"
	case len(data) >= 4 && (string(data[:4]) == "II*\x00" || string(data[:4]) == "MM\x00*"):
		return "image/tiff"
	default:
		return mime
	}
}
