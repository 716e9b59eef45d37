package assets

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// IDFromURL derives the 16-hex-char asset id from the source URL. It is a
// pure function: the same URL always yields the same id, so re-registering
// a URL dedupes to the existing row.
func IDFromURL(url string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.TrimSpace(url)))
}

// ExtFromURL extracts a lowercase extension hint from the URL path, or ""
// when none is present. Corrected later from the sniffed mime type.
func ExtFromURL(url string) string {
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndex(path, "."); i >= 0 && i < len(path)-1 {
		return strings.ToLower(path[i+1:])
	}
	return ""
}

// ExtFromMime maps common media mime types to a canonical extension.
func ExtFromMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/avif":
		return "avif"
	case "image/tiff":
		return "tiff"
	case "application/pdf":
		return "pdf"
	default:
		return ""
	}
}
