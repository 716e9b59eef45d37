package assets

import (
	"regexp"
	"testing"
)

func TestIDFromURL_DeterministicAndHex(t *testing.T) {
	a := IDFromURL("https://example.com/photos/1923-wedding.jpg")
	b := IDFromURL("https://example.com/photos/1923-wedding.jpg")
	if a != b {
		t.Fatalf("same url produced different ids: %q vs %q", a, b)
	}
	if !regexp.MustCompile(`^[0-9a-f]{16}$`).MatchString(a) {
		t.Fatalf("id is not 16 lowercase hex chars: %q", a)
	}
}

func TestIDFromURL_TrimsWhitespace(t *testing.T) {
	if IDFromURL(" https://example.com/a.jpg ") != IDFromURL("https://example.com/a.jpg") {
		t.Fatalf("surrounding whitespace changed the id")
	}
}

func TestIDFromURL_DifferentURLsDiffer(t *testing.T) {
	if IDFromURL("https://example.com/a.jpg") == IDFromURL("https://example.com/b.jpg") {
		t.Fatalf("distinct urls collided")
	}
}

func TestExtFromURL(t *testing.T) {
	if got := ExtFromURL("https://example.com/scan.JPEG?v=2"); got != "jpeg" {
		t.Fatalf("expected jpeg, got %q", got)
	}
	if got := ExtFromURL("https://example.com/no-extension"); got != "" {
		t.Fatalf("expected empty ext, got %q", got)
	}
}

func TestExtFromMime(t *testing.T) {
	if got := ExtFromMime("image/jpeg"); got != "jpg" {
		t.Fatalf("expected jpg, got %q", got)
	}
	if got := ExtFromMime("application/octet-stream"); got != "" {
		t.Fatalf("expected empty ext, got %q", got)
	}
}
