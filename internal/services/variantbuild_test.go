package services

import (
	"context"
	"strings"
	"testing"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
)

func TestFitWithin(t *testing.T) {
	cases := []struct {
		w, h, edge, wantW, wantH int
	}{
		{4000, 2000, 1024, 1024, 512},
		{2000, 4000, 1024, 512, 1024},
		{300, 200, 1024, 300, 200},
		{0, 0, 1024, 0, 0},
	}
	for _, c := range cases {
		gotW, gotH := fitWithin(c.w, c.h, c.edge)
		if gotW != c.wantW || gotH != c.wantH {
			t.Fatalf("fitWithin(%d,%d,%d) = %dx%d, want %dx%d",
				c.w, c.h, c.edge, gotW, gotH, c.wantW, c.wantH)
		}
	}
}

func TestProxyVariantBuilder_ResolvesURL(t *testing.T) {
	b := NewProxyVariantBuilder(archiveLog(t))

	a := assets.New("https://example.com/scan.jpg")
	a.ArchiveURL = "https://cdn.test/o/aa/bb/key.jpg"
	a.Width = 4000
	a.Height = 2000
	v := assets.NewVariant(a.ID, "small", "webp")

	out, err := b.Build(context.Background(), a, v)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(out.URL, "rs:fit:320:320") || !strings.Contains(out.URL, "f:webp") {
		t.Fatalf("unexpected proxy url: %q", out.URL)
	}
	if !strings.HasSuffix(out.URL, a.ArchiveURL) {
		t.Fatalf("proxy url must target the archived original: %q", out.URL)
	}
	if out.Width != 320 || out.Height != 160 {
		t.Fatalf("unexpected dimensions %dx%d", out.Width, out.Height)
	}
}

func TestProxyVariantBuilder_UnknownPreset(t *testing.T) {
	b := NewProxyVariantBuilder(archiveLog(t))
	a := assets.New("https://example.com/scan.jpg")
	v := assets.NewVariant(a.ID, "gigantic", "webp")

	if _, err := b.Build(context.Background(), a, v); err == nil {
		t.Fatalf("unknown preset must error")
	}
}

func TestProxyVariantBuilder_FallsBackToOriginalURL(t *testing.T) {
	b := NewProxyVariantBuilder(archiveLog(t))
	a := assets.New("https://example.com/scan.jpg")
	v := assets.NewVariant(a.ID, "medium", "webp")

	out, err := b.Build(context.Background(), a, v)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasSuffix(out.URL, a.OriginalURL) {
		t.Fatalf("expected fallback to original url: %q", out.URL)
	}
}
