package services

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func TestProbe_PNGDimensions(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 12, 34))); err != nil {
		t.Fatalf("encode: %v", err)
	}

	out := Probe(buf.Bytes())
	if out.Mime != "image/png" {
		t.Fatalf("expected image/png, got %q", out.Mime)
	}
	if out.Width != 12 || out.Height != 34 {
		t.Fatalf("unexpected dimensions %dx%d", out.Width, out.Height)
	}
}

func TestProbe_NonImage(t *testing.T) {
	out := Probe([]byte("<html><body>not a photo</body></html>"))
	if out.Mime != "text/html" {
		t.Fatalf("expected text/html, got %q", out.Mime)
	}
	if out.Width != 0 || out.Height != 0 {
		t.Fatalf("non-image got dimensions %dx%d", out.Width, out.Height)
	}
}

func TestProbe_TiffMagic(t *testing.T) {
	out := Probe([]byte("II*\x00garbage-that-wont-decode"))
	if out.Mime != "image/tiff" {
		t.Fatalf("expected image/tiff, got %q", out.Mime)
	}
}
