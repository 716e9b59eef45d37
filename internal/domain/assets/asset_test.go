package assets

import "testing"

func TestNew_InitialState(t *testing.T) {
	a := New("https://example.com/scan.jpg")
	if a.Marking != PlaceNew {
		t.Fatalf("expected new marking, got %q", a.Marking)
	}
	if a.ID != IDFromURL("https://example.com/scan.jpg") {
		t.Fatalf("id not derived from url: %q", a.ID)
	}
	if a.AIQueue == nil || a.AICompleted == nil {
		t.Fatalf("queue/log must initialize to empty, not nil")
	}
}

func TestImageURL_Priority(t *testing.T) {
	a := New("https://example.com/original.jpg")
	if a.ImageURL() != "https://example.com/original.jpg" {
		t.Fatalf("expected original url fallback, got %q", a.ImageURL())
	}
	a.ArchiveURL = "https://cdn.test/archive.jpg"
	if a.ImageURL() != "https://cdn.test/archive.jpg" {
		t.Fatalf("archive url should beat original, got %q", a.ImageURL())
	}
	a.SmallURL = "https://cdn.test/small.webp"
	if a.ImageURL() != "https://cdn.test/small.webp" {
		t.Fatalf("small url should win, got %q", a.ImageURL())
	}
}

func TestIsMedia(t *testing.T) {
	a := New("https://example.com/x")
	for mime, want := range map[string]bool{
		"image/jpeg":      true,
		"audio/mpeg":      true,
		"video/mp4":       true,
		"text/html":       false,
		"application/pdf": false,
		"":                false,
	} {
		a.Mime = mime
		if a.IsMedia() != want {
			t.Fatalf("IsMedia(%q) = %v, want %v", mime, !want, want)
		}
	}
}

func TestResults_LastEntryWins(t *testing.T) {
	a := New("https://example.com/x")
	a.AICompleted = append(a.AICompleted,
		CompletedEntry{Task: "ocr", Result: Result{"text": "first"}},
		CompletedEntry{Task: "ocr", Result: Result{"failed": true}},
		CompletedEntry{Task: "ocr", Result: Result{"text": "second"}},
		CompletedEntry{Task: "title", Result: Result{"title": "old"}},
		CompletedEntry{Task: "title", Result: Result{"failed": true, "error": "quota"}},
		CompletedEntry{Task: "classify", Result: Result{"skipped": true}},
	)

	results := a.Results()
	if results["ocr"].Text("text") != "second" {
		t.Fatalf("expected latest ocr result, got %+v", results["ocr"])
	}
	if !results["title"].Failed() {
		t.Fatalf("a later failure must shadow the earlier success: %+v", results["title"])
	}
	if !results["classify"].Skipped() {
		t.Fatalf("skipped entries belong in results: %+v", results["classify"])
	}
}

func TestRawResult_EarliestEntryUnsanitized(t *testing.T) {
	a := New("https://example.com/x")
	a.AICompleted = append(a.AICompleted,
		CompletedEntry{Task: "ocr_layout", Result: Result{"raw_response": "big", "text": "v1"}},
		CompletedEntry{Task: "ocr_layout", Result: Result{"text": "v2"}},
	)

	raw, ok := a.RawResult("ocr_layout")
	if !ok {
		t.Fatalf("raw result missing")
	}
	if raw.Text("text") != "v1" {
		t.Fatalf("expected earliest entry, got %+v", raw)
	}
	if _, has := raw["raw_response"]; !has {
		t.Fatalf("raw payload must survive in the log")
	}

	if _, ok := a.RawResult("translate"); ok {
		t.Fatalf("unknown task resolved a raw result")
	}
}
