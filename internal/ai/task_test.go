package ai

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPipeline_BuiltIns(t *testing.T) {
	quick, ok := Pipeline("quick-scan")
	if !ok {
		t.Fatalf("quick-scan missing")
	}
	if !reflect.DeepEqual(quick, []string{TaskOcr, TaskBasicDescription, TaskClassify}) {
		t.Fatalf("unexpected quick-scan: %v", quick)
	}
	if _, ok := Pipeline("full-enrichment"); !ok {
		t.Fatalf("full-enrichment missing")
	}
	if _, ok := Pipeline("nope"); ok {
		t.Fatalf("unknown pipeline resolved")
	}
}

func TestLoadPipelineOverrides_MergesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipelines.yaml")
	content := "pipelines:\n  letters-only:\n    - ocr_layout\n    - transcribe_handwriting\n    - translate\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AI_PIPELINES_FILE", path)

	if err := LoadPipelineOverrides(); err != nil {
		t.Fatalf("LoadPipelineOverrides: %v", err)
	}
	defer delete(Pipelines, "letters-only")

	got, ok := Pipeline("letters-only")
	if !ok {
		t.Fatalf("override pipeline missing")
	}
	want := []string{TaskOcrLayout, TaskTranscribeHandwriting, TaskTranslate}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected override: %v", got)
	}
}

func TestLoadPipelineOverrides_MissingFileIsFine(t *testing.T) {
	t.Setenv("AI_PIPELINES_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if err := LoadPipelineOverrides(); err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
}

func TestLoadPipelineOverrides_BadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("pipelines: [not a map"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AI_PIPELINES_FILE", path)
	if err := LoadPipelineOverrides(); err == nil {
		t.Fatalf("broken yaml must error")
	}
}
