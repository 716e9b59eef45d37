package ai

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
)

// Task names the enrichment steps an asset can queue. The set is closed:
// queue entries outside it are skipped by the runner, never executed.
const (
	TaskOcr                   = "ocr"
	TaskOcrLayout             = "ocr_layout"
	TaskLayout                = "layout"
	TaskBasicDescription      = "basic_description"
	TaskContextDescription    = "context_description"
	TaskClassify              = "classify"
	TaskExtractMetadata       = "extract_metadata"
	TaskGenerateTitle         = "generate_title"
	TaskPeopleAndPlaces       = "people_and_places"
	TaskKeywords              = "keywords"
	TaskTranscribeHandwriting = "transcribe_handwriting"
	TaskTranslate             = "translate"
	TaskSummarize             = "summarize"
)

// Pipelines are named task sequences. Order matters: later tasks read the
// sanitized results of earlier ones.
var Pipelines = map[string][]string{
	"quick-scan": {
		TaskOcr,
		TaskBasicDescription,
		TaskClassify,
	},
	"full-enrichment": {
		TaskOcr,
		TaskClassify,
		TaskContextDescription,
		TaskExtractMetadata,
		TaskGenerateTitle,
		TaskPeopleAndPlaces,
		TaskKeywords,
		TaskSummarize,
	},
}

type pipelineFile struct {
	Pipelines map[string][]string `yaml:"pipelines"`
}

// LoadPipelineOverrides merges pipeline definitions from the YAML file named
// by AI_PIPELINES_FILE into the built-in set. Missing file is not an error.
func LoadPipelineOverrides() error {
	path := envutil.String("AI_PIPELINES_FILE", "")
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read pipelines file: %w", err)
	}
	var pf pipelineFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("failed to parse pipelines file: %w", err)
	}
	for name, tasks := range pf.Pipelines {
		Pipelines[name] = tasks
	}
	return nil
}

// Pipeline resolves a pipeline by name.
func Pipeline(name string) ([]string, bool) {
	tasks, ok := Pipelines[name]
	return tasks, ok
}
