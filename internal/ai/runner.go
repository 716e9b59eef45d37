package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/workflow"
)

// AssetSaver persists a mutated asset. The runner never touches other rows.
type AssetSaver interface {
	Save(ctx context.Context, asset *assets.Asset) error
}

// Runner drains an asset's task queue one entry per call. Every popped entry
// produces exactly one completed-log record, whether the task ran, was
// skipped, or failed; the log only ever grows.
type Runner struct {
	log      *logger.Logger
	registry *Registry
	machine  *workflow.Machine
	saver    AssetSaver
}

func NewRunner(baseLog *logger.Logger, registry *Registry, machine *workflow.Machine, saver AssetSaver) *Runner {
	return &Runner{
		log:      baseLog.With("service", "TaskRunner"),
		registry: registry,
		machine:  machine,
		saver:    saver,
	}
}

// RunNext pops and executes the head of the queue. It returns the task name
// it processed, or "" when the asset was locked or the queue was empty.
func (r *Runner) RunNext(ctx context.Context, asset *assets.Asset) (string, error) {
	if asset.AILocked {
		r.log.Debug("asset locked, skipping", "asset_id", asset.ID)
		return "", nil
	}
	if len(asset.AIQueue) == 0 {
		r.applyBoundary(ctx, asset, workflow.TransitionAIDone)
		return "", nil
	}

	task := asset.AIQueue[0]
	asset.AIQueue = asset.AIQueue[1:]

	handler, ok := r.registry.Get(task)
	if !ok {
		r.log.Warn("no handler for task", "task", task, "asset_id", asset.ID)
		return task, r.record(ctx, asset, task, assets.Result{"skipped": true, "reason": "task class not found"})
	}
	if !handler.Supports(asset) {
		return task, r.record(ctx, asset, task, assets.Result{"skipped": true, "reason": "not supported for this asset"})
	}

	prior := map[string]assets.Result{}
	for name, res := range asset.Results() {
		prior[name] = Sanitize(res)
	}

	result, err := handler.Run(ctx, asset, prior)
	if err != nil {
		r.log.Error("task failed", "task", task, "asset_id", asset.ID, "error", err)
		result = assets.Result{"failed": true, "error": err.Error()}
	}
	if result == nil {
		result = assets.Result{}
	}

	asset.AICompleted = append(asset.AICompleted, assets.CompletedEntry{
		Task:   task,
		At:     time.Now().UTC(),
		Result: result,
	})

	if task == TaskClassify && !result.Failed() && !result.Skipped() {
		if docType := result.Text("type"); docType != "" {
			asset.AIDocumentType = &docType
		}
	}

	boundary := workflow.TransitionAITask
	if len(asset.AIQueue) == 0 {
		boundary = workflow.TransitionAIDone
	}
	r.applyBoundary(ctx, asset, boundary)

	if err := r.saver.Save(ctx, asset); err != nil {
		return task, fmt.Errorf("failed to persist asset %s after task %s: %w", asset.ID, task, err)
	}
	return task, nil
}

// record appends one completed-log entry and persists the asset.
func (r *Runner) record(ctx context.Context, asset *assets.Asset, task string, result assets.Result) error {
	asset.AICompleted = append(asset.AICompleted, assets.CompletedEntry{
		Task:   task,
		At:     time.Now().UTC(),
		Result: result,
	})
	if err := r.saver.Save(ctx, asset); err != nil {
		return fmt.Errorf("failed to persist asset %s after task %s: %w", asset.ID, task, err)
	}
	return nil
}

// applyBoundary fires a queue boundary transition when the current marking
// allows it. A blocked boundary never aborts the drain.
func (r *Runner) applyBoundary(ctx context.Context, asset *assets.Asset, name string) {
	if !r.machine.Can(asset, name) {
		r.log.Debug("boundary transition not enabled",
			"transition", name, "asset_id", asset.ID, "marking", asset.Marking)
		return
	}
	if err := r.machine.Apply(ctx, asset, name); err != nil {
		r.log.Warn("boundary transition failed",
			"transition", name, "asset_id", asset.ID, "error", err)
	}
}

// RunAll drains the queue to empty and returns the task identifiers it
// processed, in order. Individual task failures do not stop the drain; only
// persistence errors do.
func (r *Runner) RunAll(ctx context.Context, asset *assets.Asset) ([]string, error) {
	var ran []string
	for {
		task, err := r.RunNext(ctx, asset)
		if err != nil {
			return ran, err
		}
		if task == "" {
			return ran, nil
		}
		ran = append(ran, task)
	}
}

// Enqueue appends tasks to the asset's queue and fires the queue boundary
// transition. Duplicate entries are allowed; the log records every run.
func (r *Runner) Enqueue(ctx context.Context, asset *assets.Asset, tasks []string) error {
	if len(tasks) == 0 {
		return nil
	}
	asset.AIQueue = append(asset.AIQueue, tasks...)
	r.applyBoundary(ctx, asset, workflow.TransitionQueueAI)
	if err := r.saver.Save(ctx, asset); err != nil {
		return fmt.Errorf("failed to persist asset %s after enqueue: %w", asset.ID, err)
	}
	return nil
}

// EnqueuePipeline resolves a named pipeline and enqueues it.
func (r *Runner) EnqueuePipeline(ctx context.Context, asset *assets.Asset, pipeline string) error {
	tasks, ok := Pipeline(pipeline)
	if !ok {
		return fmt.Errorf("unknown pipeline %q", pipeline)
	}
	return r.Enqueue(ctx, asset, tasks)
}
