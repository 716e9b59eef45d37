// Package lifecycle drives assets and their renditions through the ingest
// state machines. It is the only place that fires transitions, performs
// stage side effects, and persists the results; the transport layer just
// delivers transition requests back into Execute.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mediavault/mediavault-backend/internal/ai"
	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/apperr"
	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/gcp"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/repos"
	"github.com/mediavault/mediavault-backend/internal/services"
	"github.com/mediavault/mediavault-backend/internal/transport"
	"github.com/mediavault/mediavault-backend/internal/workflow"
)

const maxDownloadBytes = 512 << 20

type Service struct {
	log            *logger.Logger
	assetRepo      repos.AssetRepo
	variantRepo    repos.VariantRepo
	assetMachine   *workflow.Machine
	variantMachine *workflow.Machine
	archive        *services.Archive
	vision         gcp.Vision
	plan           *services.VariantPlan
	builder        services.VariantBuilder
	runner         *ai.Runner
	dispatcher     transport.Dispatcher
	httpClient     *http.Client
}

// assetSaver narrows the repo to what the task runner needs.
type assetSaver struct {
	repo repos.AssetRepo
}

func (s assetSaver) Save(ctx context.Context, asset *assets.Asset) error {
	return s.repo.Save(ctx, nil, asset)
}

// NewService wires the machines, the stage side effects and the task
// runner. vision may be nil; analysis is then skipped.
func NewService(
	baseLog *logger.Logger,
	assetRepo repos.AssetRepo,
	variantRepo repos.VariantRepo,
	archive *services.Archive,
	vision gcp.Vision,
	plan *services.VariantPlan,
	builder services.VariantBuilder,
	registry *ai.Registry,
) *Service {
	log := baseLog.With("service", "LifecycleService")
	s := &Service{
		log:         log,
		assetRepo:   assetRepo,
		variantRepo: variantRepo,
		archive:     archive,
		vision:      vision,
		plan:        plan,
		builder:     builder,
		httpClient: &http.Client{
			Timeout: time.Duration(envutil.Int("DOWNLOAD_TIMEOUT_SECONDS", 120)) * time.Second,
		},
	}
	s.assetMachine = workflow.NewAssetMachine(baseLog, s.variantsReady)
	s.variantMachine = workflow.NewVariantMachine(baseLog)
	if registry == nil {
		registry = ai.NewRegistry()
	}
	s.runner = ai.NewRunner(baseLog, registry, s.assetMachine, assetSaver{repo: assetRepo})
	return s
}

// SetDispatcher installs the message transport. Without one, async
// transitions run inline, which is what the one-shot CLI and tests want.
func (s *Service) SetDispatcher(d transport.Dispatcher) { s.dispatcher = d }

func (s *Service) Runner() *ai.Runner { return s.runner }

func (s *Service) AssetMachine() *workflow.Machine { return s.assetMachine }

// Register finds or creates the asset for a source URL and starts its
// lifecycle. Re-registering a known URL re-fires download, which the
// idempotent stage turns into a cheap no-op for already-complete assets.
func (s *Service) Register(ctx context.Context, originalURL string) (*assets.Asset, error) {
	if originalURL == "" {
		return nil, fmt.Errorf("register: %w: empty url", apperr.ErrInvalidArgument)
	}
	asset, err := s.assetRepo.GetByIDWithVariants(ctx, nil, assets.IDFromURL(originalURL))
	if err != nil {
		return nil, err
	}
	if asset == nil {
		asset = assets.New(originalURL)
		if err := s.assetRepo.Create(ctx, nil, asset); err != nil {
			return nil, err
		}
		s.log.Info("asset registered", "asset_id", asset.ID, "url", originalURL)
	}
	if err := s.Trigger(ctx, asset, workflow.TransitionDownload); err != nil {
		return asset, err
	}
	return asset, nil
}

// Trigger fires a transition on an asset, honoring the table's Async flag:
// async transitions go to the transport, sync ones run inline.
func (s *Service) Trigger(ctx context.Context, asset *assets.Asset, transition string) error {
	t, ok := s.assetMachine.Transition(transition)
	if !ok {
		return fmt.Errorf("trigger: unknown transition %q", transition)
	}
	if t.Async && s.dispatcher != nil {
		return s.dispatcher.Dispatch(ctx, transport.TransitionRequest{
			Workflow:   workflow.AssetWorkflowName,
			SubjectID:  asset.ID,
			Transition: transition,
		}, transport.QueueAssetTransitions)
	}
	return s.applyAsset(ctx, asset, transition)
}

// EnqueuePipeline appends a named pipeline to the asset's task queue and
// kicks the drain.
func (s *Service) EnqueuePipeline(ctx context.Context, assetID, pipeline string) error {
	asset, err := s.assetRepo.GetByID(ctx, nil, assetID)
	if err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("asset %s: %w", assetID, apperr.ErrNotFound)
	}
	if err := s.runner.EnqueuePipeline(ctx, asset, pipeline); err != nil {
		return err
	}
	return s.kickAIQueue(ctx, asset.ID)
}

// Lock stops the runner from touching the asset's queue until Unlock.
func (s *Service) Lock(ctx context.Context, assetID string, locked bool) error {
	return s.assetRepo.UpdateFields(ctx, nil, assetID, map[string]interface{}{"ai_locked": locked})
}

func (s *Service) kickAIQueue(ctx context.Context, assetID string) error {
	req := transport.TransitionRequest{
		Workflow:   workflow.AssetWorkflowName,
		SubjectID:  assetID,
		Transition: workflow.TransitionAITask,
	}
	if s.dispatcher != nil {
		return s.dispatcher.Dispatch(ctx, req, transport.QueueAITasks)
	}
	return s.Execute(ctx, req)
}

// Execute applies one delivered transition request. It is the
// transport.Executor implementation and must tolerate redelivery.
func (s *Service) Execute(ctx context.Context, req transport.TransitionRequest) error {
	switch req.Workflow {
	case workflow.AssetWorkflowName:
		asset, err := s.assetRepo.GetByIDWithVariants(ctx, nil, req.SubjectID)
		if err != nil {
			return err
		}
		if asset == nil {
			return fmt.Errorf("asset %s: %w", req.SubjectID, apperr.ErrNotFound)
		}
		if req.Transition == workflow.TransitionAITask {
			return s.drainOneTask(ctx, asset)
		}
		return s.applyAsset(ctx, asset, req.Transition)
	case workflow.VariantWorkflowName:
		if _, err := strconv.ParseUint(req.SubjectID, 10, 64); err != nil {
			return fmt.Errorf("variant id %q: %w", req.SubjectID, apperr.ErrInvalidArgument)
		}
		variant, err := s.variantRepo.GetByID(ctx, nil, req.SubjectID)
		if err != nil {
			return err
		}
		if variant == nil {
			return fmt.Errorf("variant %s: %w", req.SubjectID, apperr.ErrNotFound)
		}
		return s.applyVariant(ctx, variant, req.Transition)
	default:
		return fmt.Errorf("unknown workflow %q", req.Workflow)
	}
}

// drainOneTask runs one queued task and, while the queue has more,
// re-dispatches itself. One task per message keeps worker latency bounded
// and lets lock/unlock take effect between tasks.
func (s *Service) drainOneTask(ctx context.Context, asset *assets.Asset) error {
	task, err := s.runner.RunNext(ctx, asset)
	if err != nil {
		return err
	}
	if task == "" || len(asset.AIQueue) == 0 {
		return nil
	}
	return s.kickAIQueue(ctx, asset.ID)
}

// applyAsset runs the stage side effect, fires the transition, persists,
// and chains to the follow-up transition the table implies.
func (s *Service) applyAsset(ctx context.Context, asset *assets.Asset, transition string) error {
	// Redelivery of an already-applied transition is not an error.
	if !s.assetMachine.Can(asset, transition) {
		s.log.Warn("transition not enabled, dropping request",
			"asset_id", asset.ID, "transition", transition, "marking", asset.Marking)
		return nil
	}

	switch transition {
	case workflow.TransitionDownload:
		if err := s.stageDownload(ctx, asset); err != nil {
			return err
		}
	case workflow.TransitionAnalyze:
		s.stageAnalyze(ctx, asset)
	case workflow.TransitionArchive:
		if err := s.stageArchive(ctx, asset); err != nil {
			return err
		}
	case workflow.TransitionQueueVariants:
		if err := s.stageQueueVariants(ctx, asset); err != nil {
			return err
		}
	}

	if err := s.assetMachine.Apply(ctx, asset, transition); err != nil {
		return err
	}
	if err := s.assetRepo.Save(ctx, nil, asset); err != nil {
		return fmt.Errorf("persist asset %s after %s: %w", asset.ID, transition, err)
	}

	return s.advance(ctx, asset, transition)
}

// advance chains the next transition after a completed one. Guards decide
// the download routing; everything else is a straight line.
func (s *Service) advance(ctx context.Context, asset *assets.Asset, completed string) error {
	switch completed {
	case workflow.TransitionDownload:
		for _, next := range []string{
			workflow.TransitionDownloadFailed,
			workflow.TransitionInvalidFile,
			workflow.TransitionAnalyze,
		} {
			if s.assetMachine.Can(asset, next) {
				return s.Trigger(ctx, asset, next)
			}
		}
		return nil
	case workflow.TransitionAnalyze:
		return s.Trigger(ctx, asset, workflow.TransitionArchive)
	case workflow.TransitionArchive:
		return s.Trigger(ctx, asset, workflow.TransitionQueueVariants)
	case workflow.TransitionQueueVariants:
		return s.dispatchVariantBuilds(ctx, asset)
	case workflow.TransitionAwaitVariants:
		return s.Trigger(ctx, asset, workflow.TransitionFinalize)
	case workflow.TransitionFinalize:
		s.log.Info("asset complete", "asset_id", asset.ID)
		return nil
	default:
		return nil
	}
}

// ---- stage side effects ----

// stageDownload fetches the original, sniffs it, and parks the bytes in a
// temp file for the archive stage. Already-probed assets short-circuit so
// redelivery and re-registration stay cheap. Retriable upstream statuses
// surface as transport errors; everything else records the status and lets
// the guards route the asset.
func (s *Service) stageDownload(ctx context.Context, asset *assets.Asset) error {
	if asset.StatusCode == 200 && asset.Size > 0 && asset.Mime != "" {
		s.log.Debug("download already done, skipping fetch", "asset_id", asset.ID)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.OriginalURL, nil)
	if err != nil {
		asset.StatusCode = 0
		return nil
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Network failures are worth a redelivery.
		return &apperr.TransportError{URL: asset.OriginalURL, StatusCode: http.StatusServiceUnavailable}
	}
	defer resp.Body.Close()

	asset.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		te := &apperr.TransportError{URL: asset.OriginalURL, StatusCode: resp.StatusCode}
		if te.Retriable() {
			return te
		}
		s.log.Warn("fetch failed permanently", "asset_id", asset.ID, "status", resp.StatusCode)
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return &apperr.TransportError{URL: asset.OriginalURL, StatusCode: http.StatusServiceUnavailable}
	}

	probe := services.Probe(data)
	asset.Mime = probe.Mime
	asset.Size = int64(len(data))
	asset.Width = probe.Width
	asset.Height = probe.Height
	asset.Ext = assets.ExtFromMime(probe.Mime)
	if asset.Ext == "" {
		asset.Ext = assets.ExtFromURL(asset.OriginalURL)
	}

	tmp, err := os.CreateTemp("", "mediavault-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()
	asset.TempFilename = tmp.Name()

	s.log.Info("downloaded original", "asset_id", asset.ID, "mime", asset.Mime, "size", asset.Size)
	return nil
}

// stageAnalyze stamps vision features into the context bag. Analysis is
// best effort; an unreachable vision API never blocks the lifecycle.
func (s *Service) stageAnalyze(ctx context.Context, asset *assets.Asset) {
	if s.vision == nil || asset.ImageURL() == "" {
		return
	}
	features, err := s.vision.Features(ctx, asset.ImageURL())
	if err != nil {
		s.log.Warn("image analysis failed", "asset_id", asset.ID, "error", err)
		return
	}
	if asset.Context == nil {
		asset.Context = map[string]interface{}{}
	}
	asset.Context["labels"] = features.Labels
	asset.Context["colors"] = features.Colors
}

// stageArchive stores the original and a metadata sidecar under the
// content-addressed key. The store itself is idempotent, so redelivered
// archive requests cost one stat call.
func (s *Service) stageArchive(ctx context.Context, asset *assets.Asset) error {
	data, err := s.payload(ctx, asset)
	if err != nil {
		return err
	}

	key := s.archive.KeyForURL(asset.OriginalURL)
	path, err := s.archive.PayloadPath(key, asset.Ext)
	if err != nil {
		return err
	}
	url, err := s.archive.Store(ctx, path, data)
	if err != nil {
		return fmt.Errorf("archive asset %s: %w", asset.ID, err)
	}
	asset.StorageBackend = "gcs"
	asset.StorageKey = path
	asset.ArchiveURL = url

	metaPath, err := s.archive.MetaPath(key)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(map[string]interface{}{
		"id":           asset.ID,
		"original_url": asset.OriginalURL,
		"mime":         asset.Mime,
		"size":         asset.Size,
		"archived_at":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if _, err := s.archive.Store(ctx, metaPath, meta); err != nil {
		s.log.Warn("metadata sidecar store failed", "asset_id", asset.ID, "error", err)
	}

	if asset.TempFilename != "" {
		os.Remove(asset.TempFilename)
		asset.TempFilename = ""
	}
	return nil
}

// payload reads the downloaded bytes back, re-fetching when the temp file
// did not survive (worker restart between stages).
func (s *Service) payload(ctx context.Context, asset *assets.Asset) ([]byte, error) {
	if asset.TempFilename != "" {
		if data, err := os.ReadFile(asset.TempFilename); err == nil {
			return data, nil
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.OriginalURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &apperr.TransportError{URL: asset.OriginalURL, StatusCode: http.StatusServiceUnavailable}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &apperr.TransportError{URL: asset.OriginalURL, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}

// stageQueueVariants plans one rendition row per required preset. The
// unique index makes replanning idempotent.
func (s *Service) stageQueueVariants(ctx context.Context, asset *assets.Asset) error {
	for _, preset := range s.plan.RequiredPresets(asset.Mime) {
		v := assets.NewVariant(asset.ID, preset, s.plan.DefaultFormat())
		if err := s.variantRepo.Create(ctx, nil, v); err != nil {
			return fmt.Errorf("plan variant %s/%s: %w", asset.ID, preset, err)
		}
	}
	return nil
}

func (s *Service) dispatchVariantBuilds(ctx context.Context, asset *assets.Asset) error {
	variants, err := s.variantRepo.ListByAsset(ctx, nil, asset.ID)
	if err != nil {
		return err
	}
	if len(variants) == 0 {
		// Nothing to build; the fan-in guard passes immediately.
		return s.Trigger(ctx, asset, workflow.TransitionAwaitVariants)
	}
	for _, v := range variants {
		if v.Marking == assets.PlaceVariantDone {
			continue
		}
		transition := workflow.TransitionResize
		if v.Marking == assets.PlaceVariantError {
			transition = workflow.TransitionRetry
		}
		req := transport.TransitionRequest{
			Workflow:   workflow.VariantWorkflowName,
			SubjectID:  strconv.FormatUint(uint64(v.ID), 10),
			Transition: transition,
		}
		if s.dispatcher != nil {
			if err := s.dispatcher.Dispatch(ctx, req, transport.QueueVariantTransitions); err != nil {
				return err
			}
			continue
		}
		if err := s.Execute(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// applyVariant builds one rendition and routes the result. A builder error
// parks the variant in its error place instead of failing the message.
func (s *Service) applyVariant(ctx context.Context, variant *assets.Variant, transition string) error {
	if !s.variantMachine.Can(variant, transition) {
		s.log.Warn("variant transition not enabled, dropping request",
			"variant_id", variant.ID, "transition", transition, "marking", variant.Marking)
		return nil
	}

	asset, err := s.assetRepo.GetByID(ctx, nil, variant.AssetID)
	if err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("asset %s for variant %d: %w", variant.AssetID, variant.ID, apperr.ErrNotFound)
	}

	out, buildErr := s.builder.Build(ctx, asset, variant)
	if buildErr != nil {
		s.log.Error("variant build failed", "variant_id", variant.ID, "error", buildErr)
		if s.variantMachine.Can(variant, workflow.TransitionResizeFailed) {
			if err := s.variantMachine.Apply(ctx, variant, workflow.TransitionResizeFailed); err != nil {
				return err
			}
		}
		return s.variantRepo.Save(ctx, nil, variant)
	}

	variant.URL = out.URL
	variant.StorageBackend = out.StorageBackend
	variant.StorageKey = out.StorageKey
	variant.Size = out.Size
	variant.Width = out.Width
	variant.Height = out.Height
	if err := s.variantMachine.Apply(ctx, variant, transition); err != nil {
		return err
	}
	if err := s.variantRepo.Save(ctx, nil, variant); err != nil {
		return err
	}

	if variant.Preset == "small" && out.URL != "" {
		if err := s.assetRepo.UpdateFields(ctx, nil, asset.ID, map[string]interface{}{"small_url": out.URL}); err != nil {
			s.log.Warn("small url update failed", "asset_id", asset.ID, "error", err)
		}
	}

	// Fan-in: only the last finished sibling pokes the parent; the await
	// guard still re-checks the full set against the plan.
	pending, err := s.variantRepo.CountPending(ctx, nil, variant.AssetID)
	if err != nil {
		return err
	}
	if pending > 0 {
		s.log.Debug("renditions still pending", "asset_id", variant.AssetID, "pending", pending)
		return nil
	}
	parentReq := transport.TransitionRequest{
		Workflow:   workflow.AssetWorkflowName,
		SubjectID:  variant.AssetID,
		Transition: workflow.TransitionAwaitVariants,
	}
	if s.dispatcher != nil {
		return s.dispatcher.Dispatch(ctx, parentReq, transport.QueueAssetTransitions)
	}
	return s.Execute(ctx, parentReq)
}

// variantsReady is the await_variants guard: every preset the plan
// requires for this media type has a finished rendition.
func (s *Service) variantsReady(asset *assets.Asset) bool {
	required := s.plan.RequiredPresets(asset.Mime)
	if len(required) == 0 {
		return true
	}
	done := map[string]bool{}
	for _, v := range asset.Variants {
		if v.Marking == assets.PlaceVariantDone {
			done[v.Preset] = true
		}
	}
	for _, preset := range required {
		if !done[preset] {
			return false
		}
	}
	return true
}
