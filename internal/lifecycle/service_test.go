package lifecycle

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/mediavault/mediavault-backend/internal/ai"
	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/apperr"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/services"
	"github.com/mediavault/mediavault-backend/internal/transport"
	"github.com/mediavault/mediavault-backend/internal/workflow"
)

// ---- in-memory fakes ----

type memAssetRepo struct {
	mu     sync.Mutex
	assets map[string]*assets.Asset
	vr     *memVariantRepo
}

func newMemAssetRepo(vr *memVariantRepo) *memAssetRepo {
	return &memAssetRepo{assets: map[string]*assets.Asset{}, vr: vr}
}

func (r *memAssetRepo) Create(ctx context.Context, tx *gorm.DB, a *assets.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[a.ID]; !ok {
		r.assets[a.ID] = a
	}
	return nil
}

func (r *memAssetRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*assets.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assets[id], nil
}

func (r *memAssetRepo) GetByIDWithVariants(ctx context.Context, tx *gorm.DB, id string) (*assets.Asset, error) {
	r.mu.Lock()
	a := r.assets[id]
	r.mu.Unlock()
	if a == nil {
		return nil, nil
	}
	a.Variants = nil
	for _, v := range r.vr.byAsset(id) {
		a.Variants = append(a.Variants, *v)
	}
	return a, nil
}

func (r *memAssetRepo) Save(ctx context.Context, tx *gorm.DB, a *assets.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[a.ID] = a
	return nil
}

func (r *memAssetRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.assets[id]
	if a == nil {
		return nil
	}
	if v, ok := updates["small_url"].(string); ok {
		a.SmallURL = v
	}
	if v, ok := updates["ai_locked"].(bool); ok {
		a.AILocked = v
	}
	return nil
}

func (r *memAssetRepo) ListByDocumentType(ctx context.Context, tx *gorm.DB, documentType string, limit int) ([]*assets.Asset, error) {
	return nil, nil
}

type memVariantRepo struct {
	mu       sync.Mutex
	variants map[uint]*assets.Variant
	nextID   uint
}

func newMemVariantRepo() *memVariantRepo {
	return &memVariantRepo{variants: map[uint]*assets.Variant{}, nextID: 1}
}

func (r *memVariantRepo) byAsset(assetID string) []*assets.Variant {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*assets.Variant
	for _, v := range r.variants {
		if v.AssetID == assetID {
			out = append(out, v)
		}
	}
	return out
}

func (r *memVariantRepo) Create(ctx context.Context, tx *gorm.DB, v *assets.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.variants {
		if existing.AssetID == v.AssetID && existing.Preset == v.Preset && existing.Format == v.Format {
			return nil
		}
	}
	v.ID = r.nextID
	r.nextID++
	r.variants[v.ID] = v
	return nil
}

func (r *memVariantRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*assets.Variant, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.variants[uint(n)], nil
}

func (r *memVariantRepo) ListByAsset(ctx context.Context, tx *gorm.DB, assetID string) ([]*assets.Variant, error) {
	return r.byAsset(assetID), nil
}

func (r *memVariantRepo) Save(ctx context.Context, tx *gorm.DB, v *assets.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[v.ID] = v
	return nil
}

func (r *memVariantRepo) CountPending(ctx context.Context, tx *gorm.DB, assetID string) (int64, error) {
	var n int64
	for _, v := range r.byAsset(assetID) {
		if v.Marking != assets.PlaceVariantDone {
			n++
		}
	}
	return n, nil
}

type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBucket() *memBucket { return &memBucket{objects: map[string][]byte{}} }

func (b *memBucket) Stat(ctx context.Context, key string) (bool, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return ok, int64(len(data)), nil
}

func (b *memBucket) Upload(ctx context.Context, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return int64(len(data)), nil
}

func (b *memBucket) Read(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[key], nil
}

func (b *memBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memBucket) PublicURL(key string) string { return "https://cdn.test/" + key }

type stubBuilder struct {
	fail bool
}

func (sb *stubBuilder) Build(ctx context.Context, a *assets.Asset, v *assets.Variant) (*services.VariantOutput, error) {
	if sb.fail {
		return nil, fmt.Errorf("encoder unavailable")
	}
	return &services.VariantOutput{
		URL:            "https://cdn.test/v/" + a.ID + "-" + v.Preset + ".webp",
		StorageBackend: "proxy",
		Width:          320,
		Height:         200,
	}, nil
}

func newTestService(t *testing.T, registry *ai.Registry) (*Service, *memAssetRepo, *memVariantRepo, *memBucket) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	vr := newMemVariantRepo()
	ar := newMemAssetRepo(vr)
	bucket := newMemBucket()
	svc := NewService(log, ar, vr, services.NewArchive(log, bucket), nil,
		services.NewVariantPlan(), &stubBuilder{}, registry)
	return svc, ar, vr, bucket
}

func pngServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, image.NewRGBA(image.Rect(0, 0, 64, 48))); err != nil {
			t.Errorf("encode: %v", err)
		}
	}))
}

// ---- tests ----

func TestRegister_FullLifecycleToComplete(t *testing.T) {
	srv := pngServer(t)
	defer srv.Close()

	svc, ar, vr, bucket := newTestService(t, nil)
	asset, err := svc.Register(context.Background(), srv.URL+"/family/scan.png")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	final, _ := ar.GetByID(context.Background(), nil, asset.ID)
	if final.Marking != assets.PlaceComplete {
		t.Fatalf("expected complete, got %q", final.Marking)
	}
	if final.Mime != "image/png" || final.Width != 64 || final.Height != 48 {
		t.Fatalf("probe results missing: %+v", final)
	}
	if final.ArchiveURL == "" || final.StorageKey == "" {
		t.Fatalf("archive bookkeeping missing: %+v", final)
	}
	if final.SmallURL == "" {
		t.Fatalf("small rendition url not denormalized")
	}

	variants := vr.byAsset(asset.ID)
	if len(variants) != 2 {
		t.Fatalf("expected 2 planned variants, got %d", len(variants))
	}
	for _, v := range variants {
		if v.Marking != assets.PlaceVariantDone {
			t.Fatalf("variant %s not done: %q", v.Preset, v.Marking)
		}
	}

	// Original and metadata sidecar both stored.
	if len(bucket.objects) != 2 {
		t.Fatalf("expected payload + sidecar in bucket, got %d objects", len(bucket.objects))
	}
}

func TestRegister_IsIdempotent(t *testing.T) {
	srv := pngServer(t)
	defer srv.Close()

	svc, ar, vr, _ := newTestService(t, nil)
	first, err := svc.Register(context.Background(), srv.URL+"/scan.png")
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	second, err := svc.Register(context.Background(), srv.URL+"/scan.png")
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("re-registration produced a new asset: %q vs %q", first.ID, second.ID)
	}
	if len(ar.assets) != 1 {
		t.Fatalf("expected one asset row, got %d", len(ar.assets))
	}
	if len(vr.byAsset(first.ID)) != 2 {
		t.Fatalf("replanning duplicated variants")
	}
}

func TestRegister_PermanentFetchFailureRoutesToFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc, ar, _, _ := newTestService(t, nil)
	asset, err := svc.Register(context.Background(), srv.URL+"/gone.png")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	final, _ := ar.GetByID(context.Background(), nil, asset.ID)
	if final.Marking != assets.PlaceFailed {
		t.Fatalf("expected failed, got %q", final.Marking)
	}
	if final.StatusCode != 404 {
		t.Fatalf("status not recorded: %d", final.StatusCode)
	}
}

func TestRegister_RetriableFetchFailureSurfacesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, ar, _, _ := newTestService(t, nil)
	asset, err := svc.Register(context.Background(), srv.URL+"/flaky.png")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if !apperr.IsRetriable(err) {
		t.Fatalf("503 must be retriable: %v", err)
	}
	final, _ := ar.GetByID(context.Background(), nil, asset.ID)
	if final.Marking != assets.PlaceNew {
		t.Fatalf("retriable failure must not advance the marking, got %q", final.Marking)
	}
}

func TestRegister_HTMLPageIsInvalidFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>login page</body></html>")
	}))
	defer srv.Close()

	svc, ar, _, _ := newTestService(t, nil)
	asset, err := svc.Register(context.Background(), srv.URL+"/photo.jpg")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	final, _ := ar.GetByID(context.Background(), nil, asset.ID)
	if final.Marking != assets.PlaceFailed {
		t.Fatalf("html payload should fail, got %q", final.Marking)
	}
}

func TestVariantBuildFailureParksVariantInError(t *testing.T) {
	srv := pngServer(t)
	defer srv.Close()

	log, _ := logger.New("development")
	vr := newMemVariantRepo()
	ar := newMemAssetRepo(vr)
	svc := NewService(log, ar, vr, services.NewArchive(log, newMemBucket()), nil,
		services.NewVariantPlan(), &stubBuilder{fail: true}, nil)

	asset, err := svc.Register(context.Background(), srv.URL+"/scan.png")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	final, _ := ar.GetByID(context.Background(), nil, asset.ID)
	if final.Marking != assets.PlaceVariantsQueued {
		t.Fatalf("asset advanced despite failed renditions: %q", final.Marking)
	}
	for _, v := range vr.byAsset(asset.ID) {
		if v.Marking != assets.PlaceVariantError {
			t.Fatalf("variant %s not in error place: %q", v.Preset, v.Marking)
		}
	}
}

type recordingHandler struct {
	task string
	runs *[]string
}

func (h *recordingHandler) Task() string { return h.task }

func (h *recordingHandler) Describe() ai.TaskInfo { return ai.TaskInfo{Task: h.task, Kind: "test"} }

func (h *recordingHandler) Supports(a *assets.Asset) bool { return true }
func (h *recordingHandler) Run(ctx context.Context, a *assets.Asset, prior map[string]assets.Result) (assets.Result, error) {
	*h.runs = append(*h.runs, h.task)
	return assets.Result{"text": h.task}, nil
}

func TestEnqueuePipeline_DrainsSynchronously(t *testing.T) {
	srv := pngServer(t)
	defer srv.Close()

	var runs []string
	registry := ai.NewRegistry(
		&recordingHandler{task: "ocr", runs: &runs},
		&recordingHandler{task: "basic_description", runs: &runs},
		&recordingHandler{task: "classify", runs: &runs},
	)
	svc, ar, _, _ := newTestService(t, registry)
	svc.SetDispatcher(transport.NewSyncDispatcher(svc))

	asset, err := svc.Register(context.Background(), srv.URL+"/scan.png")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.EnqueuePipeline(context.Background(), asset.ID, "quick-scan"); err != nil {
		t.Fatalf("EnqueuePipeline: %v", err)
	}

	if len(runs) != 3 || runs[0] != "ocr" || runs[2] != "classify" {
		t.Fatalf("pipeline did not drain in order: %v", runs)
	}
	final, _ := ar.GetByID(context.Background(), nil, asset.ID)
	if len(final.AIQueue) != 0 {
		t.Fatalf("queue not drained: %v", final.AIQueue)
	}
	if len(final.AICompleted) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(final.AICompleted))
	}
	if final.Marking != assets.PlaceComplete {
		t.Fatalf("task boundary transitions must not move the marking: %q", final.Marking)
	}
}

func TestLock_StopsTheDrain(t *testing.T) {
	srv := pngServer(t)
	defer srv.Close()

	var runs []string
	registry := ai.NewRegistry(&recordingHandler{task: "ocr", runs: &runs})
	svc, ar, _, _ := newTestService(t, registry)

	asset, err := svc.Register(context.Background(), srv.URL+"/scan.png")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Lock(context.Background(), asset.ID, true); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := svc.EnqueuePipeline(context.Background(), asset.ID, "quick-scan"); err != nil {
		t.Fatalf("EnqueuePipeline: %v", err)
	}

	if len(runs) != 0 {
		t.Fatalf("locked asset ran tasks: %v", runs)
	}
	final, _ := ar.GetByID(context.Background(), nil, asset.ID)
	if len(final.AIQueue) != 3 {
		t.Fatalf("locked queue changed: %v", final.AIQueue)
	}
}

func TestExecute_UnknownAsset(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil)
	err := svc.Execute(context.Background(), transport.TransitionRequest{
		Workflow:   workflow.AssetWorkflowName,
		SubjectID:  "ffffffffffffffff",
		Transition: workflow.TransitionDownload,
	})
	if err == nil {
		t.Fatalf("expected not-found error")
	}
}
