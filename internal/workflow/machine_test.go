package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestMachine_ApplyRejectsWrongSource(t *testing.T) {
	m := NewAssetMachine(testLog(t), func(*assets.Asset) bool { return true })
	a := assets.New("https://example.com/a.jpg")
	a.SetMarking(assets.PlaceComplete)

	if err := m.Apply(context.Background(), a, TransitionDownload); err == nil {
		t.Fatalf("expected error applying download from complete")
	}
	if a.CurrentMarking() != assets.PlaceComplete {
		t.Fatalf("failed apply mutated marking to %q", a.CurrentMarking())
	}
}

func TestMachine_DownloadAllowedFromFailed(t *testing.T) {
	m := NewAssetMachine(testLog(t), func(*assets.Asset) bool { return true })
	a := assets.New("https://example.com/a.jpg")
	a.SetMarking(assets.PlaceFailed)

	if !m.Can(a, TransitionDownload) {
		t.Fatalf("download should be retryable from failed")
	}
}

func TestMachine_GuardRoutesDownloadOutcome(t *testing.T) {
	m := NewAssetMachine(testLog(t), func(*assets.Asset) bool { return true })

	a := assets.New("https://example.com/a.jpg")
	a.SetMarking(assets.PlaceDownloaded)
	a.StatusCode = 404
	if !m.Can(a, TransitionDownloadFailed) {
		t.Fatalf("download_failed should be enabled for status 404")
	}
	if m.Can(a, TransitionAnalyze) {
		t.Fatalf("analyze must be blocked for status 404")
	}

	a.StatusCode = 200
	a.Mime = "text/html"
	if !m.Can(a, TransitionInvalidFile) {
		t.Fatalf("invalid_file should be enabled for non-media mime")
	}

	a.Mime = "image/jpeg"
	if m.Can(a, TransitionInvalidFile) {
		t.Fatalf("invalid_file must be blocked for media mime")
	}
	if !m.Can(a, TransitionAnalyze) {
		t.Fatalf("analyze should be enabled for 200 + media mime")
	}
}

func TestMachine_AwaitVariantsGuard(t *testing.T) {
	ready := false
	m := NewAssetMachine(testLog(t), func(*assets.Asset) bool { return ready })
	a := assets.New("https://example.com/a.jpg")
	a.SetMarking(assets.PlaceVariantsQueued)

	if m.Can(a, TransitionAwaitVariants) {
		t.Fatalf("await_variants must be blocked while renditions are pending")
	}
	ready = true
	if !m.Can(a, TransitionAwaitVariants) {
		t.Fatalf("await_variants should pass once renditions are done")
	}
	if err := m.Apply(context.Background(), a, TransitionAwaitVariants); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if a.CurrentMarking() != assets.PlaceVariantsBuilt {
		t.Fatalf("expected variants_built, got %q", a.CurrentMarking())
	}
}

func TestMachine_AIBoundaryIsSelfLoop(t *testing.T) {
	m := NewAssetMachine(testLog(t), func(*assets.Asset) bool { return true })
	a := assets.New("https://example.com/a.jpg")
	a.SetMarking(assets.PlaceArchived)

	for _, tr := range []string{TransitionQueueAI, TransitionAITask, TransitionAIDone} {
		if err := m.Apply(context.Background(), a, tr); err != nil {
			t.Fatalf("apply %s: %v", tr, err)
		}
		if a.CurrentMarking() != assets.PlaceArchived {
			t.Fatalf("%s moved the marking to %q", tr, a.CurrentMarking())
		}
	}
}

func TestMachine_AIBoundaryBlockedFromFailed(t *testing.T) {
	m := NewAssetMachine(testLog(t), func(*assets.Asset) bool { return true })
	a := assets.New("https://example.com/a.jpg")
	a.SetMarking(assets.PlaceFailed)

	if m.Can(a, TransitionQueueAI) {
		t.Fatalf("queue_ai must not be enabled on a failed asset")
	}
}

func TestMachine_ListenersFireInOrder(t *testing.T) {
	m := NewAssetMachine(testLog(t), func(*assets.Asset) bool { return true })
	a := assets.New("https://example.com/a.jpg")

	var order []string
	m.On(TransitionDownload, func(ctx context.Context, s Subject) error {
		order = append(order, "first")
		return nil
	})
	m.On(TransitionDownload, func(ctx context.Context, s Subject) error {
		order = append(order, "second")
		return nil
	})

	if err := m.Apply(context.Background(), a, TransitionDownload); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected listener order: %v", order)
	}
}

func TestMachine_ListenerErrorDoesNotRollBack(t *testing.T) {
	m := NewAssetMachine(testLog(t), func(*assets.Asset) bool { return true })
	a := assets.New("https://example.com/a.jpg")
	m.On(TransitionDownload, func(ctx context.Context, s Subject) error {
		return errors.New("listener boom")
	})

	if err := m.Apply(context.Background(), a, TransitionDownload); err == nil {
		t.Fatalf("expected listener error")
	}
	if a.CurrentMarking() != assets.PlaceDownloaded {
		t.Fatalf("marking rolled back to %q", a.CurrentMarking())
	}
}

func TestVariantMachine_RetryFromError(t *testing.T) {
	m := NewVariantMachine(testLog(t))
	v := assets.NewVariant("abc", "small", "webp")

	if err := m.Apply(context.Background(), v, TransitionResizeFailed); err != nil {
		t.Fatalf("apply resize_failed: %v", err)
	}
	if v.Marking != assets.PlaceVariantError {
		t.Fatalf("expected error place, got %q", v.Marking)
	}
	if !m.Can(v, TransitionRetry) {
		t.Fatalf("retry should be enabled from error")
	}
	if err := m.Apply(context.Background(), v, TransitionRetry); err != nil {
		t.Fatalf("apply retry: %v", err)
	}
	if v.Marking != assets.PlaceVariantDone {
		t.Fatalf("expected done place, got %q", v.Marking)
	}
}
