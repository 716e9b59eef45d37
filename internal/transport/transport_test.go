package transport

import (
	"context"
	"testing"
	"time"
)

type captureExec struct {
	reqs []TransitionRequest
}

func (e *captureExec) Execute(ctx context.Context, req TransitionRequest) error {
	e.reqs = append(e.reqs, req)
	return nil
}

func TestSyncDispatcher_ExecutesInlineWithDefaults(t *testing.T) {
	exec := &captureExec{}
	d := NewSyncDispatcher(exec)

	err := d.Dispatch(context.Background(), TransitionRequest{
		Workflow:   "asset",
		SubjectID:  "abc",
		Transition: "download",
	}, QueueAssetTransitions)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(exec.reqs) != 1 {
		t.Fatalf("expected inline execution, got %d calls", len(exec.reqs))
	}
	got := exec.reqs[0]
	if got.MessageID == "" {
		t.Fatalf("message id not assigned")
	}
	if got.Attempt != 1 {
		t.Fatalf("attempt should default to 1, got %d", got.Attempt)
	}
}

func TestSyncDispatcher_KeepsExplicitAttempt(t *testing.T) {
	exec := &captureExec{}
	d := NewSyncDispatcher(exec)

	if err := d.Dispatch(context.Background(), TransitionRequest{Attempt: 3}, QueueAITasks); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if exec.reqs[0].Attempt != 3 {
		t.Fatalf("explicit attempt overwritten: %d", exec.reqs[0].Attempt)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	if backoff(1) != 2*time.Second {
		t.Fatalf("backoff(1) = %v", backoff(1))
	}
	if backoff(2) != 4*time.Second {
		t.Fatalf("backoff(2) = %v", backoff(2))
	}
	if backoff(10) != 2*time.Minute {
		t.Fatalf("backoff(10) should cap at 2m, got %v", backoff(10))
	}
}
