package transport

import (
	"context"

	"github.com/google/uuid"
)

// SyncDispatcher executes transition requests inline within the caller's
// goroutine. Used for low-latency paths, the one-shot CLI, and tests.
type SyncDispatcher struct {
	exec Executor
}

func NewSyncDispatcher(exec Executor) *SyncDispatcher {
	return &SyncDispatcher{exec: exec}
}

func (d *SyncDispatcher) Dispatch(ctx context.Context, req TransitionRequest, _ string) error {
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}
	if req.Attempt == 0 {
		req.Attempt = 1
	}
	return d.exec.Execute(ctx, req)
}
