package transport

import "context"

// Queue names. Async transitions are dispatched as messages onto one of
// these and executed by out-of-process workers.
const (
	QueueAssetTransitions   = "mv:asset_transitions"
	QueueVariantTransitions = "mv:variant_transitions"
	QueueAITasks            = "mv:ai_tasks"
)

// TransitionRequest asks a worker to fire one workflow transition on one
// subject. Requests are idempotent on the handler side: redelivery of an
// already-applied transition is tolerated.
type TransitionRequest struct {
	MessageID  string `json:"message_id"`
	Workflow   string `json:"workflow"`
	SubjectID  string `json:"subject_id"`
	Transition string `json:"transition"`
	// Attempt counts deliveries, starting at 1. Retriable failures
	// re-dispatch with Attempt+1 and backoff.
	Attempt int `json:"attempt"`
}

// Executor applies a transition request against the domain. Implemented by
// the lifecycle service; the transport never touches domain state itself.
type Executor interface {
	Execute(ctx context.Context, req TransitionRequest) error
}

// Dispatcher sends a transition request to a named queue. The sync
// implementation executes inline for low-latency and test paths.
type Dispatcher interface {
	Dispatch(ctx context.Context, req TransitionRequest, queue string) error
}
