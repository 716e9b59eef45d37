package ai

import (
	"context"
	"sort"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
)

// TaskInfo is a handler's self-description for introspection surfaces.
type TaskInfo struct {
	Task      string `json:"task"`
	Kind      string `json:"kind"`
	UsesImage bool   `json:"uses_image"`
	Output    string `json:"output"`
}

// Handler executes one enrichment task against an asset. Prior holds the
// sanitized latest result per completed task.
type Handler interface {
	Task() string
	Supports(asset *assets.Asset) bool
	Run(ctx context.Context, asset *assets.Asset, prior map[string]assets.Result) (assets.Result, error)
	Describe() TaskInfo
}

// Registry maps task names to handlers. Lookups for unknown names simply
// miss; the runner turns a miss into a skip entry.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Task()] = h
	}
	return r
}

func (r *Registry) Register(h Handler) {
	r.handlers[h.Task()] = h
}

func (r *Registry) Get(task string) (Handler, bool) {
	h, ok := r.handlers[task]
	return h, ok
}

func (r *Registry) Tasks() []string {
	out := make([]string, 0, len(r.handlers))
	for task := range r.handlers {
		out = append(out, task)
	}
	return out
}

// Describe returns every registered handler's metadata, sorted by task name.
func (r *Registry) Describe() []TaskInfo {
	out := make([]TaskInfo, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h.Describe())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}
