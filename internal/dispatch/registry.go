package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"localqueue/internal/queue"
)

// Handler consumes one work item. A returned error or a panic is logged; the
// item is deleted either way.
type Handler interface {
	Handle(ctx context.Context, item queue.WorkItem) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, item queue.WorkItem) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, item queue.WorkItem) error {
	return f(ctx, item)
}

// Registry maps work types to handlers. It is mutable until handed to a
// Dispatcher, which takes a snapshot.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds workType to h. Registering the same work type twice is an error.
func (r *Registry) Register(workType string, h Handler) error {
	workType = strings.TrimSpace(workType)
	if workType == "" {
		return fmt.Errorf("register handler: work type is required")
	}
	if h == nil {
		return fmt.Errorf("register handler %q: handler is nil", workType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[workType]; exists {
		return fmt.Errorf("register handler %q: already registered", workType)
	}
	r.handlers[workType] = h
	return nil
}

// RegisterFunc is Register for a plain function.
func (r *Registry) RegisterFunc(workType string, fn func(ctx context.Context, item queue.WorkItem) error) error {
	if fn == nil {
		return r.Register(workType, nil)
	}
	return r.Register(workType, HandlerFunc(fn))
}

// Lookup returns the handler for workType.
func (r *Registry) Lookup(workType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[workType]
	return h, ok
}

// WorkTypes lists registered work types in sorted order.
func (r *Registry) WorkTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) snapshot() map[string]Handler {
	if r == nil {
		return map[string]Handler{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Handler, len(r.handlers))
	for k, v := range r.handlers {
		out[k] = v
	}
	return out
}
