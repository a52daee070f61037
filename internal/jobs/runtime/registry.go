package runtime

import (
	"fmt"
	"sync"
)

// Handler executes one job type. Run reports progress and terminal state
// through the Context; the returned error is a convenience for the worker
// to fail jobs whose handler never called Fail or Succeed.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if t == "" {
		return fmt.Errorf("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for job_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}
