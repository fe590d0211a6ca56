package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/multipage/pkg/domain"
)

// Call carries the arguments of a custom function invocation.
type Call struct {
	// ID is the task id for task functions, or the element id for change callbacks.
	ID     string
	PageID string
	// State is a snapshot of the store taken just before the call.
	State map[string]any
	// Value is the new element value for change callbacks.
	Value any
}

// Function returns its store writes immediately.
type Function func(ctx context.Context, call Call) (map[string]any, error)

// Completion finishes a deferred invocation. Only the first call counts.
type Completion func(writes map[string]any, err error)

// DeferredFunction signals completion later through done, possibly from another goroutine.
type DeferredFunction func(ctx context.Context, call Call, done Completion)

// Registry manages the functions available to custom tasks, function
// validations and element change callbacks.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
	deferred  map[string]DeferredFunction
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[string]Function),
		deferred:  make(map[string]DeferredFunction),
	}
}

// Register adds a function to the registry.
// If a function with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.deferred, name)
	r.functions[name] = fn
}

// RegisterDeferred adds a callback-completion function to the registry.
func (r *Registry) RegisterDeferred(name string, fn DeferredFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.functions, name)
	r.deferred[name] = fn
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.functions[name]
	if !ok {
		_, ok = r.deferred[name]
	}
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions)+len(r.deferred))
	for n := range r.functions {
		names = append(names, n)
	}
	for n := range r.deferred {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke looks up a function by name and runs it to completion.
// Deferred functions are awaited until they call done or ctx ends.
func (r *Registry) Invoke(ctx context.Context, name string, call Call) (map[string]any, error) {
	r.mu.RLock()
	fn, ok := r.functions[name]
	dfn, dok := r.deferred[name]
	r.mu.RUnlock()

	switch {
	case ok:
		return fn(ctx, call)
	case dok:
		return awaitDeferred(ctx, dfn, call)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFunction, name)
}

type result struct {
	writes map[string]any
	err    error
}

func awaitDeferred(ctx context.Context, fn DeferredFunction, call Call) (map[string]any, error) {
	ch := make(chan result, 1)
	var once sync.Once
	done := func(writes map[string]any, err error) {
		once.Do(func() {
			ch <- result{writes: writes, err: err}
		})
	}

	fn(ctx, call, done)

	select {
	case res := <-ch:
		return res.writes, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
