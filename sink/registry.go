package sink

import (
	"context"
	"sync"
)

// Key identifies one partition owned by the task.
type Key struct {
	Topic     string
	Partition int32
}

// Registry owns every Context the task currently has open, keyed by
// partition, so a rebalance can close exactly the partitions being
// revoked.
type Registry struct {
	mu       sync.Mutex
	contexts map[Key]*Context
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[Key]*Context)}
}

// GetOrCreate returns the existing Context for key, or builds one with
// factory and stores it.
func (r *Registry) GetOrCreate(key Key, factory func() *Context) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contexts[key]; ok {
		return c
	}
	c := factory()
	r.contexts[key] = c
	return c
}

// Get returns the Context for key, if any.
func (r *Registry) Get(key Key) (*Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contexts[key]
	return c, ok
}

// Close closes and forgets the Context for key, if one exists.
func (r *Registry) Close(ctx context.Context, key Key) error {
	r.mu.Lock()
	c, ok := r.contexts[key]
	delete(r.contexts, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Close(ctx)
}

// CloseAll closes and forgets every Context the registry owns,
// returning the first error encountered.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	contexts := r.contexts
	r.contexts = make(map[Key]*Context)
	r.mu.Unlock()

	var firstErr error
	for _, c := range contexts {
		if err := c.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
