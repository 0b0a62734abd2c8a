package chain

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a tagged-map dispatch over chain adapters: each chain has
// identical operations but a distinct signer, endpoint, and contract
// address, so adapters are looked up by chain_tag rather than modeled
// through inheritance.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// Register adds or replaces the gateway for its own chain tag.
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Tag()] = g
}

// Get returns the gateway registered for tag.
func (r *Registry) Get(tag string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[tag]
	if !ok {
		return nil, fmt.Errorf("%w: no gateway registered for chain %q", ErrNotFound, tag)
	}
	return g, nil
}

// Tags returns the sorted list of registered chain tags.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.gateways))
	for tag := range r.gateways {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
