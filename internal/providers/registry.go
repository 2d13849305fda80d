package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider codes to adapters. Registration happens at
// wiring time; lookups are concurrent-safe.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds an adapter to a provider code, replacing any previous
// binding for the same code.
func (r *Registry) Register(code string, adapter Adapter) {
	if code == "" || adapter == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[code] = adapter
}

// Lookup resolves the adapter for a provider code. An unknown code is a
// configuration error, not a transient one.
func (r *Registry) Lookup(code string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("providers: unsupported provider code %q (registered: %v)", code, r.codesLocked())
	}
	return adapter, nil
}

func (r *Registry) codesLocked() []string {
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
