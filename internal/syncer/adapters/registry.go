package adapters

import (
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	syncerdomain "github.com/snowdenHM/bill/internal/syncer/domain"
)

// Registry indexes sync adapters by backend.
type Registry struct {
	adapters map[billdomain.Backend]syncerdomain.Adapter
}

func NewRegistry(adapters ...syncerdomain.Adapter) *Registry {
	m := make(map[billdomain.Backend]syncerdomain.Adapter, len(adapters))
	for _, adapter := range adapters {
		m[adapter.Backend()] = adapter
	}
	return &Registry{adapters: m}
}

func (r *Registry) Adapter(backend billdomain.Backend) (syncerdomain.Adapter, bool) {
	if r == nil {
		return nil, false
	}
	adapter, ok := r.adapters[backend]
	return adapter, ok
}
