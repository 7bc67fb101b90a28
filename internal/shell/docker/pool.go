package docker

import (
	"sync"

	"github.com/flotilla-orch/flotilla/internal/core/environment"
)

// =============================================================================
// Backend Pool
// =============================================================================

// Pool hands out one Backend per ship, constructed lazily on first use
// and reused for the rest of the run. Safe for concurrent use.
type Pool struct {
	opts     BackendOptions
	mu       sync.Mutex
	backends map[string]Backend
}

// NewPool creates an empty pool.
func NewPool(opts BackendOptions) *Pool {
	return &Pool{
		opts:     opts,
		backends: make(map[string]Backend),
	}
}

// Get returns the ship's backend, dialing it if needed.
func (p *Pool) Get(ship *environment.Ship) (Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if backend, ok := p.backends[ship.Name]; ok {
		return backend, nil
	}

	backend, err := NewBackend(ship, p.opts)
	if err != nil {
		return nil, err
	}
	p.backends[ship.Name] = backend
	return backend, nil
}

// Close closes every backend in the pool. The first error wins; the
// remaining backends are still closed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for name, backend := range p.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.backends, name)
	}
	return firstErr
}
