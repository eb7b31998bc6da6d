// internal/session/guard.go
package session

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// ResourceGuard releases acquired resources exactly once, newest first
type ResourceGuard struct {
	mu        sync.Mutex
	resources []guarded
	onRelease func(name string, err error)
}

type guarded struct {
	name    string
	release func() error
}

// NewResourceGuard creates a guard. onRelease, when set, observes every release attempt.
func NewResourceGuard(onRelease func(name string, err error)) *ResourceGuard {
	return &ResourceGuard{onRelease: onRelease}
}

// Acquire records a resource to be released later
func (g *ResourceGuard) Acquire(name string, release func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resources = append(g.resources, guarded{name: name, release: release})
}

// Held returns the number of resources not yet released
func (g *ResourceGuard) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.resources)
}

// Release releases every held resource in reverse acquisition order. Every
// release is attempted; failures are combined. A second call is a no-op.
func (g *ResourceGuard) Release() error {
	g.mu.Lock()
	resources := g.resources
	g.resources = nil
	g.mu.Unlock()

	var errs error
	for i := len(resources) - 1; i >= 0; i-- {
		r := resources[i]
		err := r.release()
		if g.onRelease != nil {
			g.onRelease(r.name, err)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", r.name, err))
		}
	}
	return errs
}
