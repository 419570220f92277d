// Package directory implements the LuxFire name service: components register
// a service name against a reachable endpoint, and peers resolve groups of
// names (e.g. every "Renderer.*") or look up a single name. Registrations
// live in memory only — a restarted directory recovers as components
// re-announce themselves, and the dispatcher recomputes its worker pool from
// scratch every tick.
package directory

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	endpoint   string
	registered time.Time
}

// Registry is the in-memory name table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register binds a name to an endpoint. Re-registering an existing name
// overwrites the stale entry, so a restarted component reclaims its name
// without operator help.
func (r *Registry) Register(name, endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{endpoint: endpoint, registered: time.Now()}
}

func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// ResolveGroup lists all registered names under "group." in sorted order.
// An unknown group is an empty list, not an error.
func (r *Registry) ResolveGroup(group string) []string {
	prefix := group + "."
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0)
	for name := range r.entries {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Lookup returns the endpoint for a name.
func (r *Registry) Lookup(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.endpoint, ok
}
