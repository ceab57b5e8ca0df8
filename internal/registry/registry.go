// Package registry holds the in-process index of resources managed by one
// orchestrator instance. It never talks to the remote API.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Resource is anything the registry can track. Both ManagedServer and
// ManagedVolume satisfy it.
type Resource interface {
	ID() string
	Zone() string
}

// attached is implemented by resources that hold a weak reference to
// another resource in a zone (volumes attached to servers). Registration
// rejects entries whose own zone disagrees with the attachment's zone.
type attached interface {
	AttachmentZone() (string, bool)
}

// Registry maintains two indices over the same resource set: by identifier
// (globally unique) and by zone (multi-valued). A resource appears in the
// zone index if and only if it appears in the identifier index.
//
// All methods are safe for concurrent use; callers that iterate and mutate
// across multiple calls must still serialize those sequences themselves.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]Resource
	byZone map[string]map[string]Resource
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byID:   make(map[string]Resource),
		byZone: make(map[string]map[string]Resource),
	}
}

// Register adds a resource to both indices. Re-registering an existing
// identifier replaces the entry rather than duplicating it. A volume whose
// zone differs from its attached server's zone is rejected.
func (r *Registry) Register(res Resource) error {
	if res.ID() == "" {
		return fmt.Errorf("refusing to register resource with empty identifier")
	}
	if a, ok := res.(attached); ok {
		if zone, has := a.AttachmentZone(); has && zone != res.Zone() {
			return fmt.Errorf("resource %s in zone %s is attached in zone %s",
				res.ID(), res.Zone(), zone)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byID[res.ID()]; ok {
		r.removeFromZoneLocked(prev)
	}
	r.byID[res.ID()] = res
	zone := r.byZone[res.Zone()]
	if zone == nil {
		zone = make(map[string]Resource)
		r.byZone[res.Zone()] = zone
	}
	zone[res.ID()] = res
	return nil
}

// Unregister evicts a resource from both indices. Unknown identifiers are
// a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	r.removeFromZoneLocked(res)
}

func (r *Registry) removeFromZoneLocked(res Resource) {
	zone, ok := r.byZone[res.Zone()]
	if !ok {
		return
	}
	delete(zone, res.ID())
	if len(zone) == 0 {
		delete(r.byZone, res.Zone())
	}
}

// FindByID returns the resource with the given identifier.
func (r *Registry) FindByID(id string) (Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byID[id]
	return res, ok
}

// FindByZone returns a snapshot of the resources in the given zone, sorted
// by identifier for stable iteration.
func (r *Registry) FindByZone(zone string) []Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Resource, 0, len(r.byZone[zone]))
	for _, res := range r.byZone[zone] {
		out = append(out, res)
	}
	sortByID(out)
	return out
}

// All returns a snapshot of every registered resource, sorted by
// identifier. Pollers iterate over this copy, so concurrent registration
// never mutates a set mid-pass.
func (r *Registry) All() []Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Resource, 0, len(r.byID))
	for _, res := range r.byID {
		out = append(out, res)
	}
	sortByID(out)
	return out
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Zones returns the zones that currently hold at least one resource.
func (r *Registry) Zones() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	zones := make([]string, 0, len(r.byZone))
	for z := range r.byZone {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones
}

func sortByID(rs []Resource) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].ID() < rs[j].ID() })
}
