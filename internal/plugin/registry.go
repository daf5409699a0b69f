package plugin

import (
	"sort"
	"sync"
)

// capabilityKey identifies a capability within the registry.
type capabilityKey struct {
	kind CapabilityKind
	name string
}

// Registry holds every capability plugins have registered, along with an
// ownership map recording which plugin each entry currently belongs to.
//
// Registration is last-write-wins: a later registration under the same
// kind and name silently replaces the earlier entry and its owner. The
// replaced owner loses any claim to the key; revocation only removes
// entries whose current owner matches.
//
// State is in-memory only and rebuilt each process start by replaying
// plugin loads.
type Registry struct {
	mu     sync.RWMutex
	caps   map[capabilityKey]Capability
	owners map[capabilityKey]string
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		caps:   make(map[capabilityKey]Capability),
		owners: make(map[capabilityKey]string),
	}
}

// Register inserts or overwrites the capability under its kind and name
// and records owner for that key. Always succeeds.
func (r *Registry) Register(cap Capability, owner string) {
	key := capabilityKey{kind: cap.CapabilityKind(), name: cap.CapabilityName()}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[key] = cap
	r.owners[key] = owner
}

// Unregister removes the capability and its ownership entry if present.
// No-op if absent.
func (r *Registry) Unregister(kind CapabilityKind, name string) {
	key := capabilityKey{kind: kind, name: name}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caps, key)
	delete(r.owners, key)
}

// RevokeAll removes every capability currently owned by owner and returns
// how many entries were removed. Entries whose ownership was overwritten
// by another plugin are left untouched.
func (r *Registry) RevokeAll(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, o := range r.owners {
		if o == owner {
			delete(r.caps, key)
			delete(r.owners, key)
			removed++
		}
	}
	return removed
}

// Lookup returns the capability registered under kind and name.
func (r *Registry) Lookup(kind CapabilityKind, name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cap, ok := r.caps[capabilityKey{kind: kind, name: name}]
	return cap, ok
}

// Owner returns the plugin currently credited with the capability under
// kind and name.
func (r *Registry) Owner(kind CapabilityKind, name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[capabilityKey{kind: kind, name: name}]
	return owner, ok
}

// ListAll returns all capabilities of the given kind, sorted by name.
func (r *Registry) ListAll(kind CapabilityKind) []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Capability
	for key, cap := range r.caps {
		if key.kind == kind {
			out = append(out, cap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CapabilityName() < out[j].CapabilityName()
	})
	return out
}

// OwnedCapabilities partitions a plugin's registered capabilities by kind.
type OwnedCapabilities struct {
	Commands   []*Command
	Tools      []*Tool
	Themes     []*Theme
	Extensions []*Extension
}

// Total returns the number of capabilities across all kinds.
func (o OwnedCapabilities) Total() int {
	return len(o.Commands) + len(o.Tools) + len(o.Themes) + len(o.Extensions)
}

// CapabilitiesOf returns all capabilities currently owned by owner,
// partitioned by kind and sorted by name within each kind.
func (r *Registry) CapabilitiesOf(owner string) OwnedCapabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var owned OwnedCapabilities
	for key, o := range r.owners {
		if o != owner {
			continue
		}
		switch cap := r.caps[key].(type) {
		case *Command:
			owned.Commands = append(owned.Commands, cap)
		case *Tool:
			owned.Tools = append(owned.Tools, cap)
		case *Theme:
			owned.Themes = append(owned.Themes, cap)
		case *Extension:
			owned.Extensions = append(owned.Extensions, cap)
		}
	}

	sort.Slice(owned.Commands, func(i, j int) bool { return owned.Commands[i].Name < owned.Commands[j].Name })
	sort.Slice(owned.Tools, func(i, j int) bool { return owned.Tools[i].Name < owned.Tools[j].Name })
	sort.Slice(owned.Themes, func(i, j int) bool { return owned.Themes[i].Name < owned.Themes[j].Name })
	sort.Slice(owned.Extensions, func(i, j int) bool { return owned.Extensions[i].Name < owned.Extensions[j].Name })

	return owned
}
