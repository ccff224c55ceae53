package material

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
)

type registryEntry struct {
	group bind_group.BindGroup
	refs  int
}

// Registry counts the materials and compute passes referencing each bind group. A group is destroyed
// when its last reference is released, so a camera group shared by every material outlives any one
// of them.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	order   []string
}

// NewRegistry returns an empty bind group registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Acquire takes one reference to the group.
//
// Parameters:
//   - g: the bind group
//
// Returns:
//   - int: the reference count after the call
func (r *Registry) Acquire(g bind_group.BindGroup) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[g.ID()]
	if !ok {
		e = &registryEntry{group: g}
		r.entries[g.ID()] = e
		r.order = append(r.order, g.ID())
	}
	e.refs++
	return e.refs
}

// Release gives back one reference and destroys the group on the last one.
//
// Parameters:
//   - g: the bind group
//
// Returns:
//   - bool: true if the group was destroyed
func (r *Registry) Release(g bind_group.BindGroup) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[g.ID()]
	if !ok {
		return false
	}
	e.refs--
	if e.refs > 0 {
		return false
	}
	e.group.Destroy()
	delete(r.entries, g.ID())
	for i, id := range r.order {
		if id == g.ID() {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Refs returns the reference count of a group, zero if it is not registered.
func (r *Registry) Refs(g bind_group.BindGroup) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[g.ID()]; ok {
		return e.refs
	}
	return 0
}

// Groups returns the registered groups in registration order.
func (r *Registry) Groups() []bind_group.BindGroup {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bind_group.BindGroup, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].group)
	}
	return out
}

// LoseContext drops the GPU handles of every registered group.
func (r *Registry) LoseContext() {
	for _, g := range r.Groups() {
		g.LoseContext()
	}
}

// RestoreContext recreates every registered group whose bindings are ready. Groups still waiting on
// a binding are created later by their owner's Update.
//
// Parameters:
//   - b: the backend of the new device
//
// Returns:
//   - error: the first allocation error
func (r *Registry) RestoreContext(b backend.Backend) error {
	for _, g := range r.Groups() {
		if !g.ShouldCreate() {
			common.Logger().Debug("bind group not ready after restore", "label", g.Label())
			continue
		}
		if err := g.RestoreContext(b); err != nil {
			return err
		}
	}
	return nil
}

// ClearPipelineFlush acknowledges the flush requests of every registered group. Restoring a context
// recompiles every pipeline already, so the flags raised by LoseContext are stale afterwards.
func (r *Registry) ClearPipelineFlush() {
	for _, g := range r.Groups() {
		g.ClearPipelineFlush()
	}
}
