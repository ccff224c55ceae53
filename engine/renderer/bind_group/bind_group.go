package bind_group

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/binding"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

var (
	// ErrNoBindings is returned when a bind group without bindings is created.
	ErrNoBindings = errors.New("bind group has no bindings")
	// ErrNotCreated is returned when an operation needs the GPU bind group before Create.
	ErrNotCreated = errors.New("bind group is not created")
	// ErrLayoutKindMismatch is returned when a clone keeping its source's layout holds bindings of
	// different resource kinds.
	ErrLayoutKindMismatch = errors.New("bindings do not match the kept layout")
	// ErrNotReady is returned when Create is called while a binding still waits on its resources.
	ErrNotReady = errors.New("bind group has bindings that are not ready")
)

// Declaration is a binding fragment placed at its group and binding slot.
type Declaration struct {
	// Group is the bind group index.
	Group int
	// Binding is the slot inside the group.
	Binding uint32
	// Owner is the binding that emitted the fragment.
	Owner binding.Binding

	binding.Fragment
}

// bindGroup is the unexported implementation of BindGroup.
type bindGroup struct {
	// id uniquely identifies the bind group in logs.
	id string
	// label is a debug label added for convenience.
	label string
	// index is the resource-set slot the group is bound at.
	index int
	// bindings are the resources of the group in slot order.
	bindings []binding.Binding

	// The following fields are GPU allocated resources. They are created by Create and dropped by
	// Destroy or LoseContext.

	// layout is the GPU bind group layout, or nil before Create.
	layout backend.BindGroupLayout
	// ownsLayout is false for clones that reuse their source's layout.
	ownsLayout bool
	// group is the GPU bind group, or nil before Create.
	group backend.BindGroup

	// needsPipelineFlush is set when the layout was rebuilt and pipelines using it must be flushed.
	needsPipelineFlush bool
}

// BindGroup aggregates buffer, texture and sampler bindings into one GPU resource set bound at a fixed
// index. It creates the bindings' GPU objects, the layout and the bind group, uploads changed binding
// data every frame and reports when a layout change requires pipelines to be flushed.
//
// Usage pattern:
//  1. Create a BindGroup with NewBindGroup and the bindings it holds
//  2. Each frame, the owning material calls Update, which creates the group once ShouldCreate holds
//  3. Pipelines read Layout and Declarations; passes bind Group at Index
//  4. When NeedsPipelineFlush reports true, dependent pipelines are flushed and the flag cleared
type BindGroup interface {
	// ID returns the unique identifier of the bind group.
	//
	// Returns:
	//   - string: the identifier
	ID() string

	// Label returns the debug label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Index returns the resource-set slot of the group.
	//
	// Returns:
	//   - int: the group index
	Index() int

	// SetIndex moves the group to another resource-set slot. Declarations follow the new index.
	//
	// Parameters:
	//   - index: the new group index
	SetIndex(index int)

	// Bindings returns the bindings in slot order.
	//
	// Returns:
	//   - []binding.Binding: the bindings
	Bindings() []binding.Binding

	// Declarations returns every binding fragment with its slot. Slots increase strictly across the
	// group, so a binding emitting two fragments occupies two consecutive slots.
	//
	// Returns:
	//   - []Declaration: the declarations in slot order
	Declarations() []Declaration

	// ShouldCreate reports whether the GPU bind group is missing and every binding is ready.
	//
	// Returns:
	//   - bool: true if Create should run
	ShouldCreate() bool

	// Create allocates missing binding resources, then the layout, then the bind group.
	//
	// Parameters:
	//   - b: the backend to allocate with
	//
	// Returns:
	//   - error: ErrNoBindings, ErrNotReady, or an allocation error
	Create(b backend.Backend) error

	// Update uploads changed binding data and applies resource swaps. A group that is not created yet is
	// created once it becomes ready.
	//
	// Parameters:
	//   - b: the backend to upload with
	//
	// Returns:
	//   - error: an upload or allocation error
	Update(b backend.Backend) error

	// ResetBindGroup rebuilds the bind group against the existing layout.
	//
	// Parameters:
	//   - b: the backend to allocate with
	//
	// Returns:
	//   - error: ErrNotCreated or an allocation error
	ResetBindGroup(b backend.Backend) error

	// ResetBindGroupLayout rebuilds the layout and the bind group and flags a pipeline flush.
	//
	// Parameters:
	//   - b: the backend to allocate with
	//
	// Returns:
	//   - error: an allocation error
	ResetBindGroupLayout(b backend.Backend) error

	// NeedsPipelineFlush reports whether pipelines using this group must be flushed.
	//
	// Returns:
	//   - bool: true after a layout rebuild or a context loss
	NeedsPipelineFlush() bool

	// ClearPipelineFlush acknowledges a flush request.
	ClearPipelineFlush()

	// Layout returns the GPU layout, or nil before Create.
	//
	// Returns:
	//   - backend.BindGroupLayout: the layout or nil
	Layout() backend.BindGroupLayout

	// Group returns the GPU bind group, or nil before Create.
	//
	// Returns:
	//   - backend.BindGroup: the bind group or nil
	Group() backend.BindGroup

	// Clone builds a second bind group at the same index sharing bindings' GPU objects. Passing nil
	// bindings shares this group's bindings. The clone must still be created.
	//
	// Parameters:
	//   - bindings: the bindings of the clone, in slot order
	//   - keepLayout: reuse this group's layout object; valid only if resource kinds are unchanged
	//
	// Returns:
	//   - BindGroup: the clone
	//   - error: ErrLayoutKindMismatch when keepLayout is set and the layout shapes differ
	Clone(bindings []binding.Binding, keepLayout bool) (BindGroup, error)

	// Destroy releases the bind group, the owned layout and every binding's GPU objects. Callers must
	// ensure no other group or material still uses these bindings.
	Destroy()

	// LoseContext drops every GPU handle after a device loss and flags a pipeline flush.
	LoseContext()

	// RestoreContext recreates binding resources, the layout and the bind group, in creation order.
	//
	// Parameters:
	//   - b: the backend of the new device
	//
	// Returns:
	//   - error: an allocation error
	RestoreContext(b backend.Backend) error
}

var _ BindGroup = &bindGroup{}

// NewBindGroup creates a bind group at the given index.
//
// Parameters:
//   - index: the resource-set slot
//   - options: functional options for label and bindings
//
// Returns:
//   - BindGroup: the new bind group
func NewBindGroup(index int, options ...BindGroupBuilderOption) BindGroup {
	g := &bindGroup{
		id:    uuid.NewString(),
		index: index,
	}
	for _, opt := range options {
		opt(g)
	}
	if g.label == "" {
		g.label = fmt.Sprintf("Bind Group %d", index)
	}
	return g
}

func (g *bindGroup) ID() string {
	return g.id
}

func (g *bindGroup) Label() string {
	return g.label
}

func (g *bindGroup) Index() int {
	return g.index
}

func (g *bindGroup) SetIndex(index int) {
	g.index = index
}

func (g *bindGroup) Bindings() []binding.Binding {
	return g.bindings
}

func (g *bindGroup) Declarations() []Declaration {
	var decls []Declaration
	slot := uint32(0)
	for _, b := range g.bindings {
		for _, f := range b.Fragments() {
			decls = append(decls, Declaration{Group: g.index, Binding: slot, Owner: b, Fragment: f})
			slot++
		}
	}
	return decls
}

func (g *bindGroup) ShouldCreate() bool {
	if g.group != nil || len(g.bindings) == 0 {
		return false
	}
	for _, b := range g.bindings {
		if !b.Ready() {
			return false
		}
	}
	return true
}

// entries builds the layout entries and resource entries in a single pass over the bindings.
func (g *bindGroup) entries() ([]wgpu.BindGroupLayoutEntry, []backend.BindGroupEntry) {
	var layoutEntries []wgpu.BindGroupLayoutEntry
	var resourceEntries []backend.BindGroupEntry
	slot := uint32(0)
	for _, b := range g.bindings {
		frags := b.Fragments()
		resources := b.Resources()
		for i, f := range frags {
			entry := f.Layout
			entry.Binding = slot
			layoutEntries = append(layoutEntries, entry)

			var res backend.BindGroupEntry
			if i < len(resources) {
				res = resources[i]
			}
			res.Binding = slot
			resourceEntries = append(resourceEntries, res)
			slot++
		}
	}
	return layoutEntries, resourceEntries
}

func (g *bindGroup) Create(b backend.Backend) error {
	if len(g.bindings) == 0 {
		return fmt.Errorf("%s: %w", g.label, ErrNoBindings)
	}
	for _, bd := range g.bindings {
		if !bd.Ready() {
			return fmt.Errorf("%s: %w: %s", g.label, ErrNotReady, bd.Name())
		}
	}
	for _, bd := range g.bindings {
		if bd.Created() {
			continue
		}
		if err := bd.Create(b); err != nil {
			return fmt.Errorf("%s: %w", g.label, err)
		}
	}

	layoutEntries, resourceEntries := g.entries()
	if g.layout == nil {
		layout, err := b.CreateBindGroupLayout(g.label+" Layout", layoutEntries)
		if err != nil {
			return fmt.Errorf("%s: %w", g.label, err)
		}
		g.layout = layout
		g.ownsLayout = true
	}

	group, err := b.CreateBindGroup(g.label, g.layout, resourceEntries)
	if err != nil {
		return fmt.Errorf("%s: %w", g.label, err)
	}
	if g.group != nil {
		g.group.Release()
	}
	g.group = group

	common.Logger().Debug("created bind group", "label", g.label, "id", g.id, "index", g.index, "entries", len(resourceEntries))
	return nil
}

func (g *bindGroup) Update(b backend.Backend) error {
	if g.group == nil {
		if !g.ShouldCreate() {
			return nil
		}
		return g.Create(b)
	}

	change := binding.ChangeNone
	var errs []error
	for _, bd := range g.bindings {
		c, err := bd.Update(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		change = max(change, c)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", g.label, err)
	}

	switch change {
	case binding.ChangeLayout:
		return g.ResetBindGroupLayout(b)
	case binding.ChangeResource:
		return g.ResetBindGroup(b)
	}
	return nil
}

func (g *bindGroup) ResetBindGroup(b backend.Backend) error {
	if g.layout == nil {
		return fmt.Errorf("%s: %w", g.label, ErrNotCreated)
	}
	_, resourceEntries := g.entries()
	group, err := b.CreateBindGroup(g.label, g.layout, resourceEntries)
	if err != nil {
		return fmt.Errorf("%s: %w", g.label, err)
	}
	if g.group != nil {
		g.group.Release()
	}
	g.group = group
	return nil
}

func (g *bindGroup) ResetBindGroupLayout(b backend.Backend) error {
	if g.group != nil {
		g.group.Release()
		g.group = nil
	}
	if g.layout != nil && g.ownsLayout {
		g.layout.Release()
	}
	g.layout = nil
	g.needsPipelineFlush = true

	common.Logger().Warn("bind group layout changed, dependent pipelines must be flushed", "label", g.label, "id", g.id)
	return g.Create(b)
}

func (g *bindGroup) NeedsPipelineFlush() bool {
	return g.needsPipelineFlush
}

func (g *bindGroup) ClearPipelineFlush() {
	g.needsPipelineFlush = false
}

func (g *bindGroup) Layout() backend.BindGroupLayout {
	return g.layout
}

func (g *bindGroup) Group() backend.BindGroup {
	return g.group
}

// layoutShape renders the layout entries with their slots for comparison.
func (g *bindGroup) layoutShape() string {
	entries, _ := g.entries()
	return fmt.Sprintf("%+v", entries)
}

func (g *bindGroup) Clone(bindings []binding.Binding, keepLayout bool) (BindGroup, error) {
	if bindings == nil {
		bindings = g.bindings
	}
	clone := &bindGroup{
		id:       uuid.NewString(),
		label:    g.label + " Clone",
		index:    g.index,
		bindings: bindings,
	}
	if keepLayout {
		if clone.layoutShape() != g.layoutShape() {
			return nil, fmt.Errorf("%s: %w", g.label, ErrLayoutKindMismatch)
		}
		clone.layout = g.layout
		clone.ownsLayout = false
	}
	return clone, nil
}

func (g *bindGroup) Destroy() {
	if g.group != nil {
		g.group.Release()
		g.group = nil
	}
	if g.layout != nil && g.ownsLayout {
		g.layout.Release()
	}
	g.layout = nil
	for _, b := range g.bindings {
		b.Release()
	}
	common.Logger().Debug("destroyed bind group", "label", g.label, "id", g.id)
}

func (g *bindGroup) LoseContext() {
	g.group = nil
	g.layout = nil
	for _, b := range g.bindings {
		b.LoseContext()
	}
	g.needsPipelineFlush = true
}

func (g *bindGroup) RestoreContext(b backend.Backend) error {
	return g.Create(b)
}
