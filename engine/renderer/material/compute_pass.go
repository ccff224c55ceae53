package material

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/google/uuid"
)

// computePass is the implementation of the ComputePass interface.
type computePass struct {
	id         string
	name       string
	code       string
	entryPoint string
	groups     []bind_group.BindGroup

	registry *Registry
	manager  pipeline.Manager
	entry    pipeline.ComputeEntry
}

// ComputePass dispatches one compute pipeline entry over its bind groups. Storage bindings declared
// with copy-back are read back after the dispatch by the caller through the binding.
type ComputePass interface {
	// ID retrieves the unique identifier of the compute pass.
	//
	// Returns:
	//   - string: the identifier
	ID() string

	// Name retrieves the compute pass name.
	//
	// Returns:
	//   - string: the name, defaulting to the identifier
	Name() string

	// BindGroups retrieves the bind groups in index order.
	//
	// Returns:
	//   - []bind_group.BindGroup: the groups
	BindGroups() []bind_group.BindGroup

	// Entry retrieves the resolved compute pipeline entry.
	//
	// Returns:
	//   - pipeline.ComputeEntry: the entry, or nil before Init
	Entry() pipeline.ComputeEntry

	// Init registers and creates the bind groups, resolves the compute entry and starts its compile.
	//
	// Parameters:
	//   - b: the backend to allocate with
	//   - m: the pipeline manager
	//   - registry: the bind group registry
	//
	// Returns:
	//   - error: an allocation or pipeline resolution error
	Init(b backend.Backend, m pipeline.Manager, registry *Registry) error

	// Update uploads changed binding data, flushes the entry on a layout change and compiles an
	// uninitialized entry.
	//
	// Parameters:
	//   - b: the backend to upload with
	//
	// Returns:
	//   - error: an upload or allocation error
	Update(b backend.Backend) error

	// Dispatch binds the pipeline and the bind groups and dispatches the given workgroup counts.
	//
	// Parameters:
	//   - pass: the compute pass
	//   - m: the pipeline manager guarding the current pipeline
	//   - x, y, z: the workgroup counts
	//
	// Returns:
	//   - bool: false if the pipeline or a bind group is not ready
	Dispatch(pass backend.ComputePass, m pipeline.Manager, x, y, z uint32) bool

	// DispatchInvocations dispatches enough workgroups along x to cover n invocations, using the
	// workgroup size declared by the shader.
	//
	// Parameters:
	//   - pass: the compute pass
	//   - m: the pipeline manager
	//   - n: the number of invocations
	//
	// Returns:
	//   - bool: false if the pipeline or a bind group is not ready
	DispatchInvocations(pass backend.ComputePass, m pipeline.Manager, n uint32) bool

	// Release gives back the pass's bind group references and its pipeline entry reference.
	Release()
}

var _ ComputePass = &computePass{}

// NewComputePass creates a compute pass for the given compute body. Bind groups are indexed in the
// order given.
//
// Parameters:
//   - code: the compute stage body
//   - options: functional options for the name, entry point and bind groups
//
// Returns:
//   - ComputePass: the compute pass
//   - error: ErrNoShader if code is empty
func NewComputePass(code string, options ...ComputePassBuilderOption) (ComputePass, error) {
	c := &computePass{id: uuid.NewString(), code: code}
	for _, opt := range options {
		opt(c)
	}
	c.name = common.Coalesce(c.name, c.id)
	if c.code == "" {
		return nil, fmt.Errorf("compute pass %s: %w", c.name, ErrNoShader)
	}
	for i, g := range c.groups {
		g.SetIndex(i)
	}
	return c, nil
}

func (c *computePass) ID() string {
	return c.id
}

func (c *computePass) Name() string {
	return c.name
}

func (c *computePass) BindGroups() []bind_group.BindGroup {
	return slices.Clone(c.groups)
}

func (c *computePass) Entry() pipeline.ComputeEntry {
	return c.entry
}

func (c *computePass) Init(b backend.Backend, pm pipeline.Manager, registry *Registry) error {
	c.registry = registry
	for _, g := range c.groups {
		registry.Acquire(g)
		if g.ShouldCreate() {
			if err := g.Create(b); err != nil {
				return fmt.Errorf("compute pass %s: %w", c.name, err)
			}
		}
	}
	entry, err := pm.GetOrCreateComputePipeline(pipeline.ComputeDescriptor{
		Label:      c.name,
		Code:       c.code,
		EntryPoint: c.entryPoint,
		BindGroups: c.groups,
	})
	if err != nil {
		return fmt.Errorf("compute pass %s: %w", c.name, err)
	}
	c.entry = entry
	c.manager = pm
	return compileWhenReady(entry.Status(), c.groups, entry.Compile)
}

func (c *computePass) Update(b backend.Backend) error {
	if c.entry == nil {
		return fmt.Errorf("compute pass %s: %w", c.name, ErrNotInitialized)
	}
	var errs []error
	for _, g := range c.groups {
		if err := g.Update(b); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("compute pass %s: %w", c.name, err)
	}

	if slices.ContainsFunc(c.groups, bind_group.BindGroup.NeedsPipelineFlush) {
		ch := c.entry.Flush(c.groups)
		for _, g := range c.groups {
			g.ClearPipelineFlush()
		}
		return syncResult(ch)
	}
	return compileWhenReady(c.entry.Status(), c.groups, c.entry.Compile)
}

func (c *computePass) Dispatch(pass backend.ComputePass, pm pipeline.Manager, x, y, z uint32) bool {
	if c.entry == nil {
		return false
	}
	for _, g := range c.groups {
		if g.Group() == nil {
			return false
		}
	}
	if !pm.SetCurrentComputePipeline(pass, c.entry) {
		return false
	}
	for _, g := range c.groups {
		pass.SetBindGroup(uint32(g.Index()), g.Group())
	}
	pass.DispatchWorkgroups(max(x, 1), max(y, 1), max(z, 1))
	return true
}

func (c *computePass) DispatchInvocations(pass backend.ComputePass, pm pipeline.Manager, n uint32) bool {
	if c.entry == nil {
		return false
	}
	size := max(c.entry.WorkgroupSize()[0], 1)
	return c.Dispatch(pass, pm, (n+size-1)/size, 1, 1)
}

func (c *computePass) Release() {
	if c.manager != nil {
		c.manager.ReleaseComputePipeline(c.entry)
		c.manager = nil
	}
	if c.registry == nil {
		return
	}
	for _, g := range c.groups {
		c.registry.Release(g)
	}
	c.registry = nil
}
