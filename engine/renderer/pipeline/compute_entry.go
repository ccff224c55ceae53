package pipeline

import (
	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
)

// computeEntry is the implementation of the ComputeEntry interface.
type computeEntry struct {
	entryCore

	body       string
	entryPoint string
	source     string
	workgroup  [3]uint32

	pipeline backend.ComputePipeline
}

// ComputeEntry is a cached compute pipeline keyed on its assembled source and entry point.
type ComputeEntry interface {
	ID() string
	Label() string
	Index() int
	Status() Status
	Err() error
	BindGroups() []bind_group.BindGroup

	// Source returns the assembled compute module source.
	//
	// Returns:
	//   - string: the source
	Source() string

	// EntryPoint returns the compute entry point name.
	//
	// Returns:
	//   - string: the entry point
	EntryPoint() string

	// WorkgroupSize returns the @workgroup_size declared by the body.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Pipeline returns the compiled pipeline object.
	//
	// Returns:
	//   - backend.ComputePipeline: the pipeline, nil unless StatusCompiled
	Pipeline() backend.ComputePipeline

	// Compile builds the pipeline object; see RenderEntry.Compile.
	Compile() <-chan error

	// Flush rebuilds the entry against a new bind group set; see RenderEntry.Flush.
	Flush(groups []bind_group.BindGroup) <-chan error

	Release()
	LoseContext()
}

var _ ComputeEntry = &computeEntry{}

func (e *computeEntry) assemble() error {
	heads, err := shader.Assemble(e.groups, "")
	if err != nil {
		return err
	}
	e.source = shader.Compose(heads.Compute, e.body)
	return nil
}

func (e *computeEntry) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

func (e *computeEntry) EntryPoint() string {
	return e.entryPoint
}

func (e *computeEntry) WorkgroupSize() [3]uint32 {
	return e.workgroup
}

func (e *computeEntry) Pipeline() backend.ComputePipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline
}

func (e *computeEntry) Compile() <-chan error {
	e.mu.Lock()
	done, err := e.begin()
	if done || err != nil {
		e.mu.Unlock()
		return failed(err)
	}
	layouts, err := e.layouts()
	if err != nil {
		e.status = StatusUninitialized
		e.mu.Unlock()
		return failed(err)
	}
	b := e.compiler.current()
	gen := e.generation
	source := e.source
	e.mu.Unlock()

	build := func() (backend.Resource, error) {
		m, err := e.compiler.module(b, e.label+" Compute", source)
		if err != nil {
			return nil, err
		}
		defer m.Release()
		p, err := b.CreateComputePipeline(backend.ComputePipelineDescriptor{
			Label:   e.label + " Compute Pipeline",
			Layouts: layouts,
			Compute: backend.ProgrammableStage{Module: m, EntryPoint: e.entryPoint},
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return e.run(gen, build, func(res backend.Resource) {
		e.pipeline = res.(backend.ComputePipeline)
	})
}

func (e *computeEntry) Flush(groups []bind_group.BindGroup) <-chan error {
	e.mu.Lock()
	common.Logger().Warn("flushing compute pipeline; a bind group layout changed under it and the full compile runs again",
		"pipeline", e.label, "generation", e.generation+1)
	e.invalidate()
	if e.pipeline != nil {
		e.pipeline.Release()
		e.pipeline = nil
	}
	e.groups = groups
	if err := e.assemble(); err != nil {
		e.fail(err)
		e.mu.Unlock()
		return failed(err)
	}
	e.mu.Unlock()
	return e.Compile()
}

func (e *computeEntry) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidate()
	if e.pipeline != nil {
		e.pipeline.Release()
		e.pipeline = nil
	}
}

func (e *computeEntry) LoseContext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidate()
	e.pipeline = nil
}
