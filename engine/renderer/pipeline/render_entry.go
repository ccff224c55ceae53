package pipeline

import (
	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/geometry"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderEntry is the implementation of the RenderEntry interface.
type renderEntry struct {
	entryCore

	geometry geometry.Geometry
	state    RenderState

	// vertexBody and fragmentBody are the material-supplied stage sources after chunk expansion.
	vertexBody, fragmentBody   string
	vertexEntry, fragmentEntry string

	// vertexSource and fragmentSource are the assembled module sources; equal when shared.
	vertexSource, fragmentSource string
	// shared is true when both stages come from one body and compile to one module.
	shared bool

	pipeline backend.RenderPipeline
}

// RenderEntry is a cached render pipeline: the assembled stage sources, the fixed-function state
// and the compiled pipeline object. An entry keeps its identity across flushes; only the pipeline
// object inside it is replaced.
type RenderEntry interface {
	// ID returns the unique identifier of the entry.
	//
	// Returns:
	//   - string: the identifier
	ID() string

	// Label returns the debug label of the entry.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Index returns the slot of the entry in its manager, used by the current-pipeline guard.
	//
	// Returns:
	//   - int: the index
	Index() int

	// Status returns the compile state.
	//
	// Returns:
	//   - Status: the current status
	Status() Status

	// Err returns the build error of an errored entry.
	//
	// Returns:
	//   - error: the stored error, nil unless StatusErrored
	Err() error

	// BindGroups returns the bind groups the pipeline layout was built from.
	//
	// Returns:
	//   - []bind_group.BindGroup: a copy of the group list
	BindGroups() []bind_group.BindGroup

	// VertexSource returns the assembled vertex module source.
	//
	// Returns:
	//   - string: the source
	VertexSource() string

	// FragmentSource returns the assembled fragment module source.
	//
	// Returns:
	//   - string: the source
	FragmentSource() string

	// EntryPoints returns the vertex and fragment entry point names.
	//
	// Returns:
	//   - string: the vertex entry point
	//   - string: the fragment entry point
	EntryPoints() (string, string)

	// Shared reports whether both stages compile to one module.
	//
	// Returns:
	//   - bool: true for a shared module
	Shared() bool

	// State returns the fixed-function state.
	//
	// Returns:
	//   - RenderState: the state
	State() RenderState

	// Pipeline returns the compiled pipeline object.
	//
	// Returns:
	//   - backend.RenderPipeline: the pipeline, nil unless StatusCompiled
	Pipeline() backend.RenderPipeline

	// Compile builds the pipeline object, inline or on the manager's worker pool. A compiled entry
	// returns at once; a compiling or errored one is refused.
	//
	// Returns:
	//   - <-chan error: receives nil on success, ErrCompileInProgress, ErrPipelineErrored,
	//     ErrStaleCompile or the build error
	Compile() <-chan error

	// Flush rebuilds the entry against a new bind group set: the sources are re-assembled, the old
	// pipeline object is released and a compile starts. Any compile still in flight reports
	// ErrStaleCompile.
	//
	// Parameters:
	//   - groups: the new bind groups in any order
	//
	// Returns:
	//   - <-chan error: the outcome of the new compile, or shader.ErrDeclarationConflict when the
	//     new groups cannot be assembled; the entry is then errored until the next flush
	Flush(groups []bind_group.BindGroup) <-chan error

	// Release frees the pipeline object and resets the entry to uninitialized.
	Release()

	// LoseContext drops the pipeline object without releasing it.
	LoseContext()
}

var _ RenderEntry = &renderEntry{}

// assemble regenerates the stage sources from the current bind groups. Callers hold mu.
func (e *renderEntry) assemble() error {
	heads, err := shader.Assemble(e.groups, e.geometry.AttributeText())
	if err != nil {
		return err
	}
	e.shared = e.vertexBody == e.fragmentBody
	if e.shared {
		src := shader.Compose(heads.Full, e.vertexBody)
		e.vertexSource, e.fragmentSource = src, src
		return nil
	}
	e.vertexSource = shader.Compose(heads.Vertex, e.vertexBody)
	e.fragmentSource = shader.Compose(heads.Fragment, e.fragmentBody)
	return nil
}

func (e *renderEntry) VertexSource() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vertexSource
}

func (e *renderEntry) FragmentSource() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fragmentSource
}

func (e *renderEntry) EntryPoints() (string, string) {
	return e.vertexEntry, e.fragmentEntry
}

func (e *renderEntry) Shared() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shared
}

func (e *renderEntry) State() RenderState {
	return e.state
}

func (e *renderEntry) Pipeline() backend.RenderPipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline
}

func (e *renderEntry) Compile() <-chan error {
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
	desc := backend.RenderPipelineDescriptor{
		Label:         e.label + " Render Pipeline",
		Layouts:       layouts,
		VertexBuffers: e.geometry.Layouts(),
		Targets:       []wgpu.ColorTargetState{e.state.target()},
		Primitive:     e.state.primitive(),
		DepthStencil:  e.state.depthStencil(),
		Multisample:   e.state.multisample(),
	}
	vertexSource, fragmentSource, shared := e.vertexSource, e.fragmentSource, e.shared
	e.mu.Unlock()

	build := func() (backend.Resource, error) {
		vs, err := e.compiler.module(b, e.label+" Vertex", vertexSource)
		if err != nil {
			return nil, err
		}
		defer vs.Release()
		fs := vs
		if !shared {
			if fs, err = e.compiler.module(b, e.label+" Fragment", fragmentSource); err != nil {
				return nil, err
			}
			defer fs.Release()
		}

		desc.Vertex = backend.ProgrammableStage{Module: vs, EntryPoint: e.vertexEntry}
		desc.Fragment = &backend.ProgrammableStage{Module: fs, EntryPoint: e.fragmentEntry}
		p, err := b.CreateRenderPipeline(desc)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return e.run(gen, build, func(res backend.Resource) {
		e.pipeline = res.(backend.RenderPipeline)
	})
}

func (e *renderEntry) Flush(groups []bind_group.BindGroup) <-chan error {
	e.mu.Lock()
	common.Logger().Warn("flushing render pipeline; a bind group layout changed under it and the full compile runs again",
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

func (e *renderEntry) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidate()
	if e.pipeline != nil {
		e.pipeline.Release()
		e.pipeline = nil
	}
}

func (e *renderEntry) LoseContext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidate()
	e.pipeline = nil
}
