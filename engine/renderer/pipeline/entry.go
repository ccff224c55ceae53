package pipeline

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
)

// compiler is shared by a manager and its entries: the backend pipelines are built with and, when
// compiles are asynchronous, the worker pool they run on.
type compiler struct {
	mu      sync.RWMutex
	backend backend.Backend
	// pool is nil for synchronous compiles.
	pool        worker.DynamicWorkerPool
	taskIDs     atomic.Int64
	diagnostics bool
}

func (c *compiler) current() backend.Backend {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backend
}

func (c *compiler) setBackend(b backend.Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend = b
}

// module creates a shader module, logging compile diagnostics first when enabled.
func (c *compiler) module(b backend.Backend, label, source string) (backend.ShaderModule, error) {
	if c.diagnostics {
		shader.LogDiagnostics(label, source, shader.Diagnose(source))
	}
	m, err := b.CreateShaderModule(label, source)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader module %s: %w", label, err)
	}
	return m, nil
}

// entryCore is the status machine shared by render and compute entries. Every compile is tagged
// with the generation it started in; flushes, releases and context loss bump the generation so a
// late result can tell it is stale.
type entryCore struct {
	mu sync.Mutex

	id       string
	label    string
	index    int
	compiler *compiler

	status     Status
	err        error
	generation uint64
	groups     []bind_group.BindGroup
	// refs counts the GetOrCreate calls not yet given back. Guarded by the manager's mutex.
	refs int
}

func (e *entryCore) ID() string {
	return e.id
}

func (e *entryCore) Label() string {
	return e.label
}

func (e *entryCore) Index() int {
	return e.index
}

func (e *entryCore) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *entryCore) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *entryCore) BindGroups() []bind_group.BindGroup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.groups)
}

// begin moves an uninitialized entry to compiling. done is true when the entry is already compiled.
// Callers hold mu.
func (e *entryCore) begin() (done bool, err error) {
	switch e.status {
	case StatusCompiled:
		return true, nil
	case StatusCompiling:
		return false, ErrCompileInProgress
	case StatusErrored:
		return false, fmt.Errorf("%w: %v", ErrPipelineErrored, e.err)
	}
	e.status = StatusCompiling
	return false, nil
}

// invalidate drops the compiled state and bumps the generation. Callers hold mu.
func (e *entryCore) invalidate() {
	e.generation++
	e.status = StatusUninitialized
	e.err = nil
}

// fail marks the entry errored without a compile. Callers hold mu.
func (e *entryCore) fail(err error) {
	e.status = StatusErrored
	e.err = err
	common.Logger().Error("pipeline assembly failed", "pipeline", e.label, "error", err)
}

// run executes build inline or on the worker pool and reports its outcome on the returned channel.
// commit installs a successful result; it runs under mu and only for the current generation.
func (e *entryCore) run(gen uint64, build func() (backend.Resource, error), commit func(backend.Resource)) <-chan error {
	result := make(chan error, 1)
	task := func() (any, error) {
		err := e.finish(gen, build, commit)
		result <- err
		return nil, err
	}
	if e.compiler.pool == nil {
		task()
		return result
	}
	e.compiler.pool.SubmitTask(worker.Task{
		ID:      int(e.compiler.taskIDs.Add(1)),
		Payload: e.label,
		Do:      task,
	})
	return result
}

func (e *entryCore) finish(gen uint64, build func() (backend.Resource, error), commit func(backend.Resource)) error {
	res, err := build()

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		if res != nil {
			res.Release()
		}
		common.Logger().Debug("discarding stale pipeline compile", "pipeline", e.label, "generation", gen)
		return ErrStaleCompile
	}
	if err != nil {
		e.status = StatusErrored
		e.err = err
		common.Logger().Error("pipeline build failed", "pipeline", e.label, "error", err)
		return err
	}
	commit(res)
	e.status = StatusCompiled
	common.Logger().Debug("pipeline compiled", "pipeline", e.label, "generation", gen)
	return nil
}

// layouts returns the bind group layouts in group index order. Callers hold mu.
func (e *entryCore) layouts() ([]backend.BindGroupLayout, error) {
	ordered := slices.Clone(e.groups)
	slices.SortStableFunc(ordered, func(a, b bind_group.BindGroup) int {
		return a.Index() - b.Index()
	})
	layouts := make([]backend.BindGroupLayout, len(ordered))
	for i, g := range ordered {
		if g.Index() != i {
			return nil, fmt.Errorf("%w: group %d at position %d", ErrBindGroupGap, g.Index(), i)
		}
		if g.Layout() == nil {
			return nil, fmt.Errorf("%w: group %d", ErrBindGroupsNotReady, g.Index())
		}
		layouts[i] = g.Layout()
	}
	return layouts, nil
}

// failed returns a channel already holding err.
func failed(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
