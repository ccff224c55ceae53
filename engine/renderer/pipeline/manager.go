package pipeline

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/geometry"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// RenderDescriptor describes a render pipeline request.
type RenderDescriptor struct {
	Label string
	// VertexCode and FragmentCode are the stage bodies. Equal bodies compile to one shared module.
	VertexCode   string
	FragmentCode string
	// VertexEntry and FragmentEntry default to the first @vertex and @fragment functions.
	VertexEntry   string
	FragmentEntry string
	Geometry      geometry.Geometry
	// BindGroups are the groups the pipeline layout is built from, shared groups included.
	BindGroups []bind_group.BindGroup
	State      RenderState
}

// ComputeDescriptor describes a compute pipeline request.
type ComputeDescriptor struct {
	Label string
	Code  string
	// EntryPoint defaults to the first @compute function.
	EntryPoint string
	BindGroups []bind_group.BindGroup
}

// manager is the implementation of the Manager interface.
type manager struct {
	mu       sync.Mutex
	compiler *compiler
	chunks   *shader.Chunks

	// asyncWorkers is the worker pool size; zero compiles synchronously.
	asyncWorkers int
	// targetFormat and sampleCount fill render states that leave them unset.
	targetFormat wgpu.TextureFormat
	sampleCount  uint32

	render  []*renderEntry
	compute []*computeEntry

	// currentRender and currentCompute are the indices last bound in the running pass, -1 for none.
	currentRender  int
	currentCompute int
}

// Manager caches pipeline entries by linear scan over their assembled sources and render state,
// and guards against rebinding the pipeline already bound in a pass.
type Manager interface {
	// GetOrCreateRenderPipeline returns the entry whose assembled sources, entry points and render
	// state match the descriptor, registering a new uninitialized entry when none does.
	//
	// Parameters:
	//   - desc: the pipeline request
	//
	// Returns:
	//   - RenderEntry: the cached or new entry
	//   - error: ErrNoGeometry, ErrNoEntryPoint, shader.ErrDeclarationConflict, or a chunk expansion
	//     error
	GetOrCreateRenderPipeline(desc RenderDescriptor) (RenderEntry, error)

	// GetOrCreateComputePipeline is GetOrCreateRenderPipeline for compute, keyed on the assembled
	// source and entry point only.
	//
	// Parameters:
	//   - desc: the pipeline request
	//
	// Returns:
	//   - ComputeEntry: the cached or new entry
	//   - error: ErrNoEntryPoint, shader.ErrDeclarationConflict, or a chunk expansion error
	GetOrCreateComputePipeline(desc ComputeDescriptor) (ComputeEntry, error)

	// ReleaseRenderPipeline gives back one reference taken by GetOrCreateRenderPipeline. When the last
	// reference goes the entry's pipeline object is released, the entry leaves the cache and the
	// remaining entries are re-indexed.
	//
	// Parameters:
	//   - e: the entry to give back; entries the manager does not hold are ignored
	ReleaseRenderPipeline(e RenderEntry)

	// ReleaseComputePipeline is ReleaseRenderPipeline for compute entries.
	//
	// Parameters:
	//   - e: the entry to give back
	ReleaseComputePipeline(e ComputeEntry)

	// RenderEntries returns every registered render entry in index order.
	//
	// Returns:
	//   - []RenderEntry: the entries
	RenderEntries() []RenderEntry

	// ComputeEntries returns every registered compute entry in index order.
	//
	// Returns:
	//   - []ComputeEntry: the entries
	ComputeEntries() []ComputeEntry

	// SetCurrentRenderPipeline binds the entry's pipeline unless it is the one last bound in this
	// pass or it is not compiled.
	//
	// Parameters:
	//   - pass: the render pass
	//   - e: the entry to bind
	//
	// Returns:
	//   - bool: true if the entry is compiled and bound, whether by this call or an earlier one
	SetCurrentRenderPipeline(pass backend.RenderPass, e RenderEntry) bool

	// SetCurrentComputePipeline is SetCurrentRenderPipeline for compute passes.
	//
	// Parameters:
	//   - pass: the compute pass
	//   - e: the entry to bind
	//
	// Returns:
	//   - bool: true if the entry is compiled and bound
	SetCurrentComputePipeline(pass backend.ComputePass, e ComputeEntry) bool

	// ResetCurrentPipeline forgets the bound pipelines; call it at the start of every pass.
	ResetCurrentPipeline()

	// LoseContext drops every pipeline object and marks every entry uninitialized.
	LoseContext()

	// RestoreContext switches to a new backend and recompiles every entry.
	//
	// Parameters:
	//   - b: the backend after restore
	//
	// Returns:
	//   - error: the first synchronous compile error
	RestoreContext(b backend.Backend) error

	// Close releases every pipeline object and stops the compile pool.
	Close()
}

var _ Manager = &manager{}

// NewManager creates a pipeline manager building on the given backend. It panics if b is nil.
//
// Parameters:
//   - b: the backend pipelines are built with
//   - options: functional options for async compiles, defaults and chunks
//
// Returns:
//   - Manager: the manager
func NewManager(b backend.Backend, options ...ManagerBuilderOption) Manager {
	if b == nil {
		panic("pipeline: NewManager requires a backend")
	}
	m := &manager{
		compiler:       &compiler{backend: b, diagnostics: true},
		targetFormat:   wgpu.TextureFormatBGRA8UnormSrgb,
		sampleCount:    1,
		currentRender:  -1,
		currentCompute: -1,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.asyncWorkers > 0 {
		m.compiler.pool = worker.NewDynamicWorkerPool(m.asyncWorkers, 64, time.Second)
	}
	return m
}

func (m *manager) expand(code string) (string, error) {
	if m.chunks == nil {
		return code, nil
	}
	return m.chunks.Expand(code)
}

func (m *manager) GetOrCreateRenderPipeline(desc RenderDescriptor) (RenderEntry, error) {
	if desc.Geometry == nil {
		return nil, fmt.Errorf("render pipeline %s: %w", desc.Label, ErrNoGeometry)
	}
	vertexBody, err := m.expand(desc.VertexCode)
	if err != nil {
		return nil, fmt.Errorf("vertex stage of %s: %w", desc.Label, err)
	}
	fragmentBody, err := m.expand(desc.FragmentCode)
	if err != nil {
		return nil, fmt.Errorf("fragment stage of %s: %w", desc.Label, err)
	}
	vertexEntry := common.Coalesce(desc.VertexEntry, shader.EntryPoint(vertexBody, shader.StageVertex))
	fragmentEntry := common.Coalesce(desc.FragmentEntry, shader.EntryPoint(fragmentBody, shader.StageFragment))
	if vertexEntry == "" || fragmentEntry == "" {
		return nil, fmt.Errorf("render pipeline %s: %w", desc.Label, ErrNoEntryPoint)
	}

	state := desc.State
	if state == (RenderState{}) {
		state = NewRenderState()
	}
	state.TargetFormat = common.Coalesce(state.TargetFormat, m.targetFormat)
	state.SampleCount = common.Coalesce(state.SampleCount, m.sampleCount)

	e := &renderEntry{
		entryCore: entryCore{
			compiler: m.compiler,
			groups:   slices.Clone(desc.BindGroups),
		},
		geometry:      desc.Geometry,
		state:         state,
		vertexBody:    vertexBody,
		fragmentBody:  fragmentBody,
		vertexEntry:   vertexEntry,
		fragmentEntry: fragmentEntry,
	}
	if err := e.assemble(); err != nil {
		return nil, fmt.Errorf("render pipeline %s: %w", desc.Label, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.render {
		if existing.matches(e) {
			existing.refs++
			return existing, nil
		}
	}
	e.refs = 1
	e.id = uuid.NewString()
	e.label = common.Coalesce(desc.Label, e.id)
	e.index = len(m.render)
	m.render = append(m.render, e)
	common.Logger().Debug("registered render pipeline", "pipeline", e.label, "index", e.index)
	return e, nil
}

// matches compares sources, entry points and state with a candidate entry.
func (e *renderEntry) matches(o *renderEntry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vertexSource == o.vertexSource &&
		e.fragmentSource == o.fragmentSource &&
		e.vertexEntry == o.vertexEntry &&
		e.fragmentEntry == o.fragmentEntry &&
		e.state.Equal(o.state)
}

func (m *manager) GetOrCreateComputePipeline(desc ComputeDescriptor) (ComputeEntry, error) {
	body, err := m.expand(desc.Code)
	if err != nil {
		return nil, fmt.Errorf("compute stage of %s: %w", desc.Label, err)
	}
	entryPoint := common.Coalesce(desc.EntryPoint, shader.EntryPoint(body, shader.StageCompute))
	if entryPoint == "" {
		return nil, fmt.Errorf("compute pipeline %s: %w", desc.Label, ErrNoEntryPoint)
	}

	e := &computeEntry{
		entryCore: entryCore{
			compiler: m.compiler,
			groups:   slices.Clone(desc.BindGroups),
		},
		body:       body,
		entryPoint: entryPoint,
		workgroup:  shader.WorkgroupSize(body),
	}
	if err := e.assemble(); err != nil {
		return nil, fmt.Errorf("compute pipeline %s: %w", desc.Label, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.compute {
		if existing.Source() == e.source && existing.entryPoint == e.entryPoint {
			existing.refs++
			return existing, nil
		}
	}
	e.refs = 1
	e.id = uuid.NewString()
	e.label = common.Coalesce(desc.Label, e.id)
	e.index = len(m.compute)
	m.compute = append(m.compute, e)
	common.Logger().Debug("registered compute pipeline", "pipeline", e.label, "index", e.index)
	return e, nil
}

func (m *manager) ReleaseRenderPipeline(e RenderEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.render, func(r *renderEntry) bool { return RenderEntry(r) == e })
	if i < 0 {
		return
	}
	re := m.render[i]
	if re.refs--; re.refs > 0 {
		return
	}
	re.Release()
	m.render = slices.Delete(m.render, i, i+1)
	for j, r := range m.render {
		r.index = j
	}
	m.currentRender = -1
	common.Logger().Debug("dropped render pipeline", "pipeline", re.label, "entries", len(m.render))
}

func (m *manager) ReleaseComputePipeline(e ComputeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.compute, func(c *computeEntry) bool { return ComputeEntry(c) == e })
	if i < 0 {
		return
	}
	ce := m.compute[i]
	if ce.refs--; ce.refs > 0 {
		return
	}
	ce.Release()
	m.compute = slices.Delete(m.compute, i, i+1)
	for j, c := range m.compute {
		c.index = j
	}
	m.currentCompute = -1
	common.Logger().Debug("dropped compute pipeline", "pipeline", ce.label, "entries", len(m.compute))
}

func (m *manager) RenderEntries() []RenderEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RenderEntry, len(m.render))
	for i, e := range m.render {
		out[i] = e
	}
	return out
}

func (m *manager) ComputeEntries() []ComputeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ComputeEntry, len(m.compute))
	for i, e := range m.compute {
		out[i] = e
	}
	return out
}

func (m *manager) SetCurrentRenderPipeline(pass backend.RenderPass, e RenderEntry) bool {
	p := e.Pipeline()
	if p == nil {
		return false
	}
	if e.Index() == m.currentRender {
		return true
	}
	pass.SetPipeline(p)
	m.currentRender = e.Index()
	return true
}

func (m *manager) SetCurrentComputePipeline(pass backend.ComputePass, e ComputeEntry) bool {
	p := e.Pipeline()
	if p == nil {
		return false
	}
	if e.Index() == m.currentCompute {
		return true
	}
	pass.SetPipeline(p)
	m.currentCompute = e.Index()
	return true
}

func (m *manager) ResetCurrentPipeline() {
	m.currentRender = -1
	m.currentCompute = -1
}

func (m *manager) LoseContext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.render {
		e.LoseContext()
	}
	for _, e := range m.compute {
		e.LoseContext()
	}
	m.currentRender, m.currentCompute = -1, -1
}

func (m *manager) RestoreContext(b backend.Backend) error {
	m.compiler.setBackend(b)

	m.mu.Lock()
	results := make([]<-chan error, 0, len(m.render)+len(m.compute))
	for _, e := range m.render {
		results = append(results, e.Compile())
	}
	for _, e := range m.compute {
		results = append(results, e.Compile())
	}
	m.mu.Unlock()

	if m.compiler.pool != nil {
		return nil
	}
	for _, ch := range results {
		if err := <-ch; err != nil {
			return err
		}
	}
	return nil
}

func (m *manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.render {
		e.Release()
	}
	for _, e := range m.compute {
		e.Release()
	}
	if m.compiler.pool != nil {
		m.compiler.pool.Stop()
	}
}
