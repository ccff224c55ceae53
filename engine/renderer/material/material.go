// Package material ties geometry, bind groups and shader bodies to pipeline entries. Materials and
// compute passes own the per-frame update of their bind groups, flush their pipeline entry when a
// group's layout changes and issue the draw or dispatch.
package material

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/geometry"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/google/uuid"
)

var (
	// ErrNotInitialized is returned when a material is used before Init.
	ErrNotInitialized = errors.New("material not initialized")
	// ErrNoShader is returned when a material has neither shader code nor shader files.
	ErrNoShader = errors.New("material has no shader code")
)

// material is the implementation of the Material interface.
type material struct {
	id   string
	name string

	vertexCode    string
	fragmentCode  string
	vertexEntry   string
	fragmentEntry string
	vertexPath    string
	fragmentPath  string

	geometry geometry.Geometry
	shared   []bind_group.BindGroup
	own      []bind_group.BindGroup
	state    pipeline.RenderState

	registry *Registry
	manager  pipeline.Manager
	entry    pipeline.RenderEntry
	// reload is set from the watcher goroutine and consumed by Update.
	reload atomic.Bool
}

// Material draws one geometry with one render pipeline entry and the bind groups feeding it.
//
// Bind groups passed with WithSharedBindGroups (a camera, a light set) come first; the material's own
// groups are re-indexed to follow them. Shared groups are updated by their owner, usually the
// renderer, while Update covers the material's own groups and flushes the pipeline entry whenever any
// group in the list reports a layout change.
type Material interface {
	// ID retrieves the unique identifier of the material.
	//
	// Returns:
	//   - string: the identifier
	ID() string

	// Name retrieves the material name.
	//
	// Returns:
	//   - string: the name, defaulting to the identifier
	Name() string

	// Geometry retrieves the geometry drawn by the material.
	//
	// Returns:
	//   - geometry.Geometry: the geometry
	Geometry() geometry.Geometry

	// BindGroups retrieves every bind group of the material in index order, shared groups first.
	//
	// Returns:
	//   - []bind_group.BindGroup: the groups
	BindGroups() []bind_group.BindGroup

	// Entry retrieves the resolved pipeline entry.
	//
	// Returns:
	//   - pipeline.RenderEntry: the entry, or nil before Init
	Entry() pipeline.RenderEntry

	// ShaderFiles retrieves the watched shader file paths.
	//
	// Returns:
	//   - string: the vertex body path, empty when code was given inline
	//   - string: the fragment body path, empty when code was given inline
	ShaderFiles() (string, string)

	// Init uploads the geometry, registers and creates the bind groups that are ready, resolves the
	// pipeline entry through the manager and starts its compile once every layout exists.
	//
	// Parameters:
	//   - b: the backend to allocate with
	//   - m: the pipeline manager
	//   - registry: the bind group registry shared with the other materials
	//
	// Returns:
	//   - error: a shader file, allocation or pipeline resolution error
	Init(b backend.Backend, m pipeline.Manager, registry *Registry) error

	// Update runs once per frame: it applies a pending shader reload, updates the material's own bind
	// groups, flushes the pipeline entry if any group changed layout and compiles an uninitialized
	// entry once its layouts exist.
	//
	// Parameters:
	//   - b: the backend to upload with
	//   - m: the pipeline manager
	//
	// Returns:
	//   - error: an upload, allocation or reload error
	Update(b backend.Backend, m pipeline.Manager) error

	// Draw binds the pipeline and the bind groups and draws the geometry.
	//
	// Parameters:
	//   - pass: the render pass
	//   - m: the pipeline manager guarding the current pipeline
	//
	// Returns:
	//   - bool: false if the pipeline is not compiled or a bind group is not created yet
	Draw(pass backend.RenderPass, m pipeline.Manager) bool

	// Watch registers the material's shader files with a watcher. Changes are applied by the next
	// Update. Materials without shader files ignore the call.
	//
	// Parameters:
	//   - w: the shader file watcher
	//
	// Returns:
	//   - error: an error adding the files to the watcher
	Watch(w *shader.Watcher) error

	// Release gives back the material's bind group references and its pipeline entry reference.
	Release()
}

var _ Material = &material{}

// NewMaterial creates a Material drawing the given geometry.
//
// Parameters:
//   - geo: the geometry to draw
//   - options: functional options for shader code, bind groups and render state
//
// Returns:
//   - Material: the material
//   - error: ErrNoShader if neither code nor shader files were given
func NewMaterial(geo geometry.Geometry, options ...MaterialBuilderOption) (Material, error) {
	m := &material{
		id:       uuid.NewString(),
		geometry: geo,
		state:    pipeline.NewRenderState(),
	}
	for _, opt := range options {
		opt(m)
	}
	m.name = common.Coalesce(m.name, m.id)

	if m.vertexPath == "" && m.vertexCode == "" {
		return nil, fmt.Errorf("material %s: %w", m.name, ErrNoShader)
	}
	m.fragmentCode = common.Coalesce(m.fragmentCode, m.vertexCode)
	m.fragmentPath = common.Coalesce(m.fragmentPath, m.vertexPath)

	for i, g := range m.own {
		g.SetIndex(len(m.shared) + i)
	}
	return m, nil
}

func (m *material) ID() string {
	return m.id
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Geometry() geometry.Geometry {
	return m.geometry
}

func (m *material) BindGroups() []bind_group.BindGroup {
	return slices.Concat(m.shared, m.own)
}

func (m *material) Entry() pipeline.RenderEntry {
	return m.entry
}

func (m *material) ShaderFiles() (string, string) {
	return m.vertexPath, m.fragmentPath
}

// readShaderFiles loads the stage bodies from disk when the material was built from files.
func (m *material) readShaderFiles() error {
	if m.vertexPath == "" {
		return nil
	}
	vs, err := os.ReadFile(m.vertexPath)
	if err != nil {
		return fmt.Errorf("material %s: %w", m.name, err)
	}
	fs := vs
	if m.fragmentPath != m.vertexPath {
		if fs, err = os.ReadFile(m.fragmentPath); err != nil {
			return fmt.Errorf("material %s: %w", m.name, err)
		}
	}
	m.vertexCode, m.fragmentCode = string(vs), string(fs)
	return nil
}

func (m *material) descriptor() pipeline.RenderDescriptor {
	return pipeline.RenderDescriptor{
		Label:         m.name,
		VertexCode:    m.vertexCode,
		FragmentCode:  m.fragmentCode,
		VertexEntry:   m.vertexEntry,
		FragmentEntry: m.fragmentEntry,
		Geometry:      m.geometry,
		BindGroups:    m.BindGroups(),
		State:         m.state,
	}
}

func (m *material) resolve(pm pipeline.Manager) error {
	entry, err := pm.GetOrCreateRenderPipeline(m.descriptor())
	if err != nil {
		return fmt.Errorf("material %s: %w", m.name, err)
	}
	m.entry = entry
	return nil
}

func (m *material) Init(b backend.Backend, pm pipeline.Manager, registry *Registry) error {
	if err := m.readShaderFiles(); err != nil {
		return err
	}
	if err := m.geometry.Create(b); err != nil {
		return fmt.Errorf("material %s: %w", m.name, err)
	}

	m.registry = registry
	m.manager = pm
	for _, g := range m.BindGroups() {
		registry.Acquire(g)
		if g.ShouldCreate() {
			if err := g.Create(b); err != nil {
				return fmt.Errorf("material %s: %w", m.name, err)
			}
		}
	}

	if err := m.resolve(pm); err != nil {
		return err
	}
	common.Logger().Debug("initialized material", "material", m.name, "pipeline", m.entry.Label())
	return compileWhenReady(m.entry.Status(), m.BindGroups(), m.entry.Compile)
}

func (m *material) Update(b backend.Backend, pm pipeline.Manager) error {
	if m.entry == nil {
		return fmt.Errorf("material %s: %w", m.name, ErrNotInitialized)
	}
	if m.reload.Swap(false) {
		if err := m.applyReload(pm); err != nil {
			return err
		}
	}

	var errs []error
	for _, g := range m.own {
		if err := g.Update(b); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("material %s: %w", m.name, err)
	}

	groups := m.BindGroups()
	if slices.ContainsFunc(groups, bind_group.BindGroup.NeedsPipelineFlush) {
		ch := m.entry.Flush(groups)
		for _, g := range m.own {
			g.ClearPipelineFlush()
		}
		return syncResult(ch)
	}
	return compileWhenReady(m.entry.Status(), groups, m.entry.Compile)
}

// applyReload re-reads the shader files and resolves the entry for the new bodies. The previous
// entry's reference is given back, which drops it once no other material uses it.
func (m *material) applyReload(pm pipeline.Manager) error {
	if err := m.readShaderFiles(); err != nil {
		return err
	}
	previous := m.entry
	if err := m.resolve(pm); err != nil {
		return err
	}
	pm.ReleaseRenderPipeline(previous)
	if m.entry != previous {
		common.Logger().Info("reloaded material shaders", "material", m.name, "pipeline", m.entry.Label())
	}
	return nil
}

func (m *material) Draw(pass backend.RenderPass, pm pipeline.Manager) bool {
	if m.entry == nil || !m.geometry.Created() {
		return false
	}
	groups := m.BindGroups()
	for _, g := range groups {
		if g.Group() == nil {
			return false
		}
	}
	if !pm.SetCurrentRenderPipeline(pass, m.entry) {
		return false
	}
	for _, g := range groups {
		pass.SetBindGroup(uint32(g.Index()), g.Group())
	}
	m.geometry.Draw(pass)
	return true
}

func (m *material) Watch(w *shader.Watcher) error {
	if m.vertexPath == "" {
		return nil
	}
	onChange := func(path string) {
		common.Logger().Debug("shader file changed", "material", m.name, "path", path)
		m.reload.Store(true)
	}
	if err := w.Watch(m.vertexPath, onChange); err != nil {
		return err
	}
	if m.fragmentPath != m.vertexPath {
		return w.Watch(m.fragmentPath, onChange)
	}
	return nil
}

func (m *material) Release() {
	if m.manager != nil && m.entry != nil {
		m.manager.ReleaseRenderPipeline(m.entry)
	}
	m.manager = nil
	if m.registry == nil {
		return
	}
	for _, g := range m.BindGroups() {
		m.registry.Release(g)
	}
	m.registry = nil
}

// compileWhenReady starts a compile of an uninitialized entry once every group has a layout. With a
// synchronous manager the result is returned; an asynchronous compile reports through the entry's
// status instead.
func compileWhenReady(status pipeline.Status, groups []bind_group.BindGroup, compile func() <-chan error) error {
	if status != pipeline.StatusUninitialized {
		return nil
	}
	for _, g := range groups {
		if g.Layout() == nil {
			return nil
		}
	}
	return syncResult(compile())
}

// syncResult returns the error of a compile that already finished and nil for one still running.
// Build failures are recorded on the entry, so only errors that left the entry uninitialized are
// returned.
func syncResult(ch <-chan error) error {
	select {
	case err := <-ch:
		if errors.Is(err, pipeline.ErrBindGroupsNotReady) || errors.Is(err, pipeline.ErrBindGroupGap) {
			return err
		}
		return nil
	default:
		return nil
	}
}
