package renderer

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/geometry"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
)

// computeJob is a registered compute pass with the invocation count it dispatches every frame.
type computeJob struct {
	pass        material.ComputePass
	invocations uint32
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu sync.Mutex

	backend    backend.SurfaceBackend
	manager    pipeline.Manager
	registry   *material.Registry
	geometries *geometry.Cache
	watcher    *shader.Watcher

	shared    []bind_group.BindGroup
	materials []material.Material
	computes  []computeJob

	// Pre-creation config collected from builder options
	managerOptions []pipeline.ManagerBuilderOption
	hotReload      bool
}

// Renderer owns the backend, the pipeline manager and the bookkeeping shared by every material: the
// bind group registry, the geometry cache and the shader file watcher.
//
// Per frame the renderer updates shared bind groups, then every material and compute pass, then
// acknowledges the shared groups' flush requests once every dependent pipeline has been flushed.
// Render dispatches the compute passes and draws the materials in registration order.
type Renderer interface {
	// Backend retrieves the surface backend the renderer draws with.
	//
	// Returns:
	//   - backend.SurfaceBackend: the backend
	Backend() backend.SurfaceBackend

	// Manager retrieves the pipeline manager.
	//
	// Returns:
	//   - pipeline.Manager: the manager
	Manager() pipeline.Manager

	// Registry retrieves the bind group registry shared by materials and compute passes.
	//
	// Returns:
	//   - *material.Registry: the registry
	Registry() *material.Registry

	// Geometry returns the cached geometry for id, building it with create on a miss. The reference
	// taken is given back when the material drawing it is removed.
	//
	// Parameters:
	//   - id: the geometry identifier
	//   - create: builds the geometry on a miss
	//
	// Returns:
	//   - geometry.Geometry: the shared geometry
	//   - error: the error returned by create
	Geometry(id string, create func() (geometry.Geometry, error)) (geometry.Geometry, error)

	// AddSharedBindGroup registers a bind group the renderer owns and updates, such as a camera group
	// that materials receive through material.WithSharedBindGroups.
	//
	// Parameters:
	//   - g: the bind group
	//
	// Returns:
	//   - error: an allocation error
	AddSharedBindGroup(g bind_group.BindGroup) error

	// AddMaterial initializes a material and adds it to the draw list. With hot reload enabled its
	// shader files are watched.
	//
	// Parameters:
	//   - m: the material
	//
	// Returns:
	//   - error: an initialization or watch error
	AddMaterial(m material.Material) error

	// RemoveMaterial drops a material from the draw list and gives back its bind group and geometry
	// references.
	//
	// Parameters:
	//   - m: the material
	RemoveMaterial(m material.Material)

	// Materials retrieves the materials in draw order.
	//
	// Returns:
	//   - []material.Material: the materials
	Materials() []material.Material

	// AddComputePass initializes a compute pass dispatched every frame before the render pass.
	//
	// Parameters:
	//   - c: the compute pass
	//   - invocations: the invocation count covered by each dispatch
	//
	// Returns:
	//   - error: an initialization error
	AddComputePass(c material.ComputePass, invocations uint32) error

	// RemoveComputePass drops a compute pass and gives back its bind group references.
	//
	// Parameters:
	//   - c: the compute pass
	RemoveComputePass(c material.ComputePass)

	// Resize configures the backend surface for a new size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if the surface attachments cannot be created
	Resize(width, height int) error

	// Update runs the per-frame update of shared groups, materials and compute passes.
	//
	// Returns:
	//   - error: the joined update errors
	Update() error

	// Render dispatches the compute passes, draws every material and presents the frame.
	//
	// Returns:
	//   - error: an error if a pass cannot be opened
	Render() error

	// Frame runs Update then Render.
	//
	// Returns:
	//   - error: the first error of either step
	Frame() error

	// LoseContext drops every GPU handle after a device loss: geometry, then pipelines, then bind
	// groups.
	LoseContext()

	// RestoreContext moves to a new backend and recreates GPU objects in creation order: geometry and
	// bind groups, then pipelines.
	//
	// Parameters:
	//   - b: the backend of the new device
	//
	// Returns:
	//   - error: an allocation or pipeline error
	RestoreContext(b backend.SurfaceBackend) error

	// Close releases every material, compute pass and shared group, stops the manager and the
	// watcher and releases the backend.
	Close()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer drawing with the given surface backend. Pipelines target the
// backend's surface format and sample count unless manager options say otherwise. It panics if b is
// nil.
//
// Parameters:
//   - b: the surface backend
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if the shader watcher cannot be started
func NewRenderer(b backend.SurfaceBackend, options ...RendererBuilderOption) (Renderer, error) {
	if b == nil {
		panic("renderer: NewRenderer requires a backend")
	}
	r := &renderer{
		backend:    b,
		registry:   material.NewRegistry(),
		geometries: geometry.NewCache(),
	}
	for _, opt := range options {
		opt(r)
	}

	managerOptions := append([]pipeline.ManagerBuilderOption{
		pipeline.WithDefaultTargetFormat(b.SurfaceFormat()),
		pipeline.WithDefaultSampleCount(b.SampleCount()),
	}, r.managerOptions...)
	r.manager = pipeline.NewManager(b, managerOptions...)

	if r.hotReload {
		w, err := shader.NewWatcher()
		if err != nil {
			r.manager.Close()
			return nil, fmt.Errorf("failed to start shader watcher: %w", err)
		}
		r.watcher = w
	}
	return r, nil
}

func (r *renderer) Backend() backend.SurfaceBackend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend
}

func (r *renderer) Manager() pipeline.Manager {
	return r.manager
}

func (r *renderer) Registry() *material.Registry {
	return r.registry
}

func (r *renderer) Geometry(id string, create func() (geometry.Geometry, error)) (geometry.Geometry, error) {
	return r.geometries.GetOrCreate(id, create)
}

func (r *renderer) AddSharedBindGroup(g bind_group.BindGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.shared, g) {
		return nil
	}
	r.registry.Acquire(g)
	r.shared = append(r.shared, g)
	if g.ShouldCreate() {
		return g.Create(r.backend)
	}
	return nil
}

func (r *renderer) AddMaterial(m material.Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := m.Init(r.backend, r.manager, r.registry); err != nil {
		return err
	}
	if r.watcher != nil {
		if err := m.Watch(r.watcher); err != nil {
			return fmt.Errorf("material %s: %w", m.Name(), err)
		}
	}
	r.materials = append(r.materials, m)
	common.Logger().Debug("added material", "material", m.Name(), "materials", len(r.materials))
	return nil
}

func (r *renderer) RemoveMaterial(m material.Material) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.materials, m)
	if i < 0 {
		return
	}
	r.materials = slices.Delete(r.materials, i, i+1)
	m.Release()
	r.geometries.Release(m.Geometry().ID())
}

func (r *renderer) Materials() []material.Material {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.materials)
}

func (r *renderer) AddComputePass(c material.ComputePass, invocations uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := c.Init(r.backend, r.manager, r.registry); err != nil {
		return err
	}
	r.computes = append(r.computes, computeJob{pass: c, invocations: invocations})
	return nil
}

func (r *renderer) RemoveComputePass(c material.ComputePass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.computes, func(j computeJob) bool { return j.pass == c })
	if i < 0 {
		return
	}
	r.computes = slices.Delete(r.computes, i, i+1)
	c.Release()
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.ConfigureSurface(width, height)
}

func (r *renderer) Update() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, g := range r.shared {
		if err := g.Update(r.backend); err != nil {
			errs = append(errs, err)
		}
	}
	for _, job := range r.computes {
		if err := job.pass.Update(r.backend); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range r.materials {
		if err := m.Update(r.backend, r.manager); err != nil {
			errs = append(errs, err)
		}
	}
	for _, g := range r.shared {
		g.ClearPipelineFlush()
	}
	return errors.Join(errs...)
}

func (r *renderer) Render() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.computes) > 0 {
		cp, err := r.backend.BeginComputePass()
		if err != nil {
			return fmt.Errorf("failed to begin compute pass: %w", err)
		}
		r.manager.ResetCurrentPipeline()
		for _, job := range r.computes {
			job.pass.DispatchInvocations(cp, r.manager, job.invocations)
		}
		r.backend.EndComputePass()
	}

	pass, err := r.backend.BeginFrame()
	if err != nil {
		return fmt.Errorf("failed to begin frame: %w", err)
	}
	r.manager.ResetCurrentPipeline()
	drawn := 0
	for _, m := range r.materials {
		if m.Draw(pass, r.manager) {
			drawn++
		}
	}
	r.backend.EndFrame()
	r.backend.Present()

	if drawn < len(r.materials) {
		common.Logger().Debug("materials skipped this frame", "skipped", len(r.materials)-drawn)
	}
	return nil
}

func (r *renderer) Frame() error {
	if err := r.Update(); err != nil {
		return err
	}
	return r.Render()
}

func (r *renderer) LoseContext() {
	r.mu.Lock()
	defer r.mu.Unlock()

	common.Logger().Warn("device lost, dropping GPU handles")
	for _, m := range r.materials {
		m.Geometry().LoseContext()
	}
	r.geometries.LoseContext()
	r.manager.LoseContext()
	r.registry.LoseContext()
}

func (r *renderer) RestoreContext(b backend.SurfaceBackend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backend = b
	if err := r.geometries.RestoreContext(b); err != nil {
		return err
	}
	for _, m := range r.materials {
		if err := m.Geometry().Create(b); err != nil {
			return fmt.Errorf("material %s: %w", m.Name(), err)
		}
	}
	if err := r.registry.RestoreContext(b); err != nil {
		return err
	}
	// Groups still waiting on a binding compile their pipelines from the owner's Update.
	if err := r.manager.RestoreContext(b); err != nil && !errors.Is(err, pipeline.ErrBindGroupsNotReady) {
		return err
	}
	r.registry.ClearPipelineFlush()
	common.Logger().Info("device restored", "materials", len(r.materials), "computePasses", len(r.computes))
	return nil
}

func (r *renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.materials {
		m.Release()
		r.geometries.Release(m.Geometry().ID())
	}
	for _, job := range r.computes {
		job.pass.Release()
	}
	for _, g := range r.shared {
		r.registry.Release(g)
	}
	r.materials, r.computes, r.shared = nil, nil, nil

	r.manager.Close()
	if r.watcher != nil {
		if err := r.watcher.Close(); err != nil {
			common.Logger().Error("failed to close shader watcher", "err", err)
		}
	}
	r.backend.Release()
}
