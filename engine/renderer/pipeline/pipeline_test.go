package pipeline

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/geometry"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vertexBody = `@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4f {
	return camera.viewProj * vec4f(in.position, 1.0);
}`

const fragmentBody = `@fragment
fn fs_main() -> @location(0) vec4f {
	return vec4f(1.0);
}`

const computeBody = `@compute @workgroup_size(64)
fn step(@builtin(global_invocation_id) id: vec3u) {
}`

type fixture struct {
	fake    *backendtest.Backend
	geo     geometry.Geometry
	camera  bind_group.BindGroup
	texture binding.TextureBinding
	surface bind_group.BindGroup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := backendtest.New()
	geo, err := geometry.NewGeometry(geometry.WithPositions(0, 0, 0, 1, 0, 0, 0, 1, 0))
	require.NoError(t, err)

	cam, err := binding.NewBufferBinding("camera",
		binding.WithField("viewProj", layout.Of(layout.TypeMat4x4f), layout.Value{}))
	require.NoError(t, err)
	camera := bind_group.NewBindGroup(0, bind_group.WithLabel("camera"), bind_group.WithBindings(cam))
	require.NoError(t, camera.Create(fake))

	tex, err := binding.NewTextureBinding("albedo",
		binding.WithSampler(common.SamplerStagingData{}),
		binding.WithImage(common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1}))
	require.NoError(t, err)
	surface := bind_group.NewBindGroup(1, bind_group.WithLabel("surface"), bind_group.WithBindings(tex))
	require.NoError(t, surface.Create(fake))

	return &fixture{fake: fake, geo: geo, camera: camera, texture: tex, surface: surface}
}

func (f *fixture) descriptor(opts ...RenderStateOption) RenderDescriptor {
	return RenderDescriptor{
		Label:        "lit",
		VertexCode:   vertexBody,
		FragmentCode: fragmentBody,
		Geometry:     f.geo,
		BindGroups:   []bind_group.BindGroup{f.camera, f.surface},
		State:        NewRenderState(opts...),
	}
}

func TestGetOrCreateRenderPipelineCaches(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))

	a, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)
	b, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)
	assert.Same(t, a, b)

	culled, err := m.GetOrCreateRenderPipeline(f.descriptor(WithCullMode(wgpu.CullModeBack)))
	require.NoError(t, err)
	assert.NotSame(t, a, culled)
	assert.Equal(t, 1, culled.Index())

	transparent, err := m.GetOrCreateRenderPipeline(f.descriptor(WithTransparent()))
	require.NoError(t, err)
	assert.NotSame(t, a, transparent)
	assert.Len(t, m.RenderEntries(), 3)

	vs, fs := a.EntryPoints()
	assert.Equal(t, "vs_main", vs)
	assert.Equal(t, "fs_main", fs)
	assert.Equal(t, StatusUninitialized, a.Status())
}

func TestReleaseDropsEntryWithLastReference(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))

	a, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)
	shared, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)
	require.Same(t, a, shared)
	culled, err := m.GetOrCreateRenderPipeline(f.descriptor(WithCullMode(wgpu.CullModeBack)))
	require.NoError(t, err)
	require.NoError(t, <-a.Compile())
	require.NoError(t, <-culled.Compile())

	pass := &backendtest.Pass{}
	require.True(t, m.SetCurrentRenderPipeline(pass, culled))

	m.ReleaseRenderPipeline(a)
	assert.Len(t, m.RenderEntries(), 2)
	assert.Equal(t, StatusCompiled, a.Status())

	m.ReleaseRenderPipeline(a)
	require.Len(t, m.RenderEntries(), 1)
	assert.Same(t, culled, m.RenderEntries()[0])
	assert.Zero(t, culled.Index())
	assert.Equal(t, StatusUninitialized, a.Status())
	assert.Nil(t, a.Pipeline())
	assert.True(t, f.fake.RenderPipelines[0].Released)

	require.True(t, m.SetCurrentRenderPipeline(pass, culled))
	assert.Len(t, pass.Calls, 2, "the bound index is forgotten once entries shift")

	m.ReleaseRenderPipeline(a)
	assert.Len(t, m.RenderEntries(), 1, "releasing a dropped entry is a no-op")

	again, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)
	assert.NotSame(t, a, again)
	assert.Equal(t, 1, again.Index())

	c, err := m.GetOrCreateComputePipeline(ComputeDescriptor{Label: "step", Code: computeBody})
	require.NoError(t, err)
	m.ReleaseComputePipeline(c)
	assert.Empty(t, m.ComputeEntries())
}

func TestRenderDescriptorValidation(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))

	desc := f.descriptor()
	desc.Geometry = nil
	_, err := m.GetOrCreateRenderPipeline(desc)
	assert.ErrorIs(t, err, ErrNoGeometry)

	desc = f.descriptor()
	desc.FragmentCode = "fn helper() {}"
	_, err = m.GetOrCreateRenderPipeline(desc)
	assert.ErrorIs(t, err, ErrNoEntryPoint)

	desc = f.descriptor()
	desc.FragmentCode = "fn helper() {}"
	desc.FragmentEntry = "helper"
	_, err = m.GetOrCreateRenderPipeline(desc)
	assert.NoError(t, err)
}

func TestAssembledSources(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))
	e, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(e.VertexSource(), "struct VertexInput {"))
	assert.Contains(t, e.VertexSource(), "@group(0) @binding(0) var<uniform> camera: Camera;")
	assert.True(t, strings.HasSuffix(e.VertexSource(), vertexBody))
	assert.Contains(t, e.FragmentSource(), "@group(1) @binding(1) var albedoSampler: sampler;")
	assert.False(t, e.Shared())
}

func TestSharedModule(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))
	desc := f.descriptor()
	desc.VertexCode = vertexBody + "\n\n" + fragmentBody
	desc.FragmentCode = desc.VertexCode
	e, err := m.GetOrCreateRenderPipeline(desc)
	require.NoError(t, err)
	assert.True(t, e.Shared())
	assert.Equal(t, e.VertexSource(), e.FragmentSource())
	assert.Contains(t, e.VertexSource(), "camera: Camera;")
	assert.Contains(t, e.VertexSource(), "albedo: texture_2d<f32>;")

	require.NoError(t, <-e.Compile())
	require.Len(t, f.fake.Modules, 1)
	p := f.fake.RenderPipelines[0]
	assert.Same(t, p.Desc.Vertex.Module, p.Desc.Fragment.Module)
	assert.Equal(t, "vs_main", p.Desc.Vertex.EntryPoint)
	assert.Equal(t, "fs_main", p.Desc.Fragment.EntryPoint)
}

func TestCompileBuildsDescriptor(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false), WithDefaultTargetFormat(wgpu.TextureFormatBGRA8Unorm), WithDefaultSampleCount(4))
	e, err := m.GetOrCreateRenderPipeline(f.descriptor(WithTransparent(), WithCullMode(wgpu.CullModeBack)))
	require.NoError(t, err)

	require.NoError(t, <-e.Compile())
	assert.Equal(t, StatusCompiled, e.Status())
	require.Len(t, f.fake.RenderPipelines, 1)
	assert.Same(t, f.fake.RenderPipelines[0], e.Pipeline())
	assert.Len(t, f.fake.Modules, 2)
	for _, mod := range f.fake.Modules {
		assert.True(t, mod.Released, "modules are released once the pipeline exists")
	}

	desc := f.fake.RenderPipelines[0].Desc
	require.Len(t, desc.Layouts, 2)
	assert.Same(t, f.camera.Layout(), desc.Layouts[0])
	assert.Same(t, f.surface.Layout(), desc.Layouts[1])
	assert.Equal(t, f.geo.Layouts(), desc.VertexBuffers)
	require.Len(t, desc.Targets, 1)
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm, desc.Targets[0].Format)
	require.NotNil(t, desc.Targets[0].Blend)
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, desc.Targets[0].Blend.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, desc.Targets[0].Blend.Color.DstFactor)
	assert.Equal(t, wgpu.CullModeBack, desc.Primitive.CullMode)
	require.NotNil(t, desc.DepthStencil)
	assert.Equal(t, wgpu.CompareFunctionLess, desc.DepthStencil.DepthCompare)
	assert.Equal(t, uint32(4), desc.Multisample.Count)

	require.NoError(t, <-e.Compile(), "compiling a compiled entry is a no-op")
	assert.Len(t, f.fake.RenderPipelines, 1)
}

func TestOpaqueWithoutDepth(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))
	e, err := m.GetOrCreateRenderPipeline(f.descriptor(WithDepthTestEnabled(false)))
	require.NoError(t, err)
	require.NoError(t, <-e.Compile())

	desc := f.fake.RenderPipelines[0].Desc
	assert.Nil(t, desc.DepthStencil)
	assert.Nil(t, desc.Targets[0].Blend)
	assert.Equal(t, uint32(1), desc.Multisample.Count)
}

func TestCompileNeedsBindGroupLayouts(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))
	pending := bind_group.NewBindGroup(2, bind_group.WithBindings(binding.NewSamplerBinding("shadow", common.SamplerStagingData{}, wgpu.ShaderStageFragment)))
	desc := f.descriptor()
	desc.BindGroups = append(desc.BindGroups, pending)
	e, err := m.GetOrCreateRenderPipeline(desc)
	require.NoError(t, err)

	assert.ErrorIs(t, <-e.Compile(), ErrBindGroupsNotReady)
	assert.Equal(t, StatusUninitialized, e.Status())

	require.NoError(t, pending.Create(f.fake))
	assert.NoError(t, <-e.Compile())

	gap := f.descriptor()
	gap.BindGroups = []bind_group.BindGroup{f.surface}
	e, err = m.GetOrCreateRenderPipeline(gap)
	require.NoError(t, err)
	assert.ErrorIs(t, <-e.Compile(), ErrBindGroupGap)
}

func TestBuildFailureIsNotRetried(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))
	e, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)

	boom := errors.New("descriptor rejected")
	f.fake.FailRenderPipeline = boom
	assert.ErrorIs(t, <-e.Compile(), boom)
	assert.Equal(t, StatusErrored, e.Status())
	assert.ErrorIs(t, e.Err(), boom)
	assert.Nil(t, e.Pipeline())

	f.fake.FailRenderPipeline = nil
	assert.ErrorIs(t, <-e.Compile(), ErrPipelineErrored)
	assert.Empty(t, f.fake.RenderPipelines)

	require.NoError(t, <-e.Flush(e.BindGroups()))
	assert.Equal(t, StatusCompiled, e.Status())
	assert.NoError(t, e.Err())
}

func TestShaderModuleFailureErrors(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))
	e, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)

	f.fake.FailShaderModule = errors.New("bad wgsl")
	assert.Error(t, <-e.Compile())
	assert.Equal(t, StatusErrored, e.Status())
}

func TestFlushAfterLayoutChangeKeepsEntry(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))
	e, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)
	require.NoError(t, <-e.Compile())
	before := e.Pipeline()

	f.texture.SetTextureKind(binding.TextureDepth)
	require.NoError(t, f.surface.Update(f.fake))
	require.True(t, f.surface.NeedsPipelineFlush())

	require.NoError(t, <-e.Flush([]bind_group.BindGroup{f.camera, f.surface}))
	f.surface.ClearPipelineFlush()

	assert.Same(t, e, m.RenderEntries()[0], "the scene keeps its pipeline slot")
	assert.Equal(t, StatusCompiled, e.Status())
	require.Len(t, f.fake.RenderPipelines, 2)
	assert.NotSame(t, before, e.Pipeline())
	assert.True(t, f.fake.RenderPipelines[0].Released)
	assert.Contains(t, e.FragmentSource(), "var albedo: texture_depth_2d;")
	assert.Same(t, f.surface.Layout(), f.fake.RenderPipelines[1].Desc.Layouts[1])
}

func TestSharedBindingDeclaredOnce(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))

	shared := f.camera.Bindings()[0]
	other := bind_group.NewBindGroup(1, bind_group.WithBindings(shared))
	require.NoError(t, other.Create(f.fake))

	desc := f.descriptor()
	desc.BindGroups = []bind_group.BindGroup{f.camera, other}
	e, err := m.GetOrCreateRenderPipeline(desc)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(e.VertexSource(), "struct Camera {"))
	assert.Equal(t, 1, strings.Count(e.VertexSource(), "var<uniform> camera: Camera;"))
}

func TestConflictingBindingNamesFailAssembly(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))

	impostor, err := binding.NewBufferBinding("camera",
		binding.WithField("viewProj", layout.Of(layout.TypeMat4x4f), layout.Value{}))
	require.NoError(t, err)
	clash := bind_group.NewBindGroup(1, bind_group.WithBindings(impostor))
	require.NoError(t, clash.Create(f.fake))

	desc := f.descriptor()
	desc.BindGroups = []bind_group.BindGroup{f.camera, clash}
	_, err = m.GetOrCreateRenderPipeline(desc)
	assert.ErrorIs(t, err, shader.ErrDeclarationConflict)
	assert.Empty(t, m.RenderEntries())

	e, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)
	require.NoError(t, <-e.Compile())

	assert.ErrorIs(t, <-e.Flush([]bind_group.BindGroup{f.camera, clash}), shader.ErrDeclarationConflict)
	assert.Equal(t, StatusErrored, e.Status())
	assert.Nil(t, e.Pipeline())

	require.NoError(t, <-e.Flush([]bind_group.BindGroup{f.camera, f.surface}))
	assert.Equal(t, StatusCompiled, e.Status())
}

func TestStateTargetFormatOverridesManagerDefault(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false), WithDefaultTargetFormat(wgpu.TextureFormatBGRA8Unorm))

	e, err := m.GetOrCreateRenderPipeline(f.descriptor(WithTargetFormat(wgpu.TextureFormatRGBA16Float)))
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, e.State().TargetFormat)
	require.NoError(t, <-e.Compile())
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, f.fake.RenderPipelines[0].Desc.Targets[0].Format)

	e, err = m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm, e.State().TargetFormat)
}

func TestCurrentPipelineGuard(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))
	a, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)
	b, err := m.GetOrCreateRenderPipeline(f.descriptor(WithCullMode(wgpu.CullModeFront)))
	require.NoError(t, err)

	pass := &backendtest.Pass{}
	assert.False(t, m.SetCurrentRenderPipeline(pass, a), "uncompiled entries are not bound")
	assert.Empty(t, pass.Calls)

	require.NoError(t, <-a.Compile())
	require.NoError(t, <-b.Compile())
	assert.True(t, m.SetCurrentRenderPipeline(pass, a))
	assert.True(t, m.SetCurrentRenderPipeline(pass, a))
	assert.True(t, m.SetCurrentRenderPipeline(pass, b))
	assert.True(t, m.SetCurrentRenderPipeline(pass, b))
	assert.Equal(t, []string{"pipeline lit Render Pipeline", "pipeline lit Render Pipeline"}, pass.Calls)

	m.ResetCurrentPipeline()
	assert.True(t, m.SetCurrentRenderPipeline(pass, b))
	assert.Len(t, pass.Calls, 3)
}

func TestComputePipeline(t *testing.T) {
	fake := backendtest.New()
	m := NewManager(fake, WithDiagnostics(false))

	state, err := binding.NewBufferBinding("particles",
		binding.WithStorage(binding.AccessReadWrite),
		binding.WithField("position", layout.ArrayOf(layout.TypeVec4f, 8), layout.Value{}))
	require.NoError(t, err)
	group := bind_group.NewBindGroup(0, bind_group.WithBindings(state))
	require.NoError(t, group.Create(fake))

	desc := ComputeDescriptor{Label: "simulate", Code: computeBody, BindGroups: []bind_group.BindGroup{group}}
	e, err := m.GetOrCreateComputePipeline(desc)
	require.NoError(t, err)
	again, err := m.GetOrCreateComputePipeline(desc)
	require.NoError(t, err)
	assert.Same(t, e, again)

	assert.Equal(t, "step", e.EntryPoint())
	assert.Equal(t, [3]uint32{64, 1, 1}, e.WorkgroupSize())
	assert.Contains(t, e.Source(), "@group(0) @binding(0) var<storage, read_write> particles: Particles;")

	require.NoError(t, <-e.Compile())
	require.Len(t, fake.ComputePipelines, 1)
	assert.Equal(t, "step", fake.ComputePipelines[0].Desc.Compute.EntryPoint)

	pass := backendtest.ComputePass{Pass: &backendtest.Pass{}}
	assert.True(t, m.SetCurrentComputePipeline(pass, e))
	assert.True(t, m.SetCurrentComputePipeline(pass, e))
	assert.Len(t, pass.Calls, 1)

	_, err = m.GetOrCreateComputePipeline(ComputeDescriptor{Code: "fn nothing() {}"})
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestChunkExpansion(t *testing.T) {
	f := newFixture(t)
	chunks := shader.NewChunks()
	chunks.Register("white", "fn white() -> vec4f { return vec4f(1.0); }")
	m := NewManager(f.fake, WithDiagnostics(false), WithChunks(chunks))

	desc := f.descriptor()
	desc.FragmentCode = "#include <white>\n@fragment fn fs_main() -> @location(0) vec4f { return white(); }"
	e, err := m.GetOrCreateRenderPipeline(desc)
	require.NoError(t, err)
	assert.Contains(t, e.FragmentSource(), "fn white() -> vec4f")
	assert.NotContains(t, e.FragmentSource(), "#include")

	desc.FragmentCode = "#include <missing>\n" + fragmentBody
	_, err = m.GetOrCreateRenderPipeline(desc)
	assert.ErrorIs(t, err, shader.ErrUnknownChunk)
}

func TestAsyncCompileGuardsReentry(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.fake.PipelineHook = func() { <-gate }
	m := NewManager(f.fake, WithDiagnostics(false), WithAsyncCompile(1))
	defer m.Close()

	e, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)

	first := e.Compile()
	assert.Equal(t, StatusCompiling, e.Status())
	assert.ErrorIs(t, <-e.Compile(), ErrCompileInProgress)

	close(gate)
	select {
	case err := <-first:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("async compile never finished")
	}
	assert.Equal(t, StatusCompiled, e.Status())
	assert.NotNil(t, e.Pipeline())
}

func TestFlushOvertakesInFlightCompile(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	var calls atomic.Int32
	f.fake.PipelineHook = func() {
		if calls.Add(1) == 1 {
			<-gate
		}
	}
	m := NewManager(f.fake, WithDiagnostics(false), WithAsyncCompile(1))
	defer m.Close()

	e, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)

	stale := e.Compile()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, time.Millisecond)
	fresh := e.Flush(e.BindGroups())
	close(gate)

	assert.ErrorIs(t, receive(t, stale), ErrStaleCompile)
	require.NoError(t, receive(t, fresh))

	assert.Equal(t, StatusCompiled, e.Status())
	require.Len(t, f.fake.RenderPipelines, 2)
	assert.True(t, f.fake.RenderPipelines[0].Released, "the overtaken pipeline is released")
	assert.Same(t, f.fake.RenderPipelines[1], e.Pipeline())
}

func receive(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("compile never reported")
		return nil
	}
}

func TestContextLossAndRestore(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.fake, WithDiagnostics(false))
	e, err := m.GetOrCreateRenderPipeline(f.descriptor())
	require.NoError(t, err)
	require.NoError(t, <-e.Compile())

	m.LoseContext()
	f.camera.LoseContext()
	f.surface.LoseContext()
	assert.Nil(t, e.Pipeline())
	assert.Equal(t, StatusUninitialized, e.Status())

	restored := backendtest.New()
	assert.ErrorIs(t, m.RestoreContext(restored), ErrBindGroupsNotReady, "bind groups come back before pipelines")

	require.NoError(t, f.camera.RestoreContext(restored))
	require.NoError(t, f.surface.RestoreContext(restored))
	require.NoError(t, m.RestoreContext(restored))
	assert.Equal(t, StatusCompiled, e.Status())
	assert.Len(t, restored.RenderPipelines, 1)
}

func TestRenderStateEqual(t *testing.T) {
	a := NewRenderState(WithBlendState(&wgpu.BlendState{Color: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd}}))
	b := NewRenderState(WithBlendState(&wgpu.BlendState{Color: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd}}))
	assert.True(t, a.Equal(b), "explicit blends compare by value")
	assert.False(t, a.Equal(NewRenderState()))
	assert.False(t, NewRenderState().Equal(NewRenderState(WithDepthWriteEnabled(false))))
	assert.Nil(t, NewRenderState().BlendState())
}
