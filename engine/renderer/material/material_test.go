package material

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/geometry"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const litShader = `@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4f {
	return camera.viewProj * vec4f(in.position, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4f {
	return textureSample(albedo, albedoSampler, vec2f(0.5));
}`

const particleShader = `@compute @workgroup_size(64)
fn simulate(@builtin(global_invocation_id) id: vec3u) {
	particles.position[id.x] += vec4f(0.0, 0.01, 0.0, 0.0);
}`

func newTriangle(t *testing.T) geometry.Geometry {
	t.Helper()
	geo, err := geometry.NewGeometry(geometry.WithID("tri"), geometry.WithPositions(0, 0, 0, 1, 0, 0, 0, 1, 0))
	require.NoError(t, err)
	return geo
}

func newCamera(t *testing.T) (binding.BufferBinding, bind_group.BindGroup) {
	t.Helper()
	cam, err := binding.NewBufferBinding("camera",
		binding.WithField("viewProj", layout.Of(layout.TypeMat4x4f), layout.Value{}))
	require.NoError(t, err)
	return cam, bind_group.NewBindGroup(0, bind_group.WithLabel("camera"), bind_group.WithBindings(cam))
}

func newSurface(t *testing.T, withImage bool) (binding.TextureBinding, bind_group.BindGroup) {
	t.Helper()
	opts := []binding.TextureBindingBuilderOption{binding.WithSampler(common.SamplerStagingData{})}
	if withImage {
		opts = append(opts, binding.WithImage(common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1}))
	}
	tex, err := binding.NewTextureBinding("albedo", opts...)
	require.NoError(t, err)
	return tex, bind_group.NewBindGroup(7, bind_group.WithLabel("surface"), bind_group.WithBindings(tex))
}

func newManager(fake *backendtest.Backend) pipeline.Manager {
	return pipeline.NewManager(fake, pipeline.WithDiagnostics(false))
}

func TestNewMaterialRequiresShader(t *testing.T) {
	_, err := NewMaterial(newTriangle(t), WithName("empty"))
	assert.ErrorIs(t, err, ErrNoShader)

	_, err = NewComputePass("")
	assert.ErrorIs(t, err, ErrNoShader)
}

func TestMaterialIndexesOwnGroupsAfterShared(t *testing.T) {
	_, camera := newCamera(t)
	_, surface := newSurface(t, true)
	mat, err := NewMaterial(newTriangle(t),
		WithShaderCode(litShader, ""),
		WithSharedBindGroups(camera),
		WithBindGroups(surface))
	require.NoError(t, err)

	groups := mat.BindGroups()
	require.Len(t, groups, 2)
	assert.Same(t, camera, groups[0])
	assert.Equal(t, 0, groups[0].Index())
	assert.Same(t, surface, groups[1])
	assert.Equal(t, 1, groups[1].Index())
	assert.Equal(t, mat.ID(), mat.Name())
}

func TestMaterialInitAndDraw(t *testing.T) {
	fake := backendtest.New()
	pm := newManager(fake)
	registry := NewRegistry()
	_, camera := newCamera(t)
	_, surface := newSurface(t, true)

	mat, err := NewMaterial(newTriangle(t),
		WithName("lit"),
		WithShaderCode(litShader, ""),
		WithSharedBindGroups(camera),
		WithBindGroups(surface))
	require.NoError(t, err)

	pass := &backendtest.Pass{}
	assert.False(t, mat.Draw(pass, pm), "nothing is drawn before Init")

	require.NoError(t, mat.Init(fake, pm, registry))
	require.NotNil(t, mat.Entry())
	assert.Equal(t, pipeline.StatusCompiled, mat.Entry().Status())
	assert.True(t, mat.Entry().Shared())
	assert.Equal(t, 1, registry.Refs(camera))

	require.True(t, mat.Draw(pass, pm))
	assert.Equal(t, []string{
		"pipeline lit Render Pipeline",
		"group 0 camera",
		"group 1 surface",
		"vertex 0 tri Vertex Buffer 0",
		"draw 3 1",
	}, pass.Calls)

	require.NoError(t, mat.Update(fake, pm))
	assert.Len(t, fake.RenderPipelines, 1, "a steady frame does not recompile")
}

func TestMaterialWaitsForTexture(t *testing.T) {
	fake := backendtest.New()
	pm := newManager(fake)
	_, camera := newCamera(t)
	tex, surface := newSurface(t, false)

	mat, err := NewMaterial(newTriangle(t),
		WithShaderCode(litShader, ""),
		WithSharedBindGroups(camera),
		WithBindGroups(surface))
	require.NoError(t, err)
	require.NoError(t, mat.Init(fake, pm, NewRegistry()))

	assert.Nil(t, surface.Layout())
	assert.Equal(t, pipeline.StatusUninitialized, mat.Entry().Status())
	assert.False(t, mat.Draw(&backendtest.Pass{}, pm))

	require.NoError(t, tex.SetTexture(common.TextureStagingData{Pixels: make([]byte, 16), Width: 2, Height: 2}))
	require.NoError(t, mat.Update(fake, pm))
	assert.NotNil(t, surface.Group())
	assert.Equal(t, pipeline.StatusCompiled, mat.Entry().Status())
	assert.True(t, mat.Draw(&backendtest.Pass{}, pm))
}

func TestMaterialFlushesOnLayoutChange(t *testing.T) {
	fake := backendtest.New()
	pm := newManager(fake)
	_, camera := newCamera(t)
	tex, surface := newSurface(t, true)

	mat, err := NewMaterial(newTriangle(t),
		WithShaderCode(litShader, ""),
		WithSharedBindGroups(camera),
		WithBindGroups(surface))
	require.NoError(t, err)
	require.NoError(t, mat.Init(fake, pm, NewRegistry()))
	entry := mat.Entry()
	before := entry.Pipeline()

	tex.SetTextureKind(binding.TextureDepth)
	require.NoError(t, mat.Update(fake, pm))

	assert.Same(t, entry, mat.Entry())
	assert.Equal(t, pipeline.StatusCompiled, entry.Status())
	assert.NotSame(t, before, entry.Pipeline())
	assert.False(t, surface.NeedsPipelineFlush())
	assert.Contains(t, entry.FragmentSource(), "texture_depth_2d")
}

func TestMaterialLeavesSharedFlushFlag(t *testing.T) {
	fake := backendtest.New()
	pm := newManager(fake)
	_, camera := newCamera(t)
	_, surface := newSurface(t, true)

	mat, err := NewMaterial(newTriangle(t),
		WithShaderCode(litShader, ""),
		WithSharedBindGroups(camera),
		WithBindGroups(surface))
	require.NoError(t, err)
	require.NoError(t, mat.Init(fake, pm, NewRegistry()))

	require.NoError(t, camera.ResetBindGroupLayout(fake))
	require.NoError(t, mat.Update(fake, pm))
	assert.Len(t, fake.RenderPipelines, 2)
	assert.True(t, camera.NeedsPipelineFlush(), "shared groups are acknowledged by their owner")
}

func TestRegistrySharedGroupOutlivesMaterial(t *testing.T) {
	fake := backendtest.New()
	pm := newManager(fake)
	registry := NewRegistry()
	cam, camera := newCamera(t)

	var mats []Material
	for range 2 {
		_, surface := newSurface(t, true)
		mat, err := NewMaterial(newTriangle(t),
			WithShaderCode(litShader, ""),
			WithSharedBindGroups(camera),
			WithBindGroups(surface))
		require.NoError(t, err)
		require.NoError(t, mat.Init(fake, pm, registry))
		mats = append(mats, mat)
	}
	assert.Same(t, mats[0].Entry(), mats[1].Entry(), "identical materials share a pipeline entry")
	assert.Equal(t, 2, registry.Refs(camera))
	assert.Len(t, registry.Groups(), 3)

	mats[0].Release()
	assert.Equal(t, 1, registry.Refs(camera))
	assert.False(t, cam.Buffer().(*backendtest.Buffer).Released)

	assert.Len(t, pm.RenderEntries(), 1, "the other material still holds the entry")

	mats[1].Release()
	assert.Empty(t, pm.RenderEntries())
	assert.Zero(t, registry.Refs(camera))
	assert.Empty(t, registry.Groups())
	assert.Nil(t, cam.Buffer())
}

func TestRegistryContextRestore(t *testing.T) {
	fake := backendtest.New()
	registry := NewRegistry()
	_, camera := newCamera(t)
	_, pending := newSurface(t, false)
	registry.Acquire(camera)
	registry.Acquire(pending)
	require.NoError(t, camera.Create(fake))

	registry.LoseContext()
	assert.Nil(t, camera.Group())
	assert.True(t, camera.NeedsPipelineFlush())

	restored := backendtest.New()
	require.NoError(t, registry.RestoreContext(restored))
	assert.NotNil(t, camera.Group())
	assert.Nil(t, pending.Group(), "groups waiting on an image stay pending")

	registry.ClearPipelineFlush()
	assert.False(t, camera.NeedsPipelineFlush())
}

func TestMaterialHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lit.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(litShader), 0o644))

	fake := backendtest.New()
	pm := newManager(fake)
	_, camera := newCamera(t)
	_, surface := newSurface(t, true)
	mat, err := NewMaterial(newTriangle(t),
		WithShaderFiles(path, ""),
		WithSharedBindGroups(camera),
		WithBindGroups(surface))
	require.NoError(t, err)
	vs, fs := mat.ShaderFiles()
	assert.Equal(t, path, vs)
	assert.Equal(t, path, fs)

	require.NoError(t, mat.Init(fake, pm, NewRegistry()))
	first := mat.Entry()
	require.Equal(t, pipeline.StatusCompiled, first.Status())

	w, err := shader.NewWatcher()
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, mat.Watch(w))

	edited := strings.Replace(litShader, "vec2f(0.5)", "vec2f(0.25)", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
	require.Eventually(t, func() bool { return mat.(*material).reload.Load() }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, mat.Update(fake, pm))
	assert.NotSame(t, first, mat.Entry())
	assert.Contains(t, mat.Entry().FragmentSource(), "vec2f(0.25)")
	assert.Equal(t, pipeline.StatusCompiled, mat.Entry().Status())

	require.Len(t, pm.RenderEntries(), 1, "the replaced entry leaves the manager")
	assert.Same(t, mat.Entry(), pm.RenderEntries()[0])
	assert.Zero(t, mat.Entry().Index())
	assert.True(t, fake.RenderPipelines[0].Released)
	assert.Equal(t, pipeline.StatusUninitialized, first.Status())

	restored := backendtest.New()
	pm.LoseContext()
	require.NoError(t, pm.RestoreContext(restored))
	assert.Len(t, restored.RenderPipelines, 1, "only the live entry is rebuilt")
}

func TestMaterialHotReloadKeepsSharedEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lit.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(litShader), 0o644))

	fake := backendtest.New()
	pm := newManager(fake)
	registry := NewRegistry()
	_, camera := newCamera(t)

	_, surface := newSurface(t, true)
	watched, err := NewMaterial(newTriangle(t), WithShaderFiles(path, ""), WithSharedBindGroups(camera), WithBindGroups(surface))
	require.NoError(t, err)
	require.NoError(t, watched.Init(fake, pm, registry))

	_, other := newSurface(t, true)
	inline, err := NewMaterial(newTriangle(t), WithShaderCode(litShader, ""), WithSharedBindGroups(camera), WithBindGroups(other))
	require.NoError(t, err)
	require.NoError(t, inline.Init(fake, pm, registry))
	shared := inline.Entry()
	require.Same(t, shared, watched.Entry())

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(litShader, "vec2f(0.5)", "vec2f(0.75)", 1)), 0o644))
	watched.(*material).reload.Store(true)
	require.NoError(t, watched.Update(fake, pm))

	assert.NotSame(t, shared, watched.Entry())
	assert.Len(t, pm.RenderEntries(), 2)
	assert.Equal(t, pipeline.StatusCompiled, shared.Status(), "the other material still draws with it")
	assert.False(t, fake.RenderPipelines[0].Released)

	inline.Release()
	assert.Len(t, pm.RenderEntries(), 1)
	assert.True(t, fake.RenderPipelines[0].Released)
}

func TestComputePassDispatch(t *testing.T) {
	fake := backendtest.New()
	pm := newManager(fake)
	state, err := binding.NewBufferBinding("particles",
		binding.WithStorage(binding.AccessReadWrite),
		binding.WithField("position", layout.ArrayOf(layout.TypeVec4f, 100), layout.Value{}))
	require.NoError(t, err)
	group := bind_group.NewBindGroup(3, bind_group.WithLabel("particles"), bind_group.WithBindings(state))

	cp, err := NewComputePass(particleShader, WithComputeName("simulate"), WithComputeBindGroups(group))
	require.NoError(t, err)
	assert.Equal(t, 0, group.Index())

	pass := backendtest.ComputePass{Pass: &backendtest.Pass{}}
	assert.False(t, cp.DispatchInvocations(pass, pm, 100))

	require.NoError(t, cp.Init(fake, pm, NewRegistry()))
	assert.Equal(t, "simulate", cp.Entry().EntryPoint())
	require.True(t, cp.DispatchInvocations(pass, pm, 100))
	assert.Equal(t, []string{
		"pipeline simulate Compute Pipeline",
		"group 0 particles",
		"dispatch 2 1 1",
	}, pass.Calls)

	require.NoError(t, cp.Update(fake))
	assert.Len(t, fake.ComputePipelines, 1)
	cp.Release()
	assert.Nil(t, state.Buffer())
	assert.Empty(t, pm.ComputeEntries())
	assert.True(t, fake.ComputePipelines[0].Released)
}
