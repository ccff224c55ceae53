package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/geometry"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
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
}`

func newRenderer(t *testing.T, surface *backendtest.Surface) Renderer {
	t.Helper()
	r, err := NewRenderer(surface, WithManagerOptions(pipeline.WithDiagnostics(false)))
	require.NoError(t, err)
	return r
}

func newCamera(t *testing.T) bind_group.BindGroup {
	t.Helper()
	cam, err := binding.NewBufferBinding("camera",
		binding.WithField("viewProj", layout.Of(layout.TypeMat4x4f), layout.Value{}))
	require.NoError(t, err)
	return bind_group.NewBindGroup(0, bind_group.WithLabel("camera"), bind_group.WithBindings(cam))
}

func newLitMaterial(t *testing.T, r Renderer, camera bind_group.BindGroup, options ...material.MaterialBuilderOption) material.Material {
	t.Helper()
	geo, err := r.Geometry("tri", func() (geometry.Geometry, error) {
		return geometry.NewGeometry(geometry.WithID("tri"), geometry.WithPositions(0, 0, 0, 1, 0, 0, 0, 1, 0))
	})
	require.NoError(t, err)
	tex, err := binding.NewTextureBinding("albedo",
		binding.WithSampler(common.SamplerStagingData{}),
		binding.WithImage(common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1}))
	require.NoError(t, err)
	surface := bind_group.NewBindGroup(1, bind_group.WithLabel("surface"), bind_group.WithBindings(tex))

	options = append([]material.MaterialBuilderOption{
		material.WithName("lit"),
		material.WithShaderCode(litShader, ""),
		material.WithSharedBindGroups(camera),
		material.WithBindGroups(surface),
	}, options...)
	mat, err := material.NewMaterial(geo, options...)
	require.NoError(t, err)
	return mat
}

func newParticles(t *testing.T) material.ComputePass {
	t.Helper()
	state, err := binding.NewBufferBinding("particles",
		binding.WithStorage(binding.AccessReadWrite),
		binding.WithField("position", layout.ArrayOf(layout.TypeVec4f, 100), layout.Value{}))
	require.NoError(t, err)
	group := bind_group.NewBindGroup(0, bind_group.WithLabel("particles"), bind_group.WithBindings(state))
	cp, err := material.NewComputePass(particleShader, material.WithComputeName("simulate"), material.WithComputeBindGroups(group))
	require.NoError(t, err)
	return cp
}

func TestPipelinesTargetSurface(t *testing.T) {
	surface := backendtest.NewSurface()
	surface.Format = wgpu.TextureFormatRGBA8Unorm
	surface.Samples = 4
	r := newRenderer(t, surface)
	camera := newCamera(t)
	require.NoError(t, r.AddSharedBindGroup(camera))

	require.NoError(t, r.AddMaterial(newLitMaterial(t, r, camera)))
	require.Len(t, surface.RenderPipelines, 1)
	desc := surface.RenderPipelines[0].Desc
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, desc.Targets[0].Format)
	assert.Equal(t, uint32(4), desc.Multisample.Count)
}

func TestFrameDispatchesThenDraws(t *testing.T) {
	surface := backendtest.NewSurface()
	r := newRenderer(t, surface)
	camera := newCamera(t)
	require.NoError(t, r.AddSharedBindGroup(camera))
	require.NoError(t, r.AddMaterial(newLitMaterial(t, r, camera)))
	require.NoError(t, r.AddComputePass(newParticles(t), 100))

	require.NoError(t, r.Frame())
	assert.Equal(t, []string{
		"pipeline simulate Compute Pipeline",
		"group 0 particles",
		"dispatch 2 1 1",
		"pipeline lit Render Pipeline",
		"group 0 camera",
		"group 1 surface",
		"vertex 0 tri Vertex Buffer 0",
		"draw 3 1",
	}, surface.Pass.Calls)
	assert.Equal(t, 1, surface.Frames)
	assert.Equal(t, 1, surface.Presents)
	assert.Equal(t, 1, surface.ComputePasses)

	surface.Pass.Calls = nil
	require.NoError(t, r.Frame())
	assert.Contains(t, surface.Pass.Calls, "pipeline lit Render Pipeline", "the guard resets every pass")
}

func TestSharedGroupFlushReachesEveryMaterial(t *testing.T) {
	surface := backendtest.NewSurface()
	r := newRenderer(t, surface)
	camera := newCamera(t)
	require.NoError(t, r.AddSharedBindGroup(camera))

	front := newLitMaterial(t, r, camera)
	back := newLitMaterial(t, r, camera, material.WithRenderState(pipeline.WithCullMode(wgpu.CullModeBack)))
	require.NoError(t, r.AddMaterial(front))
	require.NoError(t, r.AddMaterial(back))
	require.NotSame(t, front.Entry(), back.Entry())
	require.Len(t, surface.RenderPipelines, 2)

	require.NoError(t, camera.ResetBindGroupLayout(surface))
	require.NoError(t, r.Update())

	assert.Len(t, surface.RenderPipelines, 4)
	assert.Equal(t, pipeline.StatusCompiled, front.Entry().Status())
	assert.Equal(t, pipeline.StatusCompiled, back.Entry().Status())
	assert.False(t, camera.NeedsPipelineFlush())
}

func TestRemoveMaterialReleasesReferences(t *testing.T) {
	surface := backendtest.NewSurface()
	r := newRenderer(t, surface)
	camera := newCamera(t)
	require.NoError(t, r.AddSharedBindGroup(camera))

	mat := newLitMaterial(t, r, camera)
	require.NoError(t, r.AddMaterial(mat))
	assert.Equal(t, 2, r.Registry().Refs(camera))

	r.RemoveMaterial(mat)
	assert.Empty(t, r.Materials())
	assert.Equal(t, 1, r.Registry().Refs(camera))
	assert.False(t, mat.Geometry().Created(), "the last geometry reference frees its buffers")

	r.RemoveMaterial(mat)
	assert.Equal(t, 1, r.Registry().Refs(camera))
}

func TestContextLossAndRestore(t *testing.T) {
	surface := backendtest.NewSurface()
	r := newRenderer(t, surface)
	camera := newCamera(t)
	require.NoError(t, r.AddSharedBindGroup(camera))
	mat := newLitMaterial(t, r, camera)
	require.NoError(t, r.AddMaterial(mat))
	cp := newParticles(t)
	require.NoError(t, r.AddComputePass(cp, 64))

	r.LoseContext()
	assert.False(t, mat.Geometry().Created())
	assert.Nil(t, mat.Entry().Pipeline())
	assert.Nil(t, cp.Entry().Pipeline())
	assert.Nil(t, camera.Group())

	restored := backendtest.NewSurface()
	require.NoError(t, r.RestoreContext(restored))
	assert.Same(t, restored, r.Backend())
	assert.True(t, mat.Geometry().Created())
	assert.Equal(t, pipeline.StatusCompiled, mat.Entry().Status())
	assert.Equal(t, pipeline.StatusCompiled, cp.Entry().Status())
	assert.False(t, camera.NeedsPipelineFlush())
	assert.Len(t, restored.RenderPipelines, 1)
	assert.Len(t, restored.ComputePipelines, 1)

	require.NoError(t, r.Frame())
	assert.Len(t, restored.RenderPipelines, 1, "restored groups do not trigger a second flush")
	assert.Contains(t, restored.Pass.Calls, "draw 3 1")
}

func TestRenderReportsFrameErrors(t *testing.T) {
	surface := backendtest.NewSurface()
	r := newRenderer(t, surface)
	surface.FailBeginFrame = errors.New("surface outdated")
	assert.ErrorContains(t, r.Render(), "surface outdated")

	require.NoError(t, r.Resize(640, 480))
	assert.Equal(t, 640, surface.Width)
	assert.Equal(t, 480, surface.Height)
}

func TestClose(t *testing.T) {
	surface := backendtest.NewSurface()
	r := newRenderer(t, surface)
	camera := newCamera(t)
	require.NoError(t, r.AddSharedBindGroup(camera))
	require.NoError(t, r.AddMaterial(newLitMaterial(t, r, camera)))

	r.Close()
	assert.True(t, surface.Released)
	assert.Empty(t, r.Registry().Groups())
	assert.Nil(t, camera.Group())
	assert.True(t, surface.RenderPipelines[0].Released)
}
