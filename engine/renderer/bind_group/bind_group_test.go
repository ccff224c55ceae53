package bind_group

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUniform(t *testing.T, name string) binding.BufferBinding {
	t.Helper()
	b, err := binding.NewBufferBinding(name,
		binding.WithField("color", layout.Of(layout.TypeVec4f), layout.Vec4(1, 1, 1, 1)),
		binding.WithField("roughness", layout.Of(layout.TypeF32), layout.Float(0.5)),
	)
	require.NoError(t, err)
	return b
}

func image(w, h uint32) common.TextureStagingData {
	return common.TextureStagingData{Pixels: make([]byte, w*h*4), Width: w, Height: h}
}

func newTexture(t *testing.T, opts ...binding.TextureBindingBuilderOption) binding.TextureBinding {
	t.Helper()
	opts = append([]binding.TextureBindingBuilderOption{binding.WithSampler(common.SamplerStagingData{})}, opts...)
	tb, err := binding.NewTextureBinding("albedo", opts...)
	require.NoError(t, err)
	return tb
}

func TestDeclarationSlots(t *testing.T) {
	sampler := binding.NewSamplerBinding("nearest", common.SamplerStagingData{}, wgpu.ShaderStageNone)
	g := NewBindGroup(2, WithBindings(newUniform(t, "material"), newTexture(t), sampler))

	decls := g.Declarations()
	require.Len(t, decls, 4)
	names := make([]string, len(decls))
	for i, d := range decls {
		assert.Equal(t, 2, d.Group)
		assert.Equal(t, uint32(i), d.Binding)
		names[i] = d.Name
	}
	assert.Equal(t, []string{"material", "albedo", "albedoSampler", "nearest"}, names)
	assert.Same(t, decls[1].Owner, decls[2].Owner, "texture and its sampler come from one binding")
}

func TestCreateGatedOnTextures(t *testing.T) {
	fake := backendtest.New()
	tex := newTexture(t)
	g := NewBindGroup(1, WithBindings(newUniform(t, "material"), tex))

	assert.False(t, g.ShouldCreate())
	require.NoError(t, g.Update(fake))
	assert.Nil(t, g.Group())
	assert.Empty(t, fake.BindGroups)
	assert.ErrorIs(t, g.Create(fake), ErrNotReady)

	require.NoError(t, tex.SetTexture(image(2, 2)))
	assert.True(t, g.ShouldCreate())
	require.NoError(t, g.Update(fake))
	require.NotNil(t, g.Group())
	assert.False(t, g.ShouldCreate())

	require.Len(t, fake.Layouts, 1)
	entries := fake.Layouts[0].Entries
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, uint32(i), e.Binding)
	}
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, entries[1].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entries[2].Sampler.Type)

	require.Len(t, fake.BindGroups, 1)
	res := fake.BindGroups[0].Entries
	require.Len(t, res, 3)
	assert.Equal(t, fake.Buffers[0], res[0].Buffer)
	assert.Equal(t, fake.Textures[0], res[1].Texture)
	assert.Equal(t, fake.Samplers[0], res[2].Sampler)
}

func TestCreateWithoutBindings(t *testing.T) {
	g := NewBindGroup(0)
	assert.False(t, g.ShouldCreate())
	assert.ErrorIs(t, g.Create(backendtest.New()), ErrNoBindings)
}

func TestUpdateUploadsChangedBuffers(t *testing.T) {
	fake := backendtest.New()
	material := newUniform(t, "material")
	g := NewBindGroup(1, WithBindings(material))
	require.NoError(t, g.Create(fake))
	writes := fake.WriteCount()

	require.NoError(t, g.Update(fake))
	assert.Equal(t, writes, fake.WriteCount())

	require.NoError(t, material.Set("roughness", layout.Float(0.9)))
	require.NoError(t, g.Update(fake))
	assert.Equal(t, writes+1, fake.WriteCount())
	assert.Len(t, fake.BindGroups, 1, "content changes keep the bind group")
}

func TestResourceSwapResetsBindGroupOnly(t *testing.T) {
	fake := backendtest.New()
	tex := newTexture(t, binding.WithImage(image(2, 2)))
	g := NewBindGroup(1, WithBindings(tex))
	require.NoError(t, g.Create(fake))

	require.NoError(t, tex.SetTexture(image(8, 8)))
	require.NoError(t, g.Update(fake))

	assert.Len(t, fake.Layouts, 1)
	require.Len(t, fake.BindGroups, 2)
	assert.True(t, fake.BindGroups[0].Released)
	assert.Equal(t, tex.Texture(), fake.BindGroups[1].Entries[0].Texture)
	assert.False(t, g.NeedsPipelineFlush())
}

func TestKindChangeResetsLayout(t *testing.T) {
	fake := backendtest.New()
	tex := newTexture(t, binding.WithImage(image(2, 2)))
	g := NewBindGroup(1, WithBindings(tex))
	require.NoError(t, g.Create(fake))

	tex.SetTextureKind(binding.TextureDepth)
	require.NoError(t, g.Update(fake))

	require.Len(t, fake.Layouts, 2)
	assert.True(t, fake.Layouts[0].Released)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, fake.Layouts[1].Entries[0].Texture.SampleType)
	assert.True(t, g.NeedsPipelineFlush())

	g.ClearPipelineFlush()
	assert.False(t, g.NeedsPipelineFlush())
}

func TestCloneSharesResources(t *testing.T) {
	fake := backendtest.New()
	ping := newUniform(t, "state")
	g := NewBindGroup(0, WithBindings(ping))
	require.NoError(t, g.Create(fake))
	buffers := len(fake.Buffers)

	clone, err := g.Clone(nil, true)
	require.NoError(t, err)
	assert.NotEqual(t, g.ID(), clone.ID())
	assert.Equal(t, g.Index(), clone.Index())
	assert.True(t, clone.ShouldCreate())

	require.NoError(t, clone.Create(fake))
	assert.Len(t, fake.Buffers, buffers, "no buffer is re-allocated")
	assert.Len(t, fake.Layouts, 1)
	assert.Same(t, g.Layout(), clone.Layout())
	require.Len(t, fake.BindGroups, 2)
	assert.Equal(t, fake.BindGroups[0].Entries[0].Buffer, fake.BindGroups[1].Entries[0].Buffer)

	pong := newUniform(t, "state")
	swapped, err := g.Clone([]binding.Binding{pong}, true)
	require.NoError(t, err)
	require.NoError(t, swapped.Create(fake))
	assert.Len(t, fake.Buffers, buffers+1)
	assert.Len(t, fake.Layouts, 1)

	swapped.Destroy()
	assert.False(t, fake.Layouts[0].Released, "a kept layout belongs to the source")
}

func TestCloneRejectsKindMismatch(t *testing.T) {
	g := NewBindGroup(0, WithBindings(newUniform(t, "state")))
	require.NoError(t, g.Create(backendtest.New()))

	_, err := g.Clone([]binding.Binding{newTexture(t, binding.WithImage(image(1, 1)))}, true)
	assert.ErrorIs(t, err, ErrLayoutKindMismatch)

	_, err = g.Clone([]binding.Binding{newTexture(t, binding.WithImage(image(1, 1)))}, false)
	assert.NoError(t, err)
}

func TestDestroyReleasesEverything(t *testing.T) {
	fake := backendtest.New()
	g := NewBindGroup(0, WithBindings(newUniform(t, "state"), newTexture(t, binding.WithImage(image(1, 1)))))
	require.NoError(t, g.Create(fake))

	g.Destroy()
	assert.Nil(t, g.Group())
	assert.Nil(t, g.Layout())
	assert.True(t, fake.BindGroups[0].Released)
	assert.True(t, fake.Layouts[0].Released)
	assert.True(t, fake.Buffers[0].Released)
	assert.True(t, fake.Textures[0].Released)
	assert.True(t, fake.Samplers[0].Released)
}

func TestContextLossAndRestore(t *testing.T) {
	fake := backendtest.New()
	state := newUniform(t, "state")
	g := NewBindGroup(0, WithBindings(state))
	require.NoError(t, g.Create(fake))

	g.LoseContext()
	assert.Nil(t, g.Group())
	assert.Nil(t, g.Layout())
	assert.False(t, state.Created())
	assert.True(t, g.NeedsPipelineFlush())

	restored := backendtest.New()
	require.NoError(t, g.RestoreContext(restored))
	assert.Len(t, restored.Buffers, 1)
	assert.Len(t, restored.Layouts, 1)
	assert.Len(t, restored.BindGroups, 1)
	assert.Equal(t, 1, restored.WriteCount(), "restored buffers are re-uploaded")
}
