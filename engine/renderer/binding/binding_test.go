package binding

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var identity = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func newTransform(t *testing.T, opts ...BufferBindingBuilderOption) BufferBinding {
	t.Helper()
	opts = append([]BufferBindingBuilderOption{
		WithField("model", layout.Of(layout.TypeMat4x4f), layout.Mat4(identity)),
		WithField("scale", layout.Of(layout.TypeF32), layout.Float(2)),
	}, opts...)
	b, err := NewBufferBinding("transform", opts...)
	require.NoError(t, err)
	return b
}

func float32At(data []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
}

func TestBufferBindingDeclaration(t *testing.T) {
	b := newTransform(t)

	assert.Equal(t, 80, b.Layout().Size())
	assert.Equal(t, "Transform", b.StructName())
	assert.Equal(t, "struct Transform {\n\tmodel: mat4x4f,\n\tscale: f32,\n}\nvar<uniform> transform: Transform;",
		b.DeclarationText())

	frags := b.Fragments()
	require.Len(t, frags, 1)
	assert.Equal(t, "transform", frags[0].Name)
	assert.Equal(t, "var<uniform> transform: Transform;", frags[0].VarDecl)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, frags[0].Visibility)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, frags[0].Layout.Buffer.Type)
	assert.Equal(t, uint64(80), frags[0].Layout.Buffer.MinBindingSize)
}

func TestSerializeIsIdempotent(t *testing.T) {
	b := newTransform(t)

	ranges, err := b.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []Range{{Offset: 0, Count: 64}, {Offset: 64, Count: 4}}, ranges)
	assert.True(t, b.ShouldUpdate())

	ranges, err = b.Serialize()
	require.NoError(t, err)
	assert.Empty(t, ranges)

	require.NoError(t, b.Set("scale", layout.Float(3)))
	ranges, err = b.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []Range{{Offset: 64, Count: 4}}, ranges)
	assert.Equal(t, float32(3), float32At(b.Arena().Bytes(), 64))
}

func TestCreateUploadsWholeBuffer(t *testing.T) {
	fake := backendtest.New()
	b := newTransform(t)

	require.NoError(t, b.Create(fake))
	require.True(t, b.Created())
	require.Len(t, fake.Buffers, 1)
	assert.Equal(t, uint64(80), fake.Buffers[0].Size())
	assert.Equal(t, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, fake.Buffers[0].Usage())

	require.Len(t, fake.Writes, 1)
	assert.Equal(t, uint64(0), fake.Writes[0].Offset)
	assert.Len(t, fake.Writes[0].Data, 80)
	assert.Equal(t, float32(2), float32At(fake.Writes[0].Data, 64))
	assert.False(t, b.ShouldUpdate())

	change, err := b.Update(fake)
	require.NoError(t, err)
	assert.Equal(t, ChangeNone, change)
	assert.Equal(t, 1, fake.WriteCount(), "no mutation, no upload")

	require.NoError(t, b.Set("scale", layout.Float(5)))
	_, err = b.Update(fake)
	require.NoError(t, err)
	require.Equal(t, 2, fake.WriteCount())
	assert.Len(t, fake.Writes[1].Data, 80)
	assert.Equal(t, float32(5), float32At(fake.Buffers[0].Data, 64))
}

func TestPartialUploads(t *testing.T) {
	fake := backendtest.New()
	b := newTransform(t, WithPartialUploads())
	require.NoError(t, b.Create(fake))

	require.NoError(t, b.Set("scale", layout.Float(7)))
	_, err := b.Update(fake)
	require.NoError(t, err)

	require.Equal(t, 2, fake.WriteCount())
	w := fake.Writes[1]
	assert.Equal(t, uint64(64), w.Offset)
	assert.Len(t, w.Data, 4)
	assert.Equal(t, float32(7), float32At(w.Data, 0))
}

func TestUpdateBeforeCreate(t *testing.T) {
	b := newTransform(t)
	_, err := b.Update(backendtest.New())
	assert.ErrorIs(t, err, ErrNotCreated)
}

func TestSetUnknownInput(t *testing.T) {
	b := newTransform(t)
	assert.ErrorIs(t, b.Set("missing", layout.Float(1)), ErrUnknownInput)
}

func TestUnequalArraysRejected(t *testing.T) {
	_, err := NewBufferBinding("particles",
		WithStorage(AccessRead),
		WithField("positions", layout.ArrayOf(layout.TypeVec3f, 4), layout.Value{}),
		WithField("velocities", layout.ArrayOf(layout.TypeVec3f, 5), layout.Value{}),
	)
	assert.ErrorIs(t, err, layout.ErrUnequalArrayLengths)

	b, err := NewBufferBinding("particles",
		WithStorage(AccessRead),
		WithField("positions", layout.ArrayOf(layout.TypeVec3f, 4), layout.Value{}),
		WithField("velocities", layout.ArrayOf(layout.TypeVec3f, 4), layout.Value{}),
	)
	require.NoError(t, err)
	decls := b.Fragments()[0].TypeDecls
	require.Len(t, decls, 2)
	assert.Equal(t, "ParticlesEntry", decls[0].Name)
	assert.Equal(t, "var<storage, read> particles: Particles;", b.Fragments()[0].VarDecl)
}

func TestSerializeHook(t *testing.T) {
	var seen []string
	b := newTransform(t, WithSerializeHook(func(in *Input) {
		seen = append(seen, in.Name())
		if in.Name() == "scale" {
			in.Set(layout.Float(in.Value().Floats()[0] * 10))
		}
	}))

	_, err := b.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []string{"model", "scale"}, seen)
	assert.Equal(t, float32(20), float32At(b.Arena().Bytes(), 64))

	ranges, err := b.Serialize()
	require.NoError(t, err)
	assert.Empty(t, ranges, "a Set inside the hook does not re-dirty the input")
}

func TestStorageCopyBack(t *testing.T) {
	fake := backendtest.New()
	b, err := NewBufferBinding("results",
		WithStorage(AccessReadWrite),
		WithCopyBack(),
		WithField("values", layout.ArrayOf(layout.TypeF32, 4), layout.Float(1, 2, 3, 4)),
	)
	require.NoError(t, err)

	frag := b.Fragments()[0]
	assert.Equal(t, "var<storage, read_write> results: Results;", frag.VarDecl)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, frag.Layout.Buffer.Type)
	assert.Equal(t, wgpu.ShaderStageCompute, b.Visibility())

	require.NoError(t, b.Create(fake))
	require.Len(t, fake.Buffers, 2)
	assert.NotZero(t, fake.Buffers[0].Usage()&wgpu.BufferUsageCopySrc)
	assert.Equal(t, wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst, fake.Buffers[1].Usage())

	gpu := b.Layout().NewArena()
	elem, ok := b.Layout().Field("values")
	require.True(t, ok)
	require.NoError(t, elem.Write(gpu, layout.Float(5, 6, 7, 8)))
	fake.SetData(b.Buffer(), gpu.Bytes())

	require.NoError(t, b.ReadBack(fake))
	in, ok := b.Input("values")
	require.True(t, ok)
	assert.Equal(t, []float32{5, 6, 7, 8}, in.Value().Floats())
	assert.False(t, in.ShouldUpdate())
	assert.Equal(t, 1, fake.Readbacks)
}

func TestReadBackWithoutCopyBack(t *testing.T) {
	b := newTransform(t)
	assert.ErrorIs(t, b.ReadBack(backendtest.New()), ErrNoCopyBack)
}

func TestLoseContextRecreates(t *testing.T) {
	fake := backendtest.New()
	b := newTransform(t)
	require.NoError(t, b.Create(fake))

	b.LoseContext()
	assert.False(t, b.Created())
	assert.False(t, fake.Buffers[0].Released, "lost handles are dropped, not released")

	require.NoError(t, b.Set("scale", layout.Float(9)))
	require.NoError(t, b.Create(fake))
	require.Len(t, fake.Buffers, 2)
	assert.Equal(t, float32(9), float32At(fake.Buffers[1].Data, 64))
}

func checker(w, h uint32) common.TextureStagingData {
	return common.TextureStagingData{Pixels: make([]byte, w*h*4), Width: w, Height: h}
}

func TestTextureBindingGatesOnImage(t *testing.T) {
	fake := backendtest.New()
	tb, err := NewTextureBinding("albedo", WithSampler(common.SamplerStagingData{}))
	require.NoError(t, err)
	assert.False(t, tb.Ready())

	require.NoError(t, tb.SetTexture(checker(2, 2)))
	assert.True(t, tb.Ready())

	frags := tb.Fragments()
	require.Len(t, frags, 2)
	assert.Equal(t, "var albedo: texture_2d<f32>;", frags[0].VarDecl)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, frags[0].Layout.Texture.SampleType)
	assert.Equal(t, "var albedoSampler: sampler;", frags[1].VarDecl)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, frags[1].Layout.Sampler.Type)

	require.NoError(t, tb.Create(fake))
	assert.True(t, tb.Created())
	assert.Len(t, fake.Textures, 1)
	assert.Len(t, fake.Samplers, 1)
	assert.Equal(t, 1, fake.TextureWrites)

	res := tb.Resources()
	require.Len(t, res, 2)
	assert.Equal(t, tb.Texture(), res[0].Texture)
	assert.Equal(t, tb.Sampler(), res[1].Sampler)
}

func TestTextureBindingSwaps(t *testing.T) {
	fake := backendtest.New()
	tb, err := NewTextureBinding("albedo", WithImage(checker(2, 2)))
	require.NoError(t, err)
	require.NoError(t, tb.Create(fake))

	require.NoError(t, tb.SetTexture(checker(2, 2)))
	change, err := tb.Update(fake)
	require.NoError(t, err)
	assert.Equal(t, ChangeNone, change, "same size uploads in place")
	assert.Len(t, fake.Textures, 1)
	assert.Equal(t, 2, fake.TextureWrites)

	require.NoError(t, tb.SetTexture(checker(4, 4)))
	change, err = tb.Update(fake)
	require.NoError(t, err)
	assert.Equal(t, ChangeResource, change)
	require.Len(t, fake.Textures, 2)
	assert.True(t, fake.Textures[0].Released)

	tb.SetTextureKind(TextureDepth)
	change, err = tb.Update(fake)
	require.NoError(t, err)
	assert.Equal(t, ChangeLayout, change)
	assert.Equal(t, wgpu.TextureFormatDepth32Float, tb.Texture().Format())
	assert.Equal(t, "var albedo: texture_depth_2d;", tb.Fragments()[0].VarDecl)

	change, err = tb.Update(fake)
	require.NoError(t, err)
	assert.Equal(t, ChangeNone, change)
}

func TestTextureBindingRejectsBadImage(t *testing.T) {
	tb, err := NewTextureBinding("albedo")
	require.NoError(t, err)
	err = tb.SetTexture(common.TextureStagingData{Pixels: make([]byte, 3), Width: 2, Height: 2})
	assert.ErrorIs(t, err, ErrTextureSize)

	_, err = NewTextureBinding("out", WithTextureKind(TextureStorage), WithStorageFormat("rgb9e5"))
	assert.Error(t, err)
}

func TestStorageTextureFragment(t *testing.T) {
	tb, err := NewTextureBinding("out", WithTextureKind(TextureStorage), WithStorageFormat("rgba16float"),
		WithSampler(common.SamplerStagingData{}))
	require.NoError(t, err)

	frags := tb.Fragments()
	require.Len(t, frags, 1, "storage textures have no companion sampler")
	assert.Equal(t, "var out: texture_storage_2d<rgba16float, write>;", frags[0].VarDecl)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, frags[0].Layout.StorageTexture.Format)
	assert.Equal(t, wgpu.ShaderStageCompute, tb.Visibility())
}

func TestSamplerBinding(t *testing.T) {
	fake := backendtest.New()
	sb := NewSamplerBinding("shadowSampler", common.SamplerStagingData{Compare: wgpu.CompareFunctionLess}, wgpu.ShaderStageNone)

	frag := sb.Fragments()[0]
	assert.Equal(t, "var shadowSampler: sampler_comparison;", frag.VarDecl)
	assert.Equal(t, wgpu.SamplerBindingTypeComparison, frag.Layout.Sampler.Type)
	assert.Equal(t, wgpu.ShaderStageFragment, sb.Visibility())

	require.NoError(t, sb.Create(fake))
	change, err := sb.Update(fake)
	require.NoError(t, err)
	assert.Equal(t, ChangeNone, change)

	sb.SetSampler(common.SamplerStagingData{Compare: wgpu.CompareFunctionLess, MagFilter: wgpu.FilterModeNearest})
	change, err = sb.Update(fake)
	require.NoError(t, err)
	assert.Equal(t, ChangeResource, change)
	require.Len(t, fake.Samplers, 2)
	assert.True(t, fake.Samplers[0].Released)
}
