package binding

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// TextureKind is the shape a texture takes in a bind group layout.
type TextureKind int

const (
	// TextureSampled is a filterable texture_2d<f32>.
	TextureSampled TextureKind = iota
	// TextureDepth is a texture_depth_2d, usually a shadow map.
	TextureDepth
	// TextureStorage is a write-only texture_storage_2d.
	TextureStorage
)

func (k TextureKind) String() string {
	switch k {
	case TextureDepth:
		return "depth"
	case TextureStorage:
		return "storage"
	}
	return "sampled"
}

// texelFormats maps WGSL storage texel format names to texture formats.
var texelFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba8snorm":  wgpu.TextureFormatRGBA8Snorm,
	"rgba8uint":   wgpu.TextureFormatRGBA8Uint,
	"rgba8sint":   wgpu.TextureFormatRGBA8Sint,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"r32float":    wgpu.TextureFormatR32Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"bgra8unorm":  wgpu.TextureFormatBGRA8Unorm,
}

// TextureBinding is a 2D texture, optionally paired with a sampler that occupies the next binding slot.
// The binding is not Ready until an image has been staged, which gates bind group creation on
// asynchronous image loads.
type TextureBinding interface {
	Binding

	// TextureKind returns the current texture kind.
	//
	// Returns:
	//   - TextureKind: the kind
	TextureKind() TextureKind

	// Texture returns the GPU texture, or nil before Create.
	//
	// Returns:
	//   - backend.Texture: the texture or nil
	Texture() backend.Texture

	// Sampler returns the companion sampler, or nil when there is none or before Create.
	//
	// Returns:
	//   - backend.Sampler: the sampler or nil
	Sampler() backend.Sampler

	// SetTexture stages an image. Once created, an image of the same size is uploaded in place on the
	// next Update; a different size swaps the GPU texture.
	//
	// Parameters:
	//   - data: RGBA pixels with their dimensions; depth textures only need the dimensions
	//
	// Returns:
	//   - error: ErrTextureSize if the pixels do not cover the dimensions
	SetTexture(data common.TextureStagingData) error

	// SetTextureKind changes the texture kind. The next Update recreates the texture and reports
	// ChangeLayout.
	//
	// Parameters:
	//   - kind: the new kind
	SetTextureKind(kind TextureKind)

	// SetSampler stages a new companion sampler configuration.
	//
	// Parameters:
	//   - data: the sampler configuration
	SetSampler(data common.SamplerStagingData)
}

type textureBinding struct {
	name          string
	kind          TextureKind
	visibility    wgpu.ShaderStage
	storageFormat string

	staged        *common.TextureStagingData
	pendingUpload bool
	kindChanged   bool
	texture       backend.Texture

	withSampler  bool
	samplerData  common.SamplerStagingData
	samplerDirty bool
	sampler      backend.Sampler
}

var _ TextureBinding = &textureBinding{}

// NewTextureBinding creates a texture binding.
//
// Parameters:
//   - name: the WGSL variable name; a companion sampler is named name+"Sampler"
//   - options: functional options for kind, sampler, visibility and initial image
//
// Returns:
//   - TextureBinding: the new binding
//   - error: an unknown storage format or an invalid initial image
func NewTextureBinding(name string, options ...TextureBindingBuilderOption) (TextureBinding, error) {
	t := &textureBinding{
		name:          name,
		storageFormat: "rgba8unorm",
	}
	for _, opt := range options {
		if err := opt(t); err != nil {
			return nil, fmt.Errorf("texture binding %s: %w", name, err)
		}
	}
	if t.visibility == wgpu.ShaderStageNone {
		t.visibility = wgpu.ShaderStageFragment
		if t.kind == TextureStorage {
			t.visibility = wgpu.ShaderStageCompute
		}
	}
	return t, nil
}

func (t *textureBinding) Name() string {
	return t.name
}

func (t *textureBinding) Kind() Kind {
	return KindTexture
}

func (t *textureBinding) TextureKind() TextureKind {
	return t.kind
}

func (t *textureBinding) Visibility() wgpu.ShaderStage {
	return t.visibility
}

func (t *textureBinding) Texture() backend.Texture {
	return t.texture
}

func (t *textureBinding) Sampler() backend.Sampler {
	return t.sampler
}

func (t *textureBinding) hasSampler() bool {
	return t.withSampler && t.kind != TextureStorage
}

func validateStaging(kind TextureKind, data common.TextureStagingData) error {
	if data.Width == 0 || data.Height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrTextureSize, data.Width, data.Height)
	}
	if kind == TextureDepth {
		return nil
	}
	if want := int(data.Width * data.Height * 4); len(data.Pixels) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrTextureSize, len(data.Pixels), want)
	}
	return nil
}

func (t *textureBinding) SetTexture(data common.TextureStagingData) error {
	if err := validateStaging(t.kind, data); err != nil {
		return fmt.Errorf("texture binding %s: %w", t.name, err)
	}
	t.staged = &data
	t.pendingUpload = true
	return nil
}

func (t *textureBinding) SetTextureKind(kind TextureKind) {
	if kind == t.kind {
		return
	}
	t.kind = kind
	t.kindChanged = true
}

func (t *textureBinding) SetSampler(data common.SamplerStagingData) {
	t.withSampler = true
	t.samplerData = data
	t.samplerDirty = true
}

func (t *textureBinding) Ready() bool {
	return t.staged != nil || t.texture != nil
}

func (t *textureBinding) Created() bool {
	return t.texture != nil && (!t.hasSampler() || t.sampler != nil)
}

func (t *textureBinding) descriptor() backend.TextureDescriptor {
	desc := backend.TextureDescriptor{
		Label:  t.name + " Texture",
		Width:  t.staged.Width,
		Height: t.staged.Height,
	}
	switch t.kind {
	case TextureDepth:
		desc.Format = wgpu.TextureFormatDepth32Float
		desc.Usage = wgpu.TextureUsageTextureBinding | wgpu.TextureUsageRenderAttachment
	case TextureStorage:
		desc.Format = texelFormats[t.storageFormat]
		desc.Usage = wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	default:
		desc.Format = wgpu.TextureFormatRGBA8UnormSrgb
		desc.Usage = wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	}
	return desc
}

// createTexture allocates a texture for the staged image and uploads its pixels.
func (t *textureBinding) createTexture(b backend.Backend) (backend.Texture, error) {
	if t.staged == nil {
		return nil, fmt.Errorf("texture binding %s: %w", t.name, ErrNoTexture)
	}
	tex, err := b.CreateTexture(t.descriptor())
	if err != nil {
		return nil, fmt.Errorf("texture binding %s: %w", t.name, err)
	}
	if t.kind != TextureDepth && len(t.staged.Pixels) > 0 {
		if err := b.WriteTexture(tex, t.staged.Pixels); err != nil {
			tex.Release()
			return nil, fmt.Errorf("texture binding %s: %w", t.name, err)
		}
	}
	return tex, nil
}

func (t *textureBinding) Create(b backend.Backend) error {
	if t.texture == nil {
		tex, err := t.createTexture(b)
		if err != nil {
			return err
		}
		t.texture = tex
		t.pendingUpload = false
		t.kindChanged = false
	}
	if t.hasSampler() && t.sampler == nil {
		samp, err := createSampler(b, t.name, t.samplerData)
		if err != nil {
			return err
		}
		t.sampler = samp
		t.samplerDirty = false
	}
	return nil
}

func (t *textureBinding) Update(b backend.Backend) (Change, error) {
	if t.texture == nil {
		return ChangeNone, nil
	}

	change := ChangeNone
	switch {
	case t.kindChanged:
		tex, err := t.createTexture(b)
		if err != nil {
			return ChangeNone, err
		}
		t.texture.Release()
		t.texture = tex
		t.kindChanged = false
		t.pendingUpload = false
		change = ChangeLayout
		if !t.hasSampler() && t.sampler != nil {
			t.sampler.Release()
			t.sampler = nil
		}
	case t.pendingUpload:
		sameSize := t.texture.Width() == t.staged.Width && t.texture.Height() == t.staged.Height
		if sameSize && t.kind != TextureDepth {
			if err := b.WriteTexture(t.texture, t.staged.Pixels); err != nil {
				return ChangeNone, fmt.Errorf("texture binding %s: %w", t.name, err)
			}
		} else {
			tex, err := t.createTexture(b)
			if err != nil {
				return ChangeNone, err
			}
			t.texture.Release()
			t.texture = tex
			change = ChangeResource
		}
		t.pendingUpload = false
	}

	if t.hasSampler() && (t.samplerDirty || t.sampler == nil) {
		samp, err := createSampler(b, t.name, t.samplerData)
		if err != nil {
			return change, err
		}
		if t.sampler != nil {
			t.sampler.Release()
		}
		t.sampler = samp
		t.samplerDirty = false
		change = max(change, ChangeResource)
	}
	return change, nil
}

func (t *textureBinding) textureFragment() Fragment {
	entry := wgpu.BindGroupLayoutEntry{Visibility: t.visibility}
	var wgslType string
	switch t.kind {
	case TextureDepth:
		wgslType = "texture_depth_2d"
		entry.Texture = wgpu.TextureBindingLayout{
			SampleType:    wgpu.TextureSampleTypeDepth,
			ViewDimension: wgpu.TextureViewDimension2D,
		}
	case TextureStorage:
		wgslType = fmt.Sprintf("texture_storage_2d<%s, write>", t.storageFormat)
		entry.StorageTexture = wgpu.StorageTextureBindingLayout{
			Access:        wgpu.StorageTextureAccessWriteOnly,
			Format:        texelFormats[t.storageFormat],
			ViewDimension: wgpu.TextureViewDimension2D,
		}
	default:
		wgslType = "texture_2d<f32>"
		entry.Texture = wgpu.TextureBindingLayout{
			SampleType:    wgpu.TextureSampleTypeFloat,
			ViewDimension: wgpu.TextureViewDimension2D,
		}
	}
	return Fragment{
		Name:       t.name,
		VarDecl:    fmt.Sprintf("var %s: %s;", t.name, wgslType),
		Visibility: t.visibility,
		Layout:     entry,
	}
}

func (t *textureBinding) Fragments() []Fragment {
	frags := []Fragment{t.textureFragment()}
	if t.hasSampler() {
		frags = append(frags, samplerFragment(t.name+"Sampler", t.visibility, t.samplerData))
	}
	return frags
}

func (t *textureBinding) Resources() []backend.BindGroupEntry {
	entries := []backend.BindGroupEntry{{Texture: t.texture}}
	if t.hasSampler() {
		entries = append(entries, backend.BindGroupEntry{Sampler: t.sampler})
	}
	return entries
}

func (t *textureBinding) Release() {
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
	if t.sampler != nil {
		t.sampler.Release()
		t.sampler = nil
	}
}

func (t *textureBinding) LoseContext() {
	t.texture = nil
	t.sampler = nil
}
