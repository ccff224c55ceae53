package binding

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// TextureBindingBuilderOption is a functional option for configuring a TextureBinding.
type TextureBindingBuilderOption func(*textureBinding) error

// WithTextureKind sets the initial texture kind. Defaults to TextureSampled.
func WithTextureKind(kind TextureKind) TextureBindingBuilderOption {
	return func(t *textureBinding) error {
		t.kind = kind
		return nil
	}
}

// WithStorageFormat sets the WGSL texel format of a storage texture, e.g. "rgba8unorm".
//
// Parameters:
//   - format: the texel format name
//
// Returns:
//   - TextureBindingBuilderOption: option function to apply
func WithStorageFormat(format string) TextureBindingBuilderOption {
	return func(t *textureBinding) error {
		if _, ok := texelFormats[format]; !ok {
			return fmt.Errorf("unsupported storage texel format %q", format)
		}
		t.storageFormat = format
		return nil
	}
}

// WithSampler pairs the texture with a sampler declared in the following binding slot.
//
// Parameters:
//   - data: the sampler configuration
//
// Returns:
//   - TextureBindingBuilderOption: option function to apply
func WithSampler(data common.SamplerStagingData) TextureBindingBuilderOption {
	return func(t *textureBinding) error {
		t.withSampler = true
		t.samplerData = data
		return nil
	}
}

// WithTextureVisibility sets the stages the texture is declared in.
func WithTextureVisibility(stages wgpu.ShaderStage) TextureBindingBuilderOption {
	return func(t *textureBinding) error {
		t.visibility = stages
		return nil
	}
}

// WithImage stages the initial image. Without it the binding stays not Ready until SetTexture.
//
// Parameters:
//   - data: the RGBA pixels and dimensions
//
// Returns:
//   - TextureBindingBuilderOption: option function to apply
func WithImage(data common.TextureStagingData) TextureBindingBuilderOption {
	return func(t *textureBinding) error {
		if err := validateStaging(t.kind, data); err != nil {
			return err
		}
		t.staged = &data
		return nil
	}
}
