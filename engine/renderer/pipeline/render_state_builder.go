package pipeline

import "github.com/cogentcore/webgpu/wgpu"

// RenderStateOption is a functional option used to configure a RenderState.
type RenderStateOption func(*RenderState)

// WithCullMode sets the cull mode.
//
// Parameters:
//   - mode: the cull mode (e.g., wgpu.CullModeNone, wgpu.CullModeFront, wgpu.CullModeBack)
//
// Returns:
//   - RenderStateOption: a function that sets the cull mode
func WithCullMode(mode wgpu.CullMode) RenderStateOption {
	return func(s *RenderState) {
		s.CullMode = mode
	}
}

// WithTopology sets the primitive topology.
//
// Parameters:
//   - topology: the primitive topology (e.g., wgpu.PrimitiveTopologyLineList)
//
// Returns:
//   - RenderStateOption: a function that sets the topology
func WithTopology(topology wgpu.PrimitiveTopology) RenderStateOption {
	return func(s *RenderState) {
		s.Topology = topology
	}
}

// WithFrontFace sets the front face winding order.
//
// Parameters:
//   - frontFace: the winding (wgpu.FrontFaceCCW or wgpu.FrontFaceCW)
//
// Returns:
//   - RenderStateOption: a function that sets the front face
func WithFrontFace(frontFace wgpu.FrontFace) RenderStateOption {
	return func(s *RenderState) {
		s.FrontFace = frontFace
	}
}

// WithDepthTestEnabled sets whether the pipeline carries a depth-stencil block.
//
// Parameters:
//   - enabled: true to depth test
//
// Returns:
//   - RenderStateOption: a function that sets the depth test state
func WithDepthTestEnabled(enabled bool) RenderStateOption {
	return func(s *RenderState) {
		s.DepthEnabled = enabled
	}
}

// WithDepthWriteEnabled sets whether passing fragments write depth.
//
// Parameters:
//   - enabled: true to write depth
//
// Returns:
//   - RenderStateOption: a function that sets the depth write state
func WithDepthWriteEnabled(enabled bool) RenderStateOption {
	return func(s *RenderState) {
		s.DepthWriteEnabled = enabled
	}
}

// WithDepthCompare sets the depth comparison.
//
// Parameters:
//   - compare: the compare function
//
// Returns:
//   - RenderStateOption: a function that sets the depth compare
func WithDepthCompare(compare wgpu.CompareFunction) RenderStateOption {
	return func(s *RenderState) {
		s.DepthCompare = compare
	}
}

// WithDepthBias sets the depth bias parameters.
//
// Parameters:
//   - bias: the constant depth bias
//   - slopeScale: the slope scale depth bias
//
// Returns:
//   - RenderStateOption: a function that sets the depth bias
func WithDepthBias(bias int32, slopeScale float32) RenderStateOption {
	return func(s *RenderState) {
		s.DepthBias = bias
		s.DepthBiasSlopeScale = slopeScale
	}
}

// WithTransparent enables standard alpha blending.
//
// Returns:
//   - RenderStateOption: a function that enables transparency
func WithTransparent() RenderStateOption {
	return func(s *RenderState) {
		s.Transparent = true
	}
}

// WithBlendState sets an explicit blend state, overriding WithTransparent.
//
// Parameters:
//   - blend: the blend state
//
// Returns:
//   - RenderStateOption: a function that sets the blend state
func WithBlendState(blend *wgpu.BlendState) RenderStateOption {
	return func(s *RenderState) {
		s.Blend = blend
	}
}

// WithWriteMask sets the color write mask.
//
// Parameters:
//   - writeMask: the color write mask
//
// Returns:
//   - RenderStateOption: a function that sets the write mask
func WithWriteMask(writeMask wgpu.ColorWriteMask) RenderStateOption {
	return func(s *RenderState) {
		s.WriteMask = writeMask
	}
}

// WithSampleCount sets the multisample count. Zero takes the manager's default.
//
// Parameters:
//   - count: 1 or 4
//
// Returns:
//   - RenderStateOption: a function that sets the sample count
func WithSampleCount(count uint32) RenderStateOption {
	return func(s *RenderState) {
		s.SampleCount = count
	}
}

// WithTargetFormat sets the color target format. Undefined takes the manager's default.
//
// Parameters:
//   - format: the color attachment format
//
// Returns:
//   - RenderStateOption: a function that sets the target format
func WithTargetFormat(format wgpu.TextureFormat) RenderStateOption {
	return func(s *RenderState) {
		s.TargetFormat = format
	}
}
