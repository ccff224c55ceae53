package pipeline

import "github.com/cogentcore/webgpu/wgpu"

// transparentBlend is the blend used when Transparent is set and no explicit blend is given.
var transparentBlend = wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorSrcAlpha,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
}

// RenderState is the fixed-function configuration of a render pipeline. Two entries with equal
// state and equal shader text share one pipeline.
type RenderState struct {
	CullMode  wgpu.CullMode
	Topology  wgpu.PrimitiveTopology
	FrontFace wgpu.FrontFace

	// DepthEnabled adds a depth-stencil block to the pipeline.
	DepthEnabled        bool
	DepthWriteEnabled   bool
	DepthCompare        wgpu.CompareFunction
	DepthBias           int32
	DepthBiasSlopeScale float32
	DepthFormat         wgpu.TextureFormat

	// Transparent enables alpha blending when Blend is nil.
	Transparent bool
	// Blend overrides the blend derived from Transparent.
	Blend *wgpu.BlendState

	WriteMask    wgpu.ColorWriteMask
	TargetFormat wgpu.TextureFormat
	SampleCount  uint32
}

// NewRenderState returns the default state with options applied: back faces kept, counter-clockwise
// winding, triangle lists, depth test and write with a less-than compare, opaque output.
//
// Parameters:
//   - options: functional options overriding the defaults
//
// Returns:
//   - RenderState: the configured state
func NewRenderState(options ...RenderStateOption) RenderState {
	s := RenderState{
		CullMode:          wgpu.CullModeNone,
		Topology:          wgpu.PrimitiveTopologyTriangleList,
		FrontFace:         wgpu.FrontFaceCCW,
		DepthEnabled:      true,
		DepthWriteEnabled: true,
		DepthCompare:      wgpu.CompareFunctionLess,
		DepthFormat:       wgpu.TextureFormatDepth24Plus,
		WriteMask:         wgpu.ColorWriteMaskAll,
	}
	for _, opt := range options {
		opt(&s)
	}
	return s
}

// Equal reports whether two states describe the same pipeline configuration. Explicit blends are
// compared by value.
func (s RenderState) Equal(o RenderState) bool {
	sb, ob := s.Blend, o.Blend
	s.Blend, o.Blend = nil, nil
	if s != o {
		return false
	}
	if sb == nil || ob == nil {
		return sb == ob
	}
	return *sb == *ob
}

// BlendState returns the blend applied to the color target, nil for opaque output.
func (s RenderState) BlendState() *wgpu.BlendState {
	if s.Blend != nil {
		return s.Blend
	}
	if s.Transparent {
		blend := transparentBlend
		return &blend
	}
	return nil
}

func (s RenderState) primitive() wgpu.PrimitiveState {
	return wgpu.PrimitiveState{
		Topology:  s.Topology,
		FrontFace: s.FrontFace,
		CullMode:  s.CullMode,
	}
}

func (s RenderState) target() wgpu.ColorTargetState {
	return wgpu.ColorTargetState{
		Format:    s.TargetFormat,
		Blend:     s.BlendState(),
		WriteMask: s.WriteMask,
	}
}

func (s RenderState) depthStencil() *wgpu.DepthStencilState {
	if !s.DepthEnabled {
		return nil
	}
	return &wgpu.DepthStencilState{
		Format:              s.DepthFormat,
		DepthWriteEnabled:   s.DepthWriteEnabled,
		DepthCompare:        s.DepthCompare,
		DepthBias:           s.DepthBias,
		DepthBiasSlopeScale: s.DepthBiasSlopeScale,
		StencilFront: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
		StencilBack: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
	}
}

func (s RenderState) multisample() wgpu.MultisampleState {
	return wgpu.MultisampleState{
		Count: max(s.SampleCount, 1),
		Mask:  0xFFFFFFFF,
	}
}
