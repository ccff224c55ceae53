// Package backend defines the renderer capability consumed by the binding and pipeline layers, and its
// WebGPU implementation. Everything above this package talks to the GPU only through Backend.
package backend

import (
	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Resource is any GPU object owned by the engine.
type Resource interface {
	// Release frees the GPU object. Calling Release twice is a no-op.
	Release()
}

// Buffer is a GPU buffer handle.
type Buffer interface {
	Resource

	// Size returns the buffer size in bytes.
	//
	// Returns:
	//   - uint64: the allocated size
	Size() uint64

	// Usage returns the usage flags the buffer was created with.
	//
	// Returns:
	//   - wgpu.BufferUsage: the usage bit set
	Usage() wgpu.BufferUsage
}

// Texture is a GPU texture together with its default view.
type Texture interface {
	Resource

	// Width returns the texture width in texels.
	//
	// Returns:
	//   - uint32: the width
	Width() uint32

	// Height returns the texture height in texels.
	//
	// Returns:
	//   - uint32: the height
	Height() uint32

	// Format returns the texel format.
	//
	// Returns:
	//   - wgpu.TextureFormat: the format
	Format() wgpu.TextureFormat
}

// Sampler is a GPU sampler handle.
type Sampler interface{ Resource }

// BindGroupLayout is a GPU bind group layout handle.
type BindGroupLayout interface{ Resource }

// BindGroup is a GPU bind group handle.
type BindGroup interface{ Resource }

// ShaderModule is a compiled shader module handle.
type ShaderModule interface{ Resource }

// RenderPipeline is a compiled render pipeline handle.
type RenderPipeline interface{ Resource }

// ComputePipeline is a compiled compute pipeline handle.
type ComputePipeline interface{ Resource }

// BufferDescriptor describes a buffer allocation.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage wgpu.BufferUsage
}

// TextureDescriptor describes a 2D texture allocation.
type TextureDescriptor struct {
	Label       string
	Width       uint32
	Height      uint32
	Format      wgpu.TextureFormat
	Usage       wgpu.TextureUsage
	SampleCount uint32
}

// SamplerDescriptor describes a sampler. Zero fields fall back to linear filtering with repeat addressing.
type SamplerDescriptor struct {
	Label string
	common.SamplerStagingData
}

// BindGroupEntry is one resource of a bind group. Exactly one of Buffer, Texture or Sampler is set.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	Offset  uint64
	Size    uint64
	Texture Texture
	Sampler Sampler
}

// ProgrammableStage selects a shader module entry point.
type ProgrammableStage struct {
	Module     ShaderModule
	EntryPoint string
}

// RenderPipelineDescriptor describes a render pipeline. The pipeline layout is built from Layouts in
// group index order.
type RenderPipelineDescriptor struct {
	Label         string
	Layouts       []BindGroupLayout
	Vertex        ProgrammableStage
	VertexBuffers []wgpu.VertexBufferLayout
	Fragment      *ProgrammableStage
	Targets       []wgpu.ColorTargetState
	Primitive     wgpu.PrimitiveState
	DepthStencil  *wgpu.DepthStencilState
	Multisample   wgpu.MultisampleState
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label   string
	Layouts []BindGroupLayout
	Compute ProgrammableStage
}

// RenderPass records draw commands.
type RenderPass interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, group BindGroup)
	SetVertexBuffer(slot uint32, buf Buffer)
	SetIndexBuffer(buf Buffer, format wgpu.IndexFormat)
	Draw(vertexCount, instanceCount uint32)
	DrawIndexed(indexCount, instanceCount uint32)
}

// ComputePass records dispatch commands.
type ComputePass interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, group BindGroup)
	DispatchWorkgroups(x, y, z uint32)
}

// Backend is the renderer capability: the only way the engine creates GPU objects and uploads data.
type Backend interface {
	// CreateBuffer allocates a GPU buffer.
	//
	// Parameters:
	//   - desc: the buffer size, usage and label
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: an error if the device rejects the allocation
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// CreateTexture allocates a 2D texture and its default view.
	//
	// Parameters:
	//   - desc: the texture size, format and usage
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: an error if the device rejects the allocation
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CreateSampler creates a sampler.
	//
	// Parameters:
	//   - desc: the sampler configuration
	//
	// Returns:
	//   - Sampler: the new sampler
	//   - error: an error if the device rejects the sampler
	CreateSampler(desc SamplerDescriptor) (Sampler, error)

	// CreateBindGroupLayout creates a bind group layout from ordered entries.
	//
	// Parameters:
	//   - label: debug label
	//   - entries: the layout entries with their binding slots set
	//
	// Returns:
	//   - BindGroupLayout: the new layout
	//   - error: an error if the device rejects the layout
	CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (BindGroupLayout, error)

	// CreateBindGroup creates a bind group matching a layout.
	//
	// Parameters:
	//   - label: debug label
	//   - layout: the layout the entries conform to
	//   - entries: one resource per layout entry
	//
	// Returns:
	//   - BindGroup: the new bind group
	//   - error: an error if the device rejects the bind group
	CreateBindGroup(label string, layout BindGroupLayout, entries []BindGroupEntry) (BindGroup, error)

	// CreateShaderModule compiles WGSL source into a shader module.
	//
	// Parameters:
	//   - label: debug label
	//   - code: the WGSL source
	//
	// Returns:
	//   - ShaderModule: the compiled module
	//   - error: an error if the device rejects the source
	CreateShaderModule(label, code string) (ShaderModule, error)

	// CreateRenderPipeline builds a render pipeline and its pipeline layout.
	//
	// Parameters:
	//   - desc: the pipeline description
	//
	// Returns:
	//   - RenderPipeline: the compiled pipeline
	//   - error: an error if the device rejects the descriptor
	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)

	// CreateComputePipeline builds a compute pipeline and its pipeline layout.
	//
	// Parameters:
	//   - desc: the pipeline description
	//
	// Returns:
	//   - ComputePipeline: the compiled pipeline
	//   - error: an error if the device rejects the descriptor
	CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error)

	// WriteBuffer queues an upload of data into buf at offset.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the destination byte offset
	//   - data: the bytes to upload
	//
	// Returns:
	//   - error: an error if the write cannot be queued
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// WriteTexture queues an upload of tightly packed RGBA texels covering the whole texture.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - pixels: the texel data, 4 bytes per texel
	//
	// Returns:
	//   - error: an error if the write cannot be queued
	WriteTexture(tex Texture, pixels []byte) error

	// ReadBuffer copies src into the mappable readback buffer dst and returns its contents.
	//
	// Parameters:
	//   - src: the GPU-side buffer to copy from
	//   - dst: a buffer created with MapRead|CopyDst usage
	//
	// Returns:
	//   - []byte: a copy of the readback contents
	//   - error: an error if the copy or the mapping fails
	ReadBuffer(src, dst Buffer) ([]byte, error)
}
