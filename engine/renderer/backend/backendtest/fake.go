// Package backendtest provides an in-memory backend.Backend that records every call, for tests that
// exercise bindings, bind groups and pipelines without a GPU.
package backendtest

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Handle is embedded by every fake resource.
type Handle struct {
	Label    string
	Released bool
}

func (h *Handle) Release() { h.Released = true }

// Buffer is a fake GPU buffer whose contents follow WriteBuffer calls.
type Buffer struct {
	Handle
	Data  []byte
	usage wgpu.BufferUsage
}

func (b *Buffer) Size() uint64            { return uint64(len(b.Data)) }
func (b *Buffer) Usage() wgpu.BufferUsage { return b.usage }

// Texture is a fake texture.
type Texture struct {
	Handle
	Desc   backend.TextureDescriptor
	Pixels []byte
}

func (t *Texture) Width() uint32              { return t.Desc.Width }
func (t *Texture) Height() uint32             { return t.Desc.Height }
func (t *Texture) Format() wgpu.TextureFormat { return t.Desc.Format }

// Sampler is a fake sampler.
type Sampler struct {
	Handle
	Desc backend.SamplerDescriptor
}

// BindGroupLayout is a fake layout keeping its entries.
type BindGroupLayout struct {
	Handle
	Entries []wgpu.BindGroupLayoutEntry
}

// BindGroup is a fake bind group keeping its entries and layout.
type BindGroup struct {
	Handle
	Layout  *BindGroupLayout
	Entries []backend.BindGroupEntry
}

// ShaderModule is a fake shader module keeping its source.
type ShaderModule struct {
	Handle
	Code string
}

// RenderPipeline is a fake render pipeline keeping its descriptor.
type RenderPipeline struct {
	Handle
	Desc backend.RenderPipelineDescriptor
}

// ComputePipeline is a fake compute pipeline keeping its descriptor.
type ComputePipeline struct {
	Handle
	Desc backend.ComputePipelineDescriptor
}

// Write is one recorded WriteBuffer call.
type Write struct {
	Buffer *Buffer
	Offset uint64
	Data   []byte
}

// Backend records resource creation and uploads. Setting one of the Fail fields makes the matching
// Create call return that error. All methods are safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	Buffers          []*Buffer
	Textures         []*Texture
	Samplers         []*Sampler
	Layouts          []*BindGroupLayout
	BindGroups       []*BindGroup
	Modules          []*ShaderModule
	RenderPipelines  []*RenderPipeline
	ComputePipelines []*ComputePipeline
	Writes           []Write
	TextureWrites    int
	Readbacks        int

	FailBuffer          error
	FailShaderModule    error
	FailRenderPipeline  error
	FailComputePipeline error

	// PipelineHook, when set, runs inside CreateRenderPipeline and CreateComputePipeline before the
	// pipeline is recorded. Tests use it to hold an asynchronous compile open.
	PipelineHook func()
}

var _ backend.Backend = &Backend{}

// New returns an empty fake backend.
func New() *Backend {
	return &Backend{}
}

func (f *Backend) CreateBuffer(desc backend.BufferDescriptor) (backend.Buffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBuffer != nil {
		return nil, f.FailBuffer
	}
	b := &Buffer{Handle: Handle{Label: desc.Label}, Data: make([]byte, desc.Size), usage: desc.Usage}
	f.Buffers = append(f.Buffers, b)
	return b, nil
}

func (f *Backend) CreateTexture(desc backend.TextureDescriptor) (backend.Texture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &Texture{Handle: Handle{Label: desc.Label}, Desc: desc}
	f.Textures = append(f.Textures, t)
	return t, nil
}

func (f *Backend) CreateSampler(desc backend.SamplerDescriptor) (backend.Sampler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &Sampler{Handle: Handle{Label: desc.Label}, Desc: desc}
	f.Samplers = append(f.Samplers, s)
	return s, nil
}

func (f *Backend) CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (backend.BindGroupLayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := &BindGroupLayout{Handle: Handle{Label: label}, Entries: append([]wgpu.BindGroupLayoutEntry(nil), entries...)}
	f.Layouts = append(f.Layouts, l)
	return l, nil
}

func (f *Backend) CreateBindGroup(label string, layout backend.BindGroupLayout, entries []backend.BindGroupEntry) (backend.BindGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := layout.(*BindGroupLayout)
	if !ok {
		return nil, backend.ErrForeignHandle
	}
	if l.Released {
		return nil, backend.ErrReleasedHandle
	}
	if len(entries) != len(l.Entries) {
		return nil, fmt.Errorf("bind group %s has %d entries, layout expects %d", label, len(entries), len(l.Entries))
	}
	g := &BindGroup{Handle: Handle{Label: label}, Layout: l, Entries: append([]backend.BindGroupEntry(nil), entries...)}
	f.BindGroups = append(f.BindGroups, g)
	return g, nil
}

func (f *Backend) CreateShaderModule(label, code string) (backend.ShaderModule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailShaderModule != nil {
		return nil, f.FailShaderModule
	}
	m := &ShaderModule{Handle: Handle{Label: label}, Code: code}
	f.Modules = append(f.Modules, m)
	return m, nil
}

func (f *Backend) CreateRenderPipeline(desc backend.RenderPipelineDescriptor) (backend.RenderPipeline, error) {
	f.mu.Lock()
	hook := f.PipelineHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRenderPipeline != nil {
		return nil, f.FailRenderPipeline
	}
	p := &RenderPipeline{Handle: Handle{Label: desc.Label}, Desc: desc}
	f.RenderPipelines = append(f.RenderPipelines, p)
	return p, nil
}

func (f *Backend) CreateComputePipeline(desc backend.ComputePipelineDescriptor) (backend.ComputePipeline, error) {
	f.mu.Lock()
	hook := f.PipelineHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailComputePipeline != nil {
		return nil, f.FailComputePipeline
	}
	p := &ComputePipeline{Handle: Handle{Label: desc.Label}, Desc: desc}
	f.ComputePipelines = append(f.ComputePipelines, p)
	return p, nil
}

func (f *Backend) WriteBuffer(buf backend.Buffer, offset uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := buf.(*Buffer)
	if !ok {
		return backend.ErrForeignHandle
	}
	if b.Released {
		return backend.ErrReleasedHandle
	}
	if offset+uint64(len(data)) > uint64(len(b.Data)) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %s of %d bytes", len(data), offset, b.Label, len(b.Data))
	}
	copy(b.Data[offset:], data)
	f.Writes = append(f.Writes, Write{Buffer: b, Offset: offset, Data: append([]byte(nil), data...)})
	return nil
}

func (f *Backend) WriteTexture(tex backend.Texture, pixels []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := tex.(*Texture)
	if !ok {
		return backend.ErrForeignHandle
	}
	t.Pixels = append([]byte(nil), pixels...)
	f.TextureWrites++
	return nil
}

// ReadBuffer returns the contents of src, as if the GPU had copied it into dst.
func (f *Backend) ReadBuffer(src, dst backend.Buffer) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := src.(*Buffer)
	if !ok {
		return nil, backend.ErrForeignHandle
	}
	d, ok := dst.(*Buffer)
	if !ok {
		return nil, backend.ErrForeignHandle
	}
	n := min(len(s.Data), len(d.Data))
	copy(d.Data, s.Data[:n])
	f.Readbacks++
	return append([]byte(nil), s.Data[:n]...), nil
}

// SetData overwrites a fake buffer's contents, standing in for a GPU-side write by a shader.
func (f *Backend) SetData(buf backend.Buffer, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(buf.(*Buffer).Data, data)
}

// RenderPipelineCount returns the number of render pipelines created so far.
func (f *Backend) RenderPipelineCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.RenderPipelines)
}

// ComputePipelineCount returns the number of compute pipelines created so far.
func (f *Backend) ComputePipelineCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ComputePipelines)
}

// WriteCount returns the number of buffer writes recorded so far.
func (f *Backend) WriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Writes)
}

// LastModule returns the most recently created shader module, or nil.
func (f *Backend) LastModule() *ShaderModule {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Modules) == 0 {
		return nil
	}
	return f.Modules[len(f.Modules)-1]
}
