package backend

import "github.com/cogentcore/webgpu/wgpu"

type wgpuBuffer struct {
	buf   *wgpu.Buffer
	size  uint64
	usage wgpu.BufferUsage
}

func (b *wgpuBuffer) Size() uint64            { return b.size }
func (b *wgpuBuffer) Usage() wgpu.BufferUsage { return b.usage }

func (b *wgpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

func unwrapBuffer(b Buffer) (*wgpu.Buffer, error) {
	wb, ok := b.(*wgpuBuffer)
	if !ok {
		return nil, ErrForeignHandle
	}
	if wb.buf == nil {
		return nil, ErrReleasedHandle
	}
	return wb.buf, nil
}

type wgpuTexture struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	width  uint32
	height uint32
	format wgpu.TextureFormat
}

func (t *wgpuTexture) Width() uint32              { return t.width }
func (t *wgpuTexture) Height() uint32             { return t.height }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.format }

func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

type wgpuSampler struct {
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Release() {
	if s.sampler != nil {
		s.sampler.Release()
		s.sampler = nil
	}
}

type wgpuBindGroupLayout struct {
	layout *wgpu.BindGroupLayout
}

func (l *wgpuBindGroupLayout) Release() {
	if l.layout != nil {
		l.layout.Release()
		l.layout = nil
	}
}

type wgpuBindGroup struct {
	group *wgpu.BindGroup
}

func (g *wgpuBindGroup) Release() {
	if g.group != nil {
		g.group.Release()
		g.group = nil
	}
}

type wgpuShaderModule struct {
	module *wgpu.ShaderModule
}

func (m *wgpuShaderModule) Release() {
	if m.module != nil {
		m.module.Release()
		m.module = nil
	}
}

type wgpuRenderPipeline struct {
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
}

func (p *wgpuRenderPipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.layout != nil {
		p.layout.Release()
		p.layout = nil
	}
}

type wgpuComputePipeline struct {
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.PipelineLayout
}

func (p *wgpuComputePipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.layout != nil {
		p.layout.Release()
		p.layout = nil
	}
}

// wgpuRenderPass forwards draw commands to the frame's render pass encoder. Handles from other
// backends are ignored.
type wgpuRenderPass struct {
	pass *wgpu.RenderPassEncoder
}

var _ RenderPass = &wgpuRenderPass{}

func (r *wgpuRenderPass) SetPipeline(p RenderPipeline) {
	if rp, ok := p.(*wgpuRenderPipeline); ok && rp.pipeline != nil {
		r.pass.SetPipeline(rp.pipeline)
	}
}

func (r *wgpuRenderPass) SetBindGroup(index uint32, group BindGroup) {
	if g, ok := group.(*wgpuBindGroup); ok && g.group != nil {
		r.pass.SetBindGroup(index, g.group, nil)
	}
}

func (r *wgpuRenderPass) SetVertexBuffer(slot uint32, buf Buffer) {
	if b, err := unwrapBuffer(buf); err == nil {
		r.pass.SetVertexBuffer(slot, b, 0, wgpu.WholeSize)
	}
}

func (r *wgpuRenderPass) SetIndexBuffer(buf Buffer, format wgpu.IndexFormat) {
	if b, err := unwrapBuffer(buf); err == nil {
		r.pass.SetIndexBuffer(b, format, 0, wgpu.WholeSize)
	}
}

func (r *wgpuRenderPass) Draw(vertexCount, instanceCount uint32) {
	r.pass.Draw(vertexCount, instanceCount, 0, 0)
}

func (r *wgpuRenderPass) DrawIndexed(indexCount, instanceCount uint32) {
	r.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}

type wgpuComputePass struct {
	pass *wgpu.ComputePassEncoder
}

var _ ComputePass = &wgpuComputePass{}

func (c *wgpuComputePass) SetPipeline(p ComputePipeline) {
	if cp, ok := p.(*wgpuComputePipeline); ok && cp.pipeline != nil {
		c.pass.SetPipeline(cp.pipeline)
	}
}

func (c *wgpuComputePass) SetBindGroup(index uint32, group BindGroup) {
	if g, ok := group.(*wgpuBindGroup); ok && g.group != nil {
		c.pass.SetBindGroup(index, g.group, nil)
	}
}

func (c *wgpuComputePass) DispatchWorkgroups(x, y, z uint32) {
	c.pass.DispatchWorkgroups(x, y, z)
}
