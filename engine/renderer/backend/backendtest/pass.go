package backendtest

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Pass records render and compute pass commands as readable strings.
type Pass struct {
	Calls []string
}

var (
	_ backend.RenderPass  = &Pass{}
	_ backend.ComputePass = ComputePass{}
)

func label(r any) string {
	switch h := r.(type) {
	case *RenderPipeline:
		return h.Label
	case *ComputePipeline:
		return h.Label
	case *BindGroup:
		return h.Label
	case *Buffer:
		return h.Label
	}
	return "?"
}

func (p *Pass) record(format string, args ...any) {
	p.Calls = append(p.Calls, fmt.Sprintf(format, args...))
}

func (p *Pass) SetPipeline(pl backend.RenderPipeline) { p.record("pipeline %s", label(pl)) }

func (p *Pass) SetBindGroup(index uint32, group backend.BindGroup) {
	p.record("group %d %s", index, label(group))
}

func (p *Pass) SetVertexBuffer(slot uint32, buf backend.Buffer) {
	p.record("vertex %d %s", slot, label(buf))
}

func (p *Pass) SetIndexBuffer(buf backend.Buffer, _ wgpu.IndexFormat) {
	p.record("index %s", label(buf))
}

func (p *Pass) Draw(vertexCount, instanceCount uint32) {
	p.record("draw %d %d", vertexCount, instanceCount)
}

func (p *Pass) DrawIndexed(indexCount, instanceCount uint32) {
	p.record("drawIndexed %d %d", indexCount, instanceCount)
}

// ComputePass adapts Pass to backend.ComputePass, whose SetPipeline takes a compute pipeline.
type ComputePass struct {
	*Pass
}

func (c ComputePass) SetPipeline(pl backend.ComputePipeline) { c.record("pipeline %s", label(pl)) }

func (c ComputePass) DispatchWorkgroups(x, y, z uint32) {
	c.record("dispatch %d %d %d", x, y, z)
}
