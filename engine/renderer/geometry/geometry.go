// Package geometry describes vertex data: attributes grouped into vertex buffers, the matching WGSL
// vertex input struct, the pipeline's vertex buffer layouts and the GPU buffers holding the data.
package geometry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

var (
	// ErrMissingPosition is returned when a geometry has no position attribute.
	ErrMissingPosition = errors.New("geometry has no position attribute")
	// ErrVertexCount is returned when attributes of one vertex buffer hold different vertex counts.
	ErrVertexCount = errors.New("attribute vertex counts differ")
	// ErrAttributeType is returned for attribute types that have no vertex format.
	ErrAttributeType = errors.New("attribute type has no vertex format")
)

// vertexFormatInfo holds the wgpu vertex format and its byte size for offset calculation.
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// vertexFormats maps attribute types to their vertex format and byte size.
var vertexFormats = map[layout.WGSLType]vertexFormatInfo{
	layout.TypeF32:   {wgpu.VertexFormatFloat32, 4},
	layout.TypeVec2f: {wgpu.VertexFormatFloat32x2, 8},
	layout.TypeVec3f: {wgpu.VertexFormatFloat32x3, 12},
	layout.TypeVec4f: {wgpu.VertexFormatFloat32x4, 16},
	layout.TypeI32:   {wgpu.VertexFormatSint32, 4},
	layout.TypeVec2i: {wgpu.VertexFormatSint32x2, 8},
	layout.TypeVec3i: {wgpu.VertexFormatSint32x3, 12},
	layout.TypeVec4i: {wgpu.VertexFormatSint32x4, 16},
	layout.TypeU32:   {wgpu.VertexFormatUint32, 4},
	layout.TypeVec2u: {wgpu.VertexFormatUint32x2, 8},
	layout.TypeVec3u: {wgpu.VertexFormatUint32x3, 12},
	layout.TypeVec4u: {wgpu.VertexFormatUint32x4, 16},
}

// Attribute is one vertex attribute and its data for every vertex, components back to back.
type Attribute struct {
	Name string
	Type layout.WGSLType
	Data layout.Value
}

// VertexBuffer groups attributes stored interleaved in one GPU buffer.
type VertexBuffer struct {
	Label      string
	StepMode   wgpu.VertexStepMode
	Attributes []Attribute
}

// geometry is the unexported implementation of Geometry.
type geometry struct {
	id            string
	buffers       []VertexBuffer
	indices       []uint32
	instanceCount uint32

	// counts holds the number of vertices (or instances) per vertex buffer.
	counts []int
	// data holds each vertex buffer's interleaved bytes.
	data [][]byte
	// layouts are the vertex buffer layouts with shader locations assigned.
	layouts []wgpu.VertexBufferLayout

	gpuBuffers  []backend.Buffer
	indexBuffer backend.Buffer
}

// Geometry is the vertex side of a draw: the attribute declaration text and vertex buffer layouts
// pipelines are built against, and the GPU buffers a draw binds.
type Geometry interface {
	// ID returns the geometry identifier used as its cache key.
	//
	// Returns:
	//   - string: the identifier
	ID() string

	// VertexCount returns the number of vertices in the first per-vertex buffer.
	//
	// Returns:
	//   - int: the vertex count
	VertexCount() int

	// InstanceCount returns the number of instances drawn.
	//
	// Returns:
	//   - uint32: the instance count, at least 1
	InstanceCount() uint32

	// SetInstanceCount sets the number of instances drawn.
	//
	// Parameters:
	//   - n: the instance count; 0 is treated as 1
	SetInstanceCount(n uint32)

	// AttributeText returns the WGSL vertex input struct with @location attributes, numbered across
	// all vertex buffers.
	//
	// Returns:
	//   - string: the struct declaration
	AttributeText() string

	// Layouts returns one vertex buffer layout per vertex buffer with shader locations assigned by a
	// counter increasing across buffers.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the layouts
	Layouts() []wgpu.VertexBufferLayout

	// Created reports whether the GPU buffers exist.
	//
	// Returns:
	//   - bool: true after Create and before Release or LoseContext
	Created() bool

	// Create uploads vertex and index data to new GPU buffers.
	//
	// Parameters:
	//   - b: the backend to allocate with
	//
	// Returns:
	//   - error: an allocation or upload error
	Create(b backend.Backend) error

	// Draw binds the vertex and index buffers and issues the draw.
	//
	// Parameters:
	//   - pass: the render pass to record into
	Draw(pass backend.RenderPass)

	// Release frees the GPU buffers.
	Release()

	// LoseContext drops the GPU buffers without releasing them.
	LoseContext()
}

var _ Geometry = &geometry{}

// VertexInputStruct is the WGSL type name of the generated vertex input struct.
const VertexInputStruct = "VertexInput"

// NewGeometry builds a geometry from vertex buffers added with WithVertexBuffer.
//
// Parameters:
//   - options: functional options for id, vertex buffers, indices and instances
//
// Returns:
//   - Geometry: the geometry
//   - error: ErrMissingPosition, ErrVertexCount or ErrAttributeType
func NewGeometry(options ...GeometryBuilderOption) (Geometry, error) {
	g := &geometry{
		id:            uuid.NewString(),
		instanceCount: 1,
	}
	for _, opt := range options {
		opt(g)
	}

	hasPosition := false
	location := uint32(0)
	for bi := range g.buffers {
		buf := &g.buffers[bi]
		if buf.Label == "" {
			buf.Label = fmt.Sprintf("%s Vertex Buffer %d", g.id, bi)
		}

		count := -1
		attrs := make([]wgpu.VertexAttribute, 0, len(buf.Attributes))
		var offset uint64
		for ai := range buf.Attributes {
			a := &buf.Attributes[ai]
			if a.Name == "position" {
				hasPosition = true
				if a.Type != layout.TypeVec3f {
					common.Logger().Warn("position attribute must be vec3f, correcting declared type",
						"geometry", g.id, "declared", a.Type.String())
					a.Type = layout.TypeVec3f
				}
			}
			info, ok := vertexFormats[a.Type]
			if !ok {
				return nil, fmt.Errorf("%w: %s %s", ErrAttributeType, a.Name, a.Type)
			}

			n := a.Data.Len() / a.Type.Components()
			if count >= 0 && n != count {
				return nil, fmt.Errorf("%w: %s has %d, expected %d", ErrVertexCount, a.Name, n, count)
			}
			count = n

			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         info.format,
				Offset:         offset,
				ShaderLocation: location,
			})
			offset += info.size
			location++
		}

		g.counts = append(g.counts, max(count, 0))
		g.layouts = append(g.layouts, wgpu.VertexBufferLayout{
			ArrayStride: offset,
			StepMode:    common.Coalesce(buf.StepMode, wgpu.VertexStepModeVertex),
			Attributes:  attrs,
		})
		g.data = append(g.data, interleave(buf.Attributes, max(count, 0), int(offset)))
	}
	if !hasPosition {
		return nil, fmt.Errorf("geometry %s: %w", g.id, ErrMissingPosition)
	}
	return g, nil
}

// interleave packs every attribute of a vertex buffer into one stride per vertex.
func interleave(attrs []Attribute, count, stride int) []byte {
	arena := layout.NewArena(count * stride)
	cursor := arena.Cursor(0)
	words := make([][]uint32, len(attrs))
	for i, a := range attrs {
		words[i] = a.Data.Words(a.Type.Kind())
	}
	for v := range count {
		for i, a := range attrs {
			n := a.Type.Components()
			// Bounds hold by construction: count*stride covers every attribute.
			_ = cursor.PutWords(words[i][v*n : (v+1)*n])
		}
	}
	return arena.Bytes()
}

func (g *geometry) ID() string {
	return g.id
}

func (g *geometry) VertexCount() int {
	for i, l := range g.layouts {
		if l.StepMode == wgpu.VertexStepModeVertex {
			return g.counts[i]
		}
	}
	return 0
}

func (g *geometry) InstanceCount() uint32 {
	return g.instanceCount
}

func (g *geometry) SetInstanceCount(n uint32) {
	g.instanceCount = max(n, 1)
}

func (g *geometry) AttributeText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s {\n", VertexInputStruct)
	location := 0
	for _, buf := range g.buffers {
		for _, a := range buf.Attributes {
			fmt.Fprintf(&sb, "\t@location(%d) %s: %s,\n", location, a.Name, a.Type)
			location++
		}
	}
	sb.WriteString("}")
	return sb.String()
}

func (g *geometry) Layouts() []wgpu.VertexBufferLayout {
	return g.layouts
}

func (g *geometry) Created() bool {
	return len(g.gpuBuffers) == len(g.buffers) && (len(g.indices) == 0 || g.indexBuffer != nil)
}

func (g *geometry) Create(b backend.Backend) error {
	if g.Created() {
		return nil
	}
	g.Release()

	for i, buf := range g.buffers {
		gpu, err := uploadBuffer(b, buf.Label, g.data[i], wgpu.BufferUsageVertex|wgpu.BufferUsageCopyDst)
		if err != nil {
			g.Release()
			return err
		}
		g.gpuBuffers = append(g.gpuBuffers, gpu)
	}
	if len(g.indices) > 0 {
		idx, err := uploadBuffer(b, g.id+" Index Buffer", common.SliceToBytes(g.indices), wgpu.BufferUsageIndex|wgpu.BufferUsageCopyDst)
		if err != nil {
			g.Release()
			return err
		}
		g.indexBuffer = idx
	}
	return nil
}

func uploadBuffer(b backend.Backend, label string, data []byte, usage wgpu.BufferUsage) (backend.Buffer, error) {
	size := (uint64(len(data)) + 3) &^ 3
	buf, err := b.CreateBuffer(backend.BufferDescriptor{
		Label: label,
		Size:  max(size, 4),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	if len(data) > 0 {
		if err := b.WriteBuffer(buf, 0, data); err != nil {
			buf.Release()
			return nil, fmt.Errorf("failed to upload %s: %w", label, err)
		}
	}
	return buf, nil
}

func (g *geometry) Draw(pass backend.RenderPass) {
	for i, buf := range g.gpuBuffers {
		pass.SetVertexBuffer(uint32(i), buf)
	}
	if g.indexBuffer != nil {
		pass.SetIndexBuffer(g.indexBuffer, wgpu.IndexFormatUint32)
		pass.DrawIndexed(uint32(len(g.indices)), g.instanceCount)
		return
	}
	pass.Draw(uint32(g.VertexCount()), g.instanceCount)
}

func (g *geometry) Release() {
	for _, buf := range g.gpuBuffers {
		buf.Release()
	}
	g.gpuBuffers = nil
	if g.indexBuffer != nil {
		g.indexBuffer.Release()
		g.indexBuffer = nil
	}
}

func (g *geometry) LoseContext() {
	g.gpuBuffers = nil
	g.indexBuffer = nil
}
