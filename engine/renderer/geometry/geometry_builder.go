package geometry

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// GeometryBuilderOption is a functional option used to configure a Geometry during construction.
type GeometryBuilderOption func(*geometry)

// WithID sets the geometry identifier. Geometries sharing an ID share GPU buffers through a Cache.
//
// Parameters:
//   - id: the identifier
//
// Returns:
//   - GeometryBuilderOption: a function that sets the id
func WithID(id string) GeometryBuilderOption {
	return func(g *geometry) {
		g.id = id
	}
}

// WithVertexBuffer appends a vertex buffer whose attributes are interleaved per vertex (or per
// instance) in declaration order.
//
// Parameters:
//   - label: the buffer label, defaulted from the geometry id when empty
//   - stepMode: per-vertex or per-instance stepping
//   - attributes: the attributes stored in the buffer
//
// Returns:
//   - GeometryBuilderOption: a function that appends the vertex buffer
func WithVertexBuffer(label string, stepMode wgpu.VertexStepMode, attributes ...Attribute) GeometryBuilderOption {
	return func(g *geometry) {
		g.buffers = append(g.buffers, VertexBuffer{
			Label:      label,
			StepMode:   stepMode,
			Attributes: attributes,
		})
	}
}

// WithPositions is shorthand for a per-vertex buffer holding only vec3f positions.
//
// Parameters:
//   - positions: xyz triples
//
// Returns:
//   - GeometryBuilderOption: a function that appends the vertex buffer
func WithPositions(positions ...float32) GeometryBuilderOption {
	return WithVertexBuffer("", wgpu.VertexStepModeVertex, Attribute{
		Name: "position",
		Type: layout.TypeVec3f,
		Data: layout.Float(positions...),
	})
}

// WithIndices sets the uint32 index list; indexed geometries draw with DrawIndexed.
//
// Parameters:
//   - indices: the index list
//
// Returns:
//   - GeometryBuilderOption: a function that sets the indices
func WithIndices(indices ...uint32) GeometryBuilderOption {
	return func(g *geometry) {
		g.indices = indices
	}
}

// WithInstanceCount sets the number of instances drawn.
//
// Parameters:
//   - n: the instance count; 0 is treated as 1
//
// Returns:
//   - GeometryBuilderOption: a function that sets the instance count
func WithInstanceCount(n uint32) GeometryBuilderOption {
	return func(g *geometry) {
		g.instanceCount = max(n, 1)
	}
}
