package material

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material, also used as the pipeline label
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithShaderCode is an option builder that sets the stage bodies inline. An empty fragment body
// reuses the vertex body, which compiles to a single shared module.
//
// Parameters:
//   - vertex: the vertex stage body
//   - fragment: the fragment stage body
//
// Returns:
//   - MaterialBuilderOption: a function that applies the shader code to a material
func WithShaderCode(vertex, fragment string) MaterialBuilderOption {
	return func(m *material) {
		m.vertexCode = vertex
		m.fragmentCode = fragment
	}
}

// WithShaderFiles is an option builder that loads the stage bodies from files at Init. The files can
// be watched for hot reload with Material.Watch.
//
// Parameters:
//   - vertexPath: the vertex body file
//   - fragmentPath: the fragment body file, empty to reuse the vertex file
//
// Returns:
//   - MaterialBuilderOption: a function that applies the shader files to a material
func WithShaderFiles(vertexPath, fragmentPath string) MaterialBuilderOption {
	return func(m *material) {
		m.vertexPath = vertexPath
		m.fragmentPath = fragmentPath
	}
}

// WithEntryPoints is an option builder that names the stage entry points instead of detecting them.
//
// Parameters:
//   - vertex: the vertex entry point
//   - fragment: the fragment entry point
//
// Returns:
//   - MaterialBuilderOption: a function that applies the entry points to a material
func WithEntryPoints(vertex, fragment string) MaterialBuilderOption {
	return func(m *material) {
		m.vertexEntry = vertex
		m.fragmentEntry = fragment
	}
}

// WithSharedBindGroups is an option builder that prepends bind groups owned by someone else, such as
// a camera group, before the material's own groups. Their indices are left untouched.
//
// Parameters:
//   - groups: the shared groups in index order
//
// Returns:
//   - MaterialBuilderOption: a function that applies the shared groups to a material
func WithSharedBindGroups(groups ...bind_group.BindGroup) MaterialBuilderOption {
	return func(m *material) {
		m.shared = append(m.shared, groups...)
	}
}

// WithBindGroups is an option builder that sets the material's own bind groups. They are re-indexed
// to follow the shared groups.
//
// Parameters:
//   - groups: the material's groups in order
//
// Returns:
//   - MaterialBuilderOption: a function that applies the bind groups to a material
func WithBindGroups(groups ...bind_group.BindGroup) MaterialBuilderOption {
	return func(m *material) {
		m.own = append(m.own, groups...)
	}
}

// WithRenderState is an option builder that sets the fixed-function state of the material's pipeline.
//
// Parameters:
//   - options: render state options applied over the defaults
//
// Returns:
//   - MaterialBuilderOption: a function that applies the render state to a material
func WithRenderState(options ...pipeline.RenderStateOption) MaterialBuilderOption {
	return func(m *material) {
		m.state = pipeline.NewRenderState(options...)
	}
}
