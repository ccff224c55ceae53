package renderer

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithManagerOptions passes options through to the pipeline manager. They are applied after the
// surface format and sample count defaults, so they can override both.
//
// Parameters:
//   - options: the pipeline manager options
//
// Returns:
//   - RendererBuilderOption: a function that applies the manager options to a renderer
func WithManagerOptions(options ...pipeline.ManagerBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.managerOptions = append(r.managerOptions, options...)
	}
}

// WithHotReload watches the shader files of every material added to the renderer and rebuilds their
// pipelines when a file changes.
//
// Parameters:
//   - enabled: true to watch shader files
//
// Returns:
//   - RendererBuilderOption: a function that applies the hot reload option to a renderer
func WithHotReload(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.hotReload = enabled
	}
}
