package pipeline

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ManagerBuilderOption is a functional option used to configure a Manager during construction.
type ManagerBuilderOption func(*manager)

// WithAsyncCompile compiles pipelines on a worker pool instead of inline.
//
// Parameters:
//   - workers: the pool size; zero or less keeps compiles synchronous
//
// Returns:
//   - ManagerBuilderOption: a function that enables asynchronous compiles
func WithAsyncCompile(workers int) ManagerBuilderOption {
	return func(m *manager) {
		m.asyncWorkers = max(workers, 0)
	}
}

// WithDefaultTargetFormat sets the color target format of render states that leave it unset, normally
// the surface format.
//
// Parameters:
//   - format: the color attachment format
//
// Returns:
//   - ManagerBuilderOption: a function that sets the default target format
func WithDefaultTargetFormat(format wgpu.TextureFormat) ManagerBuilderOption {
	return func(m *manager) {
		m.targetFormat = format
	}
}

// WithDefaultSampleCount sets the multisample count of render states that leave it unset.
//
// Parameters:
//   - count: 1 or 4
//
// Returns:
//   - ManagerBuilderOption: a function that sets the default sample count
func WithDefaultSampleCount(count uint32) ManagerBuilderOption {
	return func(m *manager) {
		m.sampleCount = max(count, 1)
	}
}

// WithChunks expands `#include <name>` lines in stage bodies from the given registry.
//
// Parameters:
//   - chunks: the chunk registry
//
// Returns:
//   - ManagerBuilderOption: a function that sets the chunk registry
func WithChunks(chunks *shader.Chunks) ManagerBuilderOption {
	return func(m *manager) {
		m.chunks = chunks
	}
}

// WithDiagnostics toggles running the WGSL front end over every module before creating it.
//
// Parameters:
//   - enabled: true to log compile diagnostics
//
// Returns:
//   - ManagerBuilderOption: a function that sets the diagnostics flag
func WithDiagnostics(enabled bool) ManagerBuilderOption {
	return func(m *manager) {
		m.compiler.diagnostics = enabled
	}
}
