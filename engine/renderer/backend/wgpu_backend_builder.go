package backend

import "github.com/cogentcore/webgpu/wgpu"

// WGPUBackendOption configures a WebGPU backend at creation.
type WGPUBackendOption func(*wgpuBackend)

// WithForceFallbackAdapter requests the software fallback adapter.
func WithForceFallbackAdapter(force bool) WGPUBackendOption {
	return func(b *wgpuBackend) {
		b.forceFallbackAdapter = force
	}
}

// WithMSAA sets the sample count of the main render pass.
func WithMSAA(count MSAASampleCount) WGPUBackendOption {
	return func(b *wgpuBackend) {
		b.sampleCount = count
	}
}

// WithPresentMode sets the initial present mode.
func WithPresentMode(mode PresentMode) WGPUBackendOption {
	return func(b *wgpuBackend) {
		if mode == PresentModeUncapped {
			b.presentMode = wgpu.PresentModeImmediate
			return
		}
		b.presentMode = wgpu.PresentModeFifo
	}
}

// WithClearColor sets the color the main render pass clears to.
func WithClearColor(r, g, bl, a float64) WGPUBackendOption {
	return func(b *wgpuBackend) {
		b.clearColor = wgpu.Color{R: r, G: g, B: bl, A: a}
	}
}
