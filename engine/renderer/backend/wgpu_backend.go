package backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// SurfaceBackend is a Backend bound to a presentable window surface. It owns the per-frame command
// encoder and the main render pass.
type SurfaceBackend interface {
	Backend

	// ConfigureSurface (re)configures the swapchain, MSAA and depth attachments for a new size.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//
	// Returns:
	//   - error: an error if an attachment texture cannot be created
	ConfigureSurface(width, height int) error

	// SetPresentMode sets the present mode applied on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// SurfaceFormat returns the color format render pipelines must target.
	//
	// Returns:
	//   - wgpu.TextureFormat: the swapchain format, or RGBA8Unorm before ConfigureSurface
	SurfaceFormat() wgpu.TextureFormat

	// SampleCount returns the MSAA sample count of the main render pass.
	//
	// Returns:
	//   - uint32: the sample count
	SampleCount() uint32

	// BeginFrame acquires the next surface image and opens the main render pass.
	//
	// Returns:
	//   - RenderPass: the pass to record draws into
	//   - error: an error if no surface image is available
	BeginFrame() (RenderPass, error)

	// EndFrame closes the main render pass and submits the frame's commands.
	EndFrame()

	// Present presents the acquired surface image.
	Present()

	// BeginComputePass opens a compute pass on its own command encoder.
	//
	// Returns:
	//   - ComputePass: the pass to record dispatches into
	//   - error: an error if the command encoder cannot be created
	BeginComputePass() (ComputePass, error)

	// EndComputePass closes the open compute pass and submits it.
	EndComputePass()

	// Release frees the device, surface and attachments.
	Release()
}

type wgpuBackend struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	forceFallbackAdapter bool
	surfaceFormat        wgpu.TextureFormat
	presentMode          wgpu.PresentMode
	sampleCount          MSAASampleCount
	clearColor           wgpu.Color

	msaaTextureView      *wgpu.TextureView
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	computeEncoder *wgpu.CommandEncoder
	computePass    *wgpu.ComputePassEncoder
}

var _ SurfaceBackend = &wgpuBackend{}

// NewWGPUBackend creates a WebGPU instance, surface, adapter and device for the given surface descriptor.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, usually from the window
//   - options: functional options for adapter selection, MSAA and present mode
//
// Returns:
//   - SurfaceBackend: the ready backend; call ConfigureSurface before the first frame
//   - error: an error if no adapter or device is available
func NewWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...WGPUBackendOption) (SurfaceBackend, error) {
	runtime.LockOSThread()
	b := &wgpuBackend{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		presentMode:   wgpu.PresentModeFifo,
		sampleCount:   MSAA4x,
		surfaceFormat: wgpu.TextureFormatRGBA8Unorm,
		clearColor:    wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
	}
	for _, opt := range options {
		opt(b)
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = adapter

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()

	return b, nil
}

func (b *wgpuBackend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTextureView = nil
	}

	count := uint32(b.sampleCount)
	if count > 1 {
		view, err := b.attachmentView("MSAA Texture", width, height, b.surfaceFormat, count)
		if err != nil {
			return err
		}
		b.msaaTextureView = view
	}

	depthView, err := b.attachmentView("Depth Texture", width, height, wgpu.TextureFormatDepth24Plus, count)
	if err != nil {
		return err
	}
	b.depthTextureView = depthView

	storeOp := wgpu.StoreOpStore
	if count > 1 {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.msaaTextureView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    storeOp,
				ClearValue: b.clearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
	return nil
}

// attachmentView creates a render attachment texture and returns its view.
func (b *wgpuBackend) attachmentView(label string, width, height int, format wgpu.TextureFormat, samples uint32) (*wgpu.TextureView, error) {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	return tex.CreateView(nil)
}

func (b *wgpuBackend) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuBackend) SurfaceFormat() wgpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceFormat
}

func (b *wgpuBackend) SampleCount() uint32 {
	return uint32(b.sampleCount)
}

func (b *wgpuBackend) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", desc.Label, err)
	}
	return &wgpuBuffer{buf: buf, size: desc.Size, usage: desc.Usage}, nil
}

func (b *wgpuBackend) CreateTexture(desc TextureDescriptor) (Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     desc.Usage,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        desc.Format,
		MipLevelCount: 1,
		SampleCount:   common.Coalesce(desc.SampleCount, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %s: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create view for texture %s: %w", desc.Label, err)
	}
	return &wgpuTexture{tex: tex, view: view, width: desc.Width, height: desc.Height, format: desc.Format}, nil
}

func (b *wgpuBackend) CreateSampler(desc SamplerDescriptor) (Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := desc.SamplerStagingData
	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  common.Coalesce(s.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(s.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(s.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(s.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(s.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(s.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   s.LodMinClamp,
		LodMaxClamp:   common.Coalesce(s.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
		Compare:       s.Compare,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler %s: %w", desc.Label, err)
	}
	return &wgpuSampler{sampler: samp}, nil
}

func (b *wgpuBackend) CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (BindGroupLayout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout %s: %w", label, err)
	}
	return &wgpuBindGroupLayout{layout: layout}, nil
}

func (b *wgpuBackend) CreateBindGroup(label string, layout BindGroupLayout, entries []BindGroupEntry) (BindGroup, error) {
	l, ok := layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, ErrForeignHandle
	}
	if l.layout == nil {
		return nil, ErrReleasedHandle
	}

	converted := make([]wgpu.BindGroupEntry, len(entries))
	for i, e := range entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			buf, err := unwrapBuffer(e.Buffer)
			if err != nil {
				return nil, fmt.Errorf("binding %d: %w", e.Binding, err)
			}
			entry.Buffer = buf
			entry.Offset = e.Offset
			entry.Size = common.Coalesce(e.Size, wgpu.WholeSize)
		case e.Texture != nil:
			tex, ok := e.Texture.(*wgpuTexture)
			if !ok {
				return nil, fmt.Errorf("binding %d: %w", e.Binding, ErrForeignHandle)
			}
			if tex.view == nil {
				return nil, fmt.Errorf("binding %d: %w", e.Binding, ErrReleasedHandle)
			}
			entry.TextureView = tex.view
		case e.Sampler != nil:
			samp, ok := e.Sampler.(*wgpuSampler)
			if !ok {
				return nil, fmt.Errorf("binding %d: %w", e.Binding, ErrForeignHandle)
			}
			if samp.sampler == nil {
				return nil, fmt.Errorf("binding %d: %w", e.Binding, ErrReleasedHandle)
			}
			entry.Sampler = samp.sampler
		default:
			return nil, fmt.Errorf("binding %d: %w", e.Binding, ErrReleasedHandle)
		}
		converted[i] = entry
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  l.layout,
		Entries: converted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %s: %w", label, err)
	}
	return &wgpuBindGroup{group: group}, nil
}

func (b *wgpuBackend) CreateShaderModule(label, code string) (ShaderModule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: code,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shader module %s: %w", label, err)
	}
	return &wgpuShaderModule{module: module}, nil
}

// pipelineLayout builds a pipeline layout from bind group layouts in group index order.
// The caller must hold b.mu.
func (b *wgpuBackend) pipelineLayout(label string, layouts []BindGroupLayout) (*wgpu.PipelineLayout, error) {
	groupLayouts := make([]*wgpu.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		wl, ok := l.(*wgpuBindGroupLayout)
		if !ok {
			return nil, fmt.Errorf("group %d: %w", i, ErrForeignHandle)
		}
		if wl.layout == nil {
			return nil, fmt.Errorf("group %d: %w", i, ErrReleasedHandle)
		}
		groupLayouts[i] = wl.layout
	}
	return b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: groupLayouts,
	})
}

func unwrapModule(m ShaderModule) (*wgpu.ShaderModule, error) {
	sm, ok := m.(*wgpuShaderModule)
	if !ok {
		return nil, ErrForeignHandle
	}
	if sm.module == nil {
		return nil, ErrReleasedHandle
	}
	return sm.module, nil
}

func (b *wgpuBackend) CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error) {
	vs, err := unwrapModule(desc.Vertex.Module)
	if err != nil {
		return nil, fmt.Errorf("vertex module: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	layout, err := b.pipelineLayout(desc.Label, desc.Layouts)
	if err != nil {
		return nil, err
	}

	d := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Primitive:    desc.Primitive,
		DepthStencil: desc.DepthStencil,
		Multisample:  desc.Multisample,
	}
	if desc.Fragment != nil {
		fs, err := unwrapModule(desc.Fragment.Module)
		if err != nil {
			layout.Release()
			return nil, fmt.Errorf("fragment module: %w", err)
		}
		d.Fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    desc.Targets,
		}
	}

	created, err := b.device.CreateRenderPipeline(d)
	if err != nil {
		layout.Release()
		return nil, fmt.Errorf("failed to create render pipeline %s: %w", desc.Label, err)
	}
	return &wgpuRenderPipeline{pipeline: created, layout: layout}, nil
}

func (b *wgpuBackend) CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error) {
	cs, err := unwrapModule(desc.Compute.Module)
	if err != nil {
		return nil, fmt.Errorf("compute module: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	layout, err := b.pipelineLayout(desc.Label, desc.Layouts)
	if err != nil {
		return nil, err
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     cs,
			EntryPoint: desc.Compute.EntryPoint,
		},
	})
	if err != nil {
		layout.Release()
		return nil, fmt.Errorf("failed to create compute pipeline %s: %w", desc.Label, err)
	}
	return &wgpuComputePipeline{pipeline: created, layout: layout}, nil
}

func (b *wgpuBackend) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	wb, err := unwrapBuffer(buf)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue.WriteBuffer(wb, offset, data)
	return nil
}

func (b *wgpuBackend) WriteTexture(tex Texture, pixels []byte) error {
	wt, ok := tex.(*wgpuTexture)
	if !ok {
		return ErrForeignHandle
	}
	if wt.tex == nil {
		return ErrReleasedHandle
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  wt.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  wt.width * 4,
			RowsPerImage: wt.height,
		},
		&wgpu.Extent3D{
			Width:              wt.width,
			Height:             wt.height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuBackend) ReadBuffer(src, dst Buffer) ([]byte, error) {
	srcBuf, err := unwrapBuffer(src)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	dstBuf, err := unwrapBuffer(dst)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	size := min(src.Size(), dst.Size())

	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(srcBuf, 0, dstBuf, 0, size)
	commandBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	var status wgpu.BufferMapAsyncStatus
	err = dstBuf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("buffer map failed with status %v", status)
	}
	out := make([]byte, size)
	copy(out, dstBuf.GetMappedRange(0, uint(size)))
	dstBuf.Unmap()
	return out, nil
}

func (b *wgpuBackend) BeginFrame() (RenderPass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.renderPassDescriptor == nil {
		return nil, errors.New("surface is not configured")
	}
	if b.frameSurface != nil {
		return nil, errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, err
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}

	b.frameEncoder = encoder
	b.framePass = encoder.BeginRenderPass(b.renderPassDescriptor)
	b.frameSurface = surfaceTexture
	b.frameView = view

	return &wgpuRenderPass{pass: b.framePass}, nil
}

func (b *wgpuBackend) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	b.frameEncoder.Release()
	b.frameEncoder = nil
	if err != nil {
		common.Logger().Error("failed to finish frame encoder", "err", err)
		b.releaseFrameSurface()
		return
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
}

func (b *wgpuBackend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.releaseFrameSurface()
}

// releaseFrameSurface drops the references to the acquired surface image. The caller must hold b.mu.
func (b *wgpuBackend) releaseFrameSurface() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuBackend) BeginComputePass() (ComputePass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeEncoder != nil {
		return nil, errors.New("compute pass already open")
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	b.computeEncoder = encoder
	b.computePass = encoder.BeginComputePass(nil)
	return &wgpuComputePass{pass: b.computePass}, nil
}

func (b *wgpuBackend) EndComputePass() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeEncoder == nil {
		return
	}
	b.computePass.End()
	b.computePass = nil

	commandBuffer, err := b.computeEncoder.Finish(nil)
	b.computeEncoder.Release()
	b.computeEncoder = nil
	if err != nil {
		common.Logger().Error("failed to finish compute encoder", "err", err)
		return
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseFrameSurface()
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTextureView = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
