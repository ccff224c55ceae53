package backendtest

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Surface is a fake backend.SurfaceBackend. Every frame records into the same Pass, so tests read
// the draws of all frames in order.
type Surface struct {
	*Backend

	Pass    *Pass
	Width   int
	Height  int
	Format  wgpu.TextureFormat
	Samples uint32
	Mode    backend.PresentMode

	Frames          int
	Presents        int
	ComputePasses   int
	Released        bool
	FailBeginFrame  error
	frameOpen       bool
	computePassOpen bool
}

var _ backend.SurfaceBackend = &Surface{}

// NewSurface returns a fake surface backend with a BGRA8UnormSrgb target and no MSAA.
func NewSurface() *Surface {
	return &Surface{
		Backend: New(),
		Pass:    &Pass{},
		Format:  wgpu.TextureFormatBGRA8UnormSrgb,
		Samples: 1,
	}
}

func (s *Surface) ConfigureSurface(width, height int) error {
	s.Width, s.Height = width, height
	return nil
}

func (s *Surface) SetPresentMode(mode backend.PresentMode) { s.Mode = mode }

func (s *Surface) SurfaceFormat() wgpu.TextureFormat { return s.Format }

func (s *Surface) SampleCount() uint32 { return s.Samples }

func (s *Surface) BeginFrame() (backend.RenderPass, error) {
	if s.FailBeginFrame != nil {
		return nil, s.FailBeginFrame
	}
	if s.frameOpen {
		return nil, errors.New("previous frame not ended")
	}
	s.frameOpen = true
	s.Frames++
	return s.Pass, nil
}

func (s *Surface) EndFrame() { s.frameOpen = false }

func (s *Surface) Present() { s.Presents++ }

func (s *Surface) BeginComputePass() (backend.ComputePass, error) {
	if s.computePassOpen {
		return nil, errors.New("compute pass already open")
	}
	s.computePassOpen = true
	s.ComputePasses++
	return ComputePass{Pass: s.Pass}, nil
}

func (s *Surface) EndComputePass() { s.computePassOpen = false }

func (s *Surface) Release() { s.Released = true }
