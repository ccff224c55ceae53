// Command oxy-demo opens a window and draws a spinning textured quad next to a particle compute pass.
//
// Keys: Space pauses the spin, L drops and restores every GPU object as a device loss would.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/camera"
	"github.com/Carmen-Shannon/oxy-gpu/engine/config"
	"github.com/Carmen-Shannon/oxy-gpu/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/geometry"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-gpu/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

const particleCount = 256

func main() {
	configPath := flag.String("config", "", "path to a TOML settings file")
	texturePath := flag.String("texture", "", "PNG or JPEG image drawn on the quad")
	flag.Parse()

	if err := run(*configPath, *texturePath); err != nil {
		common.Logger().Error("oxy-demo failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath, texturePath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	common.SetLogger(cfg.Logger())
	log := common.Logger()

	// ── Window + backend ────────────────────────────────────────────────
	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	surface, err := backend.NewWGPUBackend(win.SurfaceDescriptor(), cfg.BackendOptions()...)
	if err != nil {
		return err
	}
	if err := surface.ConfigureSurface(win.Width(), win.Height()); err != nil {
		return err
	}

	chunks, err := cfg.LoadChunks()
	if err != nil {
		return err
	}
	r, err := renderer.NewRenderer(surface, cfg.RendererOptions(chunks)...)
	if err != nil {
		return err
	}
	defer r.Close()

	// ── Camera ──────────────────────────────────────────────────────────
	cam, err := camera.NewCamera(
		camera.WithPosition(0, 0, 3),
		camera.WithAspect(float32(win.Width())/float32(max(win.Height(), 1))),
	)
	if err != nil {
		return err
	}
	if err := r.AddSharedBindGroup(cam.BindGroup()); err != nil {
		return err
	}

	// ── Textured quad ───────────────────────────────────────────────────
	quad, err := r.Geometry("quad", newQuad)
	if err != nil {
		return err
	}
	image := checkerboard(64, 8)
	if texturePath != "" {
		if image, err = common.LoadTexture(texturePath); err != nil {
			return err
		}
	}
	object, err := binding.NewBufferBinding("object",
		binding.WithField("model", layout.Of(layout.TypeMat4x4f), modelMatrix(0)))
	if err != nil {
		return err
	}
	albedo, err := binding.NewTextureBinding("albedo",
		binding.WithSampler(common.SamplerStagingData{
			AddressModeU:  wgpu.AddressModeRepeat,
			AddressModeV:  wgpu.AddressModeRepeat,
			AddressModeW:  wgpu.AddressModeRepeat,
			MagFilter:     wgpu.FilterModeNearest,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMaxClamp:   32,
			MaxAnisotropy: 1,
		}),
		binding.WithImage(image))
	if err != nil {
		return err
	}
	surfaceGroup := bind_group.NewBindGroup(1, bind_group.WithLabel("surface"), bind_group.WithBindings(object, albedo))

	mat, err := material.NewMaterial(quad,
		material.WithName("textured"),
		material.WithShaderFiles(cfg.ShaderPath("textured.wgsl"), ""),
		material.WithSharedBindGroups(cam.BindGroup()),
		material.WithBindGroups(surfaceGroup),
	)
	if err != nil {
		return err
	}
	if err := r.AddMaterial(mat); err != nil {
		return err
	}

	// ── Particles ───────────────────────────────────────────────────────
	particleCode, err := os.ReadFile(cfg.ShaderPath("particles.wgsl"))
	if err != nil {
		return fmt.Errorf("failed to read particle shader: %w", err)
	}
	particles, err := binding.NewBufferBinding("particles",
		binding.WithStorage(binding.AccessReadWrite),
		binding.WithField("position", layout.ArrayOf(layout.TypeVec4f, particleCount), particleStart()))
	if err != nil {
		return err
	}
	sim, err := material.NewComputePass(string(particleCode),
		material.WithComputeName("particles"),
		material.WithComputeBindGroups(bind_group.NewBindGroup(0, bind_group.WithLabel("particles"), bind_group.WithBindings(particles))),
	)
	if err != nil {
		return err
	}
	if err := r.AddComputePass(sim, particleCount); err != nil {
		return err
	}

	// ── Loop ────────────────────────────────────────────────────────────
	paused := false
	angle := float32(0)
	last := time.Now()
	var prof *profiler.Profiler
	if cfg.Logging.Profile {
		prof = profiler.NewProfiler(profiler.WithStats(func() []any {
			return []any{
				"materials", len(r.Materials()),
				"render_pipelines", len(r.Manager().RenderEntries()),
				"compute_pipelines", len(r.Manager().ComputeEntries()),
			}
		}))
	}

	win.SetResizeCallback(func(width, height int) {
		if err := r.Resize(width, height); err != nil {
			log.Error("resize failed", "err", err)
			return
		}
		cam.SetAspect(float32(width) / float32(max(height, 1)))
	})
	win.SetKeyDownCallback(func(keyCode uint32) {
		switch keyCode {
		case common.KeySpace:
			paused = !paused
			if paused {
				win.SetTitle(cfg.Window.Title + " (paused)")
			} else {
				win.SetTitle(cfg.Window.Title)
			}
		case common.KeyL:
			log.Warn("simulating device loss")
			r.LoseContext()
			if err := r.RestoreContext(surface); err != nil {
				log.Error("restore failed", "err", err)
			}
		}
	})
	win.SetUpdateCallback(func() {
		now := time.Now()
		if !paused {
			angle += float32(now.Sub(last).Seconds())
		}
		last = now
		if err := object.Set("model", modelMatrix(angle)); err != nil {
			log.Error("model update failed", "err", err)
		}
		if err := r.Frame(); err != nil {
			log.Warn("frame skipped", "err", err)
		}
		if prof != nil {
			prof.Tick()
		}
	})

	log.Info("running", "width", win.Width(), "height", win.Height())
	win.ProcessMessages()
	return nil
}

func modelMatrix(angle float32) layout.Value {
	return layout.Mat4(common.ModelMatrix([3]float32{}, [3]float32{0, angle, 0}, [3]float32{1, 1, 1}))
}

func newQuad() (geometry.Geometry, error) {
	return geometry.NewGeometry(
		geometry.WithID("quad"),
		geometry.WithVertexBuffer("", wgpu.VertexStepModeVertex,
			geometry.Attribute{Name: "position", Type: layout.TypeVec3f, Data: layout.Float(
				-1, -1, 0,
				1, -1, 0,
				1, 1, 0,
				-1, 1, 0,
			)},
			geometry.Attribute{Name: "uv", Type: layout.TypeVec2f, Data: layout.Float(
				0, 1,
				1, 1,
				1, 0,
				0, 0,
			)},
		),
		geometry.WithIndices(0, 1, 2, 0, 2, 3),
	)
}

func particleStart() layout.Value {
	positions := make([]float32, 0, particleCount*4)
	for i := range particleCount {
		x := float32(i%16)/8 - 1
		y := float32(i/16)/8 - 1
		positions = append(positions, x, y, 0, 1)
	}
	return layout.Float(positions...)
}

// checkerboard builds a size x size RGBA image of cell x cell squares.
func checkerboard(size, cell int) common.TextureStagingData {
	pixels := make([]byte, 0, size*size*4)
	for y := range size {
		for x := range size {
			v := byte(60)
			if (x/cell+y/cell)%2 == 0 {
				v = 220
			}
			pixels = append(pixels, v, v, v, 255)
		}
	}
	return common.TextureStagingData{Pixels: pixels, Width: uint32(size), Height: uint32(size)}
}
