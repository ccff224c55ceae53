// Package config loads the engine settings file.
//
// The file is TOML. Every key is optional; missing keys keep the values returned by Default.
//
//	[logging]
//	level = "debug"
//
//	[renderer]
//	present_mode = "uncapped"
//	msaa = 4
//
//	[shaders]
//	chunks = "assets/shaders/chunks"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by every validation failure returned from Parse and Load.
var ErrInvalid = errors.New("invalid config")

// Config is the root of the settings file.
type Config struct {
	Logging   Logging   `toml:"logging"`
	Window    Window    `toml:"window"`
	Renderer  Renderer  `toml:"renderer"`
	Pipelines Pipelines `toml:"pipelines"`
	Shaders   Shaders   `toml:"shaders"`
}

// Logging configures the engine logger.
type Logging struct {
	Level        string `toml:"level"`
	Prefix       string `toml:"prefix"`
	ReportCaller bool   `toml:"report_caller"`
	// Profile logs frame statistics once per second.
	Profile bool `toml:"profile"`
}

// Window configures the platform window.
type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Renderer configures the surface backend and the renderer.
type Renderer struct {
	PresentMode          string     `toml:"present_mode"`
	MSAA                 int        `toml:"msaa"`
	ForceFallbackAdapter bool       `toml:"force_fallback_adapter"`
	ClearColor           [4]float64 `toml:"clear_color"`
	HotReload            bool       `toml:"hot_reload"`
}

// Pipelines configures the pipeline manager.
type Pipelines struct {
	AsyncWorkers int  `toml:"async_workers"`
	Diagnostics  bool `toml:"diagnostics"`
}

// Shaders locates shader sources on disk.
type Shaders struct {
	// Dir is the directory relative shader paths resolve against.
	Dir string `toml:"dir"`
	// Chunks is a directory of .wgsl files registered as include chunks under their base name.
	Chunks string `toml:"chunks"`
}

// Default returns the settings used when no file is given.
//
// Returns:
//   - Config: the default settings
func Default() Config {
	return Config{
		Logging: Logging{
			Level:  "info",
			Prefix: "oxy",
		},
		Window: Window{
			Title:  "oxy",
			Width:  1280,
			Height: 720,
		},
		Renderer: Renderer{
			PresentMode: "vsync",
			MSAA:        1,
			ClearColor:  [4]float64{0, 0, 0, 1},
		},
		Pipelines: Pipelines{
			Diagnostics: true,
		},
		Shaders: Shaders{
			Dir: ".",
		},
	}
}

// Load reads and parses a settings file.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the parsed settings on top of Default
//   - error: the read, decode, or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML settings on top of Default. Unknown keys are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the parsed settings
//   - error: the decode or validation error
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalid, strict.String())
		}
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Renderer.PresentMode {
	case "vsync", "uncapped":
	default:
		return fmt.Errorf("%w: renderer.present_mode %q", ErrInvalid, c.Renderer.PresentMode)
	}
	if c.Renderer.MSAA != 1 && c.Renderer.MSAA != 4 {
		return fmt.Errorf("%w: renderer.msaa must be 1 or 4, got %d", ErrInvalid, c.Renderer.MSAA)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	if c.Pipelines.AsyncWorkers < 0 {
		return fmt.Errorf("%w: pipelines.async_workers %d", ErrInvalid, c.Pipelines.AsyncWorkers)
	}
	return nil
}

// Logger builds the engine logger described by the logging section.
func (c Config) Logger() *slog.Logger {
	return common.NewConsoleLogger(common.ParseLevel(c.Logging.Level), c.Logging.Prefix, c.Logging.ReportCaller)
}

// BackendOptions converts the renderer section into surface backend options.
func (c Config) BackendOptions() []backend.WGPUBackendOption {
	cc := c.Renderer.ClearColor
	return []backend.WGPUBackendOption{
		backend.WithPresentMode(backend.ParsePresentMode(c.Renderer.PresentMode)),
		backend.WithMSAA(backend.ParseMSAA(c.Renderer.MSAA)),
		backend.WithForceFallbackAdapter(c.Renderer.ForceFallbackAdapter),
		backend.WithClearColor(cc[0], cc[1], cc[2], cc[3]),
	}
}

// ManagerOptions converts the pipelines section into pipeline manager options.
//
// Parameters:
//   - chunks: the include registry to hand to the manager, or nil for none
//
// Returns:
//   - []pipeline.ManagerBuilderOption: the manager options
func (c Config) ManagerOptions(chunks *shader.Chunks) []pipeline.ManagerBuilderOption {
	options := []pipeline.ManagerBuilderOption{
		pipeline.WithAsyncCompile(c.Pipelines.AsyncWorkers),
		pipeline.WithDiagnostics(c.Pipelines.Diagnostics),
	}
	if chunks != nil {
		options = append(options, pipeline.WithChunks(chunks))
	}
	return options
}

// RendererOptions converts the renderer and pipelines sections into renderer options.
//
// Parameters:
//   - chunks: the include registry to hand to the pipeline manager, or nil for none
//
// Returns:
//   - []renderer.RendererBuilderOption: the renderer options
func (c Config) RendererOptions(chunks *shader.Chunks) []renderer.RendererBuilderOption {
	return []renderer.RendererBuilderOption{
		renderer.WithHotReload(c.Renderer.HotReload),
		renderer.WithManagerOptions(c.ManagerOptions(chunks)...),
	}
}

// ShaderPath resolves a shader file name against the shaders directory. Absolute names are kept.
func (c Config) ShaderPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Shaders.Dir, name)
}

// LoadChunks registers every .wgsl file in the chunks directory under its base name without the
// extension. An empty chunks setting returns an empty registry.
//
// Returns:
//   - *shader.Chunks: the populated registry
//   - error: an error if the directory or a file cannot be read
func (c Config) LoadChunks() (*shader.Chunks, error) {
	chunks := shader.NewChunks()
	if c.Shaders.Chunks == "" {
		return chunks, nil
	}
	dir := c.ShaderPath(c.Shaders.Chunks)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader chunks: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".wgsl" {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read shader chunk %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".wgsl")
		chunks.Register(name, string(src))
		common.Logger().Debug("registered shader chunk", "name", name)
	}
	return chunks, nil
}
