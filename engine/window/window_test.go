package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramebufferResize(t *testing.T) {
	w := &engineWindow{width: 800, height: 600}
	var sizes [][2]int
	w.SetResizeCallback(func(width, height int) {
		sizes = append(sizes, [2]int{width, height})
	})

	w.framebufferResized(1024, 768)
	w.framebufferResized(1024, 768)
	assert.Equal(t, [][2]int{{1024, 768}}, sizes)

	w.framebufferResized(0, 0)
	assert.True(t, w.Minimized())
	assert.Equal(t, 1024, w.Width(), "an empty framebuffer keeps the last size")

	w.framebufferResized(1024, 768)
	assert.False(t, w.Minimized())
	assert.Len(t, sizes, 1)
}

func TestKeyEvents(t *testing.T) {
	w := &engineWindow{}
	var down, up []uint32
	w.SetKeyDownCallback(func(k uint32) { down = append(down, k) })
	w.SetKeyUpCallback(func(k uint32) { up = append(up, k) })

	w.keyEvent(76, true)
	w.keyEvent(76, false)
	assert.Equal(t, []uint32{76}, down)
	assert.Equal(t, []uint32{76}, up)
}

func TestOptions(t *testing.T) {
	w := &engineWindow{width: 1280, height: 720, resizable: true}
	for _, opt := range []WindowBuilderOption{
		WithTitle("demo"),
		WithSize(640, 0),
		WithSizeLimits(100, 100, 2000, 0),
		WithResizable(false),
	} {
		opt(w)
	}
	assert.Equal(t, "demo", w.title)
	assert.Equal(t, 640, w.width)
	assert.Equal(t, 720, w.height)
	assert.Equal(t, 2000, w.maxWidth)
	assert.Equal(t, 0, w.maxHeight)
	assert.False(t, w.resizable)
}

func TestClosedWindow(t *testing.T) {
	w := &engineWindow{}
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	assert.ErrorIs(t, w.Close(), ErrNotInitialized)
	w.SetTitle("no platform")
	assert.Equal(t, "no platform", w.title)
}
