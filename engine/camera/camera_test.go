package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformOf(t *testing.T, c Camera) binding.BufferBinding {
	t.Helper()
	bindings := c.BindGroup().Bindings()
	require.Len(t, bindings, 1)
	u, ok := bindings[0].(binding.BufferBinding)
	require.True(t, ok)
	return u
}

func TestNewCameraBuildsUniform(t *testing.T) {
	c, err := NewCamera(WithPosition(0, 2, 5), WithAspect(16.0/9.0), WithGroupIndex(2))
	require.NoError(t, err)

	assert.Equal(t, 2, c.BindGroup().Index())
	assert.Equal(t, BindingName, c.BindGroup().Label())

	u := uniformOf(t, c)
	assert.Equal(t, BindingName, u.Name())
	assert.Contains(t, u.DeclarationText(), "var<uniform> camera: Camera;")

	in, ok := u.Input("viewProj")
	require.True(t, ok)
	vp := c.ViewProjectionMatrix()
	assert.Equal(t, vp[:], in.Value().Floats())
	assert.True(t, in.ShouldUpdate())
}

func TestViewProjectionMatchesCommonMath(t *testing.T) {
	c, err := NewCamera(WithPosition(1, 2, 3), WithTarget(0, 1, 0), WithClipPlanes(0.5, 50))
	require.NoError(t, err)

	view := common.LookAt([3]float32{1, 2, 3}, [3]float32{0, 1, 0}, [3]float32{0, 1, 0})
	proj := common.Perspective(c.Fov(), c.Aspect(), 0.5, 50)
	assert.Equal(t, proj.Mul(view), c.ViewProjectionMatrix())

	identity := common.Identity()
	product := proj.Mul(c.InverseProjectionMatrix())
	for i := range product {
		assert.InDelta(t, identity[i], product[i], 1e-4)
	}
}

func TestSettersStageUniform(t *testing.T) {
	c, err := NewCamera()
	require.NoError(t, err)
	before := c.ViewProjectionMatrix()

	c.SetAspect(2)
	assert.Equal(t, float32(2), c.Aspect())
	assert.NotEqual(t, before, c.ViewProjectionMatrix())

	c.SetAspect(0)
	assert.Equal(t, float32(2), c.Aspect(), "a zero aspect from a minimized window is ignored")

	c.SetPosition(4, 0, 0)
	x, y, z := c.Position()
	assert.Equal(t, [3]float32{4, 0, 0}, [3]float32{x, y, z})

	u := uniformOf(t, c)
	in, ok := u.Input("position")
	require.True(t, ok)
	assert.Equal(t, []float32{4, 0, 0}, in.Value().Floats())

	c.SetTarget(0, 0, -1)
	tx, ty, tz := c.Target()
	assert.Equal(t, [3]float32{0, 0, -1}, [3]float32{tx, ty, tz})

	c.SetFov(1)
	assert.Equal(t, float32(1), c.Fov())
}
