package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeTexture(t *testing.T) {
	tex, err := DecodeTexture(encodePNG(t))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tex.Width)
	assert.Equal(t, uint32(1), tex.Height)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, tex.Pixels)

	_, err = DecodeTexture([]byte("not an image"))
	assert.Error(t, err)
}

func TestLoadTexture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t), 0o644))

	tex, err := LoadTexture(path)
	require.NoError(t, err)
	assert.Len(t, tex.Pixels, 8)

	_, err = LoadTexture(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
}

func TestMat4(t *testing.T) {
	id := Identity()
	m := ModelMatrix([3]float32{1, 2, 3}, [3]float32{}, [3]float32{2, 2, 2})
	assert.Equal(t, m, id.Mul(m))
	assert.Equal(t, [4]float32{1, 2, 3, 1}, [4]float32{m[12], m[13], m[14], m[15]})
	assert.Equal(t, float32(2), m[0])

	inv, ok := m.Inverse()
	require.True(t, ok)
	product := m.Mul(inv)
	for i := range product {
		assert.InDelta(t, id[i], product[i], 1e-5)
	}

	_, ok = Mat4{}.Inverse()
	assert.False(t, ok)
}

func TestLookAt(t *testing.T) {
	view := LookAt([3]float32{0, 0, 5}, [3]float32{}, [3]float32{0, 1, 0})
	assert.Equal(t, Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, -5, 1,
	}, view)
}

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]uint32(nil)))
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0}, SliceToBytes([]uint32{1, 2}))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, -4, int(ParseLevel("debug")))
	assert.Equal(t, 0, int(ParseLevel("nonsense")))
}
