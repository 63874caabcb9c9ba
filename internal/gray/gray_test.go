package gray

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"lens-tracer/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPixValidatesLength(t *testing.T) {
	_, err := FromPix(4, 4, make([]uint8, 15))
	require.Error(t, err)

	img, err := FromPix(4, 4, make([]uint8, 16))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)
}

func TestNewPanicsOnBadSize(t *testing.T) {
	assert.Panics(t, func() { New(0, 3, 0) })
}

func TestBilinear(t *testing.T) {
	img := New(2, 2, 0)
	img.Set(1, 0, 100)
	img.Set(1, 1, 100)

	assert.InDelta(t, 50, img.Bilinear(0.5, 0.5), 1e-9)
	assert.InDelta(t, 0, img.Bilinear(0, 0), 1e-9)
	// clamped outside the border
	assert.InDelta(t, 100, img.Bilinear(5, 0), 1e-9)
}

func TestCrop(t *testing.T) {
	img := New(10, 8, 0)
	img.Set(3, 2, 200)

	crop, err := img.Crop(geometry.NewRectInt(3, 2, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, uint8(200), crop.At(0, 0))
	assert.Equal(t, 4, crop.Width)

	_, err = img.Crop(geometry.NewRectInt(8, 6, 4, 4))
	assert.Error(t, err)
}

func TestLoadConvertsToGray(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			src.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	src.Set(1, 1, color.RGBA{A: 255})

	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, uint8(255), img.At(0, 0))
	assert.Equal(t, uint8(0), img.At(1, 1))
}

func TestResize(t *testing.T) {
	img := New(40, 20, 90)
	small := img.Resize(20, 10)
	assert.Equal(t, 20, small.Width)
	assert.Equal(t, 10, small.Height)
	assert.InDelta(t, 90, small.Mean(), 1)
}
