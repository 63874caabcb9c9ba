package debugplot

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lens-tracer/pkg/geometry"
)

func TestRadii(t *testing.T) {
	raw := make([]int, 800)
	for i := range raw {
		raw[i] = 2500 + int(300*math.Cos(4*math.Pi*float64(i)/800))
	}
	path := filepath.Join(t.TempDir(), "radii.png")
	require.NoError(t, Radii(path, "lens", Ints("raw", raw), Ints("regularized", raw)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, Radii(path, "empty"))
}

func TestInts(t *testing.T) {
	s := Ints("r", []int{2500, 1999})
	assert.Equal(t, "r", s.Name)
	assert.InDeltaSlice(t, []float64{25, 19.99}, s.Values, 1e-12)
}

func TestContours(t *testing.T) {
	var pts []geometry.Point2D
	for i := 0; i < 36; i++ {
		a := 2 * math.Pi * float64(i) / 36
		pts = append(pts, geometry.Point2D{X: 100 + 40*math.Cos(a), Y: 80 + 30*math.Sin(a)})
	}
	path := filepath.Join(t.TempDir(), "fit.svg")
	require.NoError(t, Contours(path, "fit", Outline{Name: "placed", Points: pts}))
	_, err := os.Stat(path)
	assert.NoError(t, err)

	assert.Error(t, Contours(path, "none"))
}
