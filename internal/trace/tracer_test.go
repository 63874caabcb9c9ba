package trace

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lens-tracer/internal/edges"
	"lens-tracer/internal/failure"
	"lens-tracer/internal/gray"
)

const (
	testPxPerMm = 50.0
	testRingR   = 250.0
)

func lensRadius(theta float64) float64 {
	return 125 + 20*math.Cos(2*theta) + 5*math.Sin(theta)
}

// renderScene draws a dark ring of radius ringR and a dark lens on mid gray.
// Image +Y is down, so theta measured with atan2(dy, dx) is clockwise on screen.
func renderScene(size int, ringR float64, lens func(float64) float64) *gray.Image {
	img := gray.New(size, size, 128)
	c := float64(size-1) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			d := math.Hypot(dx, dy)
			switch {
			case ringR > 0 && math.Abs(d-ringR) <= 3:
				img.Set(x, y, 40)
			case lens != nil && d < lens(math.Atan2(dy, dx)):
				img.Set(x, y, 60)
			}
		}
	}
	return img
}

func testParams() Params {
	return DefaultParams().WithRing(2*testRingR/testPxPerMm, 0.4, 0.2)
}

func fractionWithin(t *testing.T, res *Result, tolPx float64) float64 {
	t.Helper()
	n := res.Contour.N()
	good := 0
	for i, r := range res.Contour.Radii {
		theta := 2 * math.Pi * float64(i) / float64(n)
		if math.Abs(r*testPxPerMm-lensRadius(theta)) <= tolPx {
			good++
		}
	}
	return float64(good) / float64(n)
}

func TestTraceRecoversLens(t *testing.T) {
	img := renderScene(600, testRingR, lensRadius)

	res, err := Trace(img, testPxPerMm, testParams())
	require.NoError(t, err)

	assert.False(t, res.Fallback)
	assert.Greater(t, res.Coverage, 0.95)
	assert.InDelta(t, 299.5, res.Ring.Center.X, 1.0)
	assert.InDelta(t, 299.5, res.Ring.Center.Y, 1.0)
	assert.InDelta(t, testRingR, res.Ring.Radius, 1.5)
	assert.InDelta(t, testPxPerMm, res.RingPxPerMm, 0.5)

	require.Equal(t, 800, res.Contour.N())
	assert.Equal(t, "mm", res.Contour.Unit.String())
	assert.Equal(t, "cw", res.Contour.Convention.String())
	assert.GreaterOrEqual(t, fractionWithin(t, res, 2.0), 0.95)
}

func TestTraceFallbackOnLowCoverage(t *testing.T) {
	img := renderScene(600, testRingR, lensRadius)
	p := testParams()
	p.MinCoverage = 1.01 // force the contour path

	res, err := Trace(img, testPxPerMm, p)
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.GreaterOrEqual(t, fractionWithin(t, res, 3.0), 0.95)
}

func TestTraceUniformImage(t *testing.T) {
	img := gray.New(400, 400, 128)
	res, err := Trace(img, testPxPerMm, testParams())
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, failure.ErrInsufficientSignal))
}

func TestTraceRejectsBadScale(t *testing.T) {
	img := gray.New(64, 64, 128)
	assert.Panics(t, func() { _, _ = Trace(img, 0, testParams()) })
}

func TestFillGaps(t *testing.T) {
	nan := math.NaN()

	t.Run("interpolates across the seam", func(t *testing.T) {
		v := []float64{nan, 10, nan, nan, 16, nan}
		require.True(t, fillGaps(v))
		assert.InDeltaSlice(t, []float64{12, 10, 12, 14, 16, 14}, v, 1e-9)
	})

	t.Run("single hit replicates", func(t *testing.T) {
		v := []float64{nan, nan, 7, nan}
		require.True(t, fillGaps(v))
		assert.Equal(t, []float64{7, 7, 7, 7}, v)
	})

	t.Run("no hit", func(t *testing.T) {
		assert.False(t, fillGaps([]float64{nan, nan}))
	})
}

func TestClampJumps(t *testing.T) {
	v := []float64{10, 10, 30, 10, 10}
	clampJumps(v, 2)
	for i := 1; i < len(v); i++ {
		assert.LessOrEqual(t, math.Abs(v[i]-v[i-1]), 2.0+1e-9)
	}
	assert.Equal(t, 10.0, v[0])
}

func TestDownsampleIsCentered(t *testing.T) {
	v := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	out := downsample(v, 3)
	// sample 0 averages indices 8, 0, 1
	assert.InDelta(t, (9+1+2)/3.0, out[0], 1e-9)
	assert.InDelta(t, 4.0, out[1], 1e-9)
	assert.InDelta(t, 7.0, out[2], 1e-9)
}

func circleMap(w, h int, cx, cy, r float64) *edges.Map {
	em := edges.NewMap(w, h)
	for k := 0; k < 4000; k++ {
		a := 2 * math.Pi * float64(k) / 4000
		x := int(math.Round(cx + r*math.Cos(a)))
		y := int(math.Round(cy + r*math.Sin(a)))
		if x >= 0 && x < w && y >= 0 && y < h {
			em.Set(x, y)
		}
	}
	return em
}

func TestDetectRingOffCenter(t *testing.T) {
	em := circleMap(400, 300, 180, 140, 100)
	p := DefaultParams()

	peaks := ringCandidates(em, 85, 115, p.RingCandidates, 5)
	require.NotEmpty(t, peaks)
	assert.InDelta(t, 180, peaks[0].X, 3)
	assert.InDelta(t, 140, peaks[0].Y, 3)

	ring, ok := detectRing(em, 100, p)
	require.True(t, ok)
	assert.InDelta(t, 180, ring.Center.X, 1)
	assert.InDelta(t, 140, ring.Center.Y, 1)
	assert.InDelta(t, 100, ring.Radius, 1)
}

func TestDetectRingWrongRadius(t *testing.T) {
	em := circleMap(400, 300, 200, 150, 50)
	_, ok := detectRing(em, 120, DefaultParams())
	assert.False(t, ok)
}
