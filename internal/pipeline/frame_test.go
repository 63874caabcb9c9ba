package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lens-tracer/internal/failure"
	"lens-tracer/internal/gray"
	"lens-tracer/internal/polar"
	"lens-tracer/internal/regularize"
)

// lensRadiusMm is the synthetic lens, clockwise angle in image orientation.
func lensRadiusMm(theta float64) float64 {
	return 1.5 + 0.25*math.Cos(2*theta) + 0.05*math.Sin(3*theta)
}

// ringScene renders a mid-gray frame with a dark 6 mm calibration ring and a
// darker lens, both centered.
func ringScene(size int, pxPerMm float64) *gray.Image {
	img := gray.New(size, size, 128)
	c := float64(size) / 2
	ring := 3 * pxPerMm
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			d := math.Hypot(dx, dy)
			switch {
			case math.Abs(d-ring) <= 3:
				img.Set(x, y, 40)
			case d <= lensRadiusMm(math.Atan2(dy, dx))*pxPerMm:
				img.Set(x, y, 70)
			}
		}
	}
	return img
}

func sceneOptions(pxPerMm float64) FrameOptions {
	opts := DefaultFrameOptions(pxPerMm)
	opts.Trace = opts.Trace.WithRing(6, 0.3, 0.1)
	return opts
}

func TestTraceFrameScenario(t *testing.T) {
	img := ringScene(1000, 100)
	res, err := TraceFrame(img, sceneOptions(100))
	require.NoError(t, err)
	require.Len(t, res.Regularized, 800)

	within := 0
	for i, v := range res.Regularized {
		want := math.Round(100 * lensRadiusMm(2*math.Pi*float64(i)/800))
		if math.Abs(float64(v)-want) <= 3 {
			within++
		}
	}
	assert.GreaterOrEqual(t, float64(within)/800, 0.95, "%d of 800 samples within 3 hundredths", within)

	assert.Equal(t, polar.CounterClockwise, res.Contour.Convention)
	assert.Equal(t, polar.Millimeters, res.Contour.Unit)
	cw := res.Contour.ToConvention(polar.Clockwise)
	for i, v := range res.Regularized {
		assert.InDelta(t, float64(v)/100, cw.Radii[i], 1e-9)
	}
	assert.InDelta(t, 100, res.Trace.RingPxPerMm, 2)
}

func TestTraceFrameCalibration(t *testing.T) {
	img := ringScene(500, 50)

	plain, err := TraceFrame(img, sceneOptions(50))
	require.NoError(t, err)

	// the device reads 0.2 mm long at 0° and 0.2 mm short at 180°
	bias := make([]float64, 800)
	for i := range bias {
		bias[i] = 0.2 * math.Cos(2*math.Pi*float64(i)/800)
	}
	opts := sceneOptions(50)
	opts.Calibration = regularize.NewCalibration(bias)
	biased, err := TraceFrame(img, opts)
	require.NoError(t, err)
	assert.InDelta(t, plain.Regularized[0]-20, biased.Regularized[0], 3)
	assert.InDelta(t, plain.Regularized[400]+20, biased.Regularized[400], 3)

	opts.Calibration = regularize.NewCalibration(bias[:400])
	_, err = TraceFrame(img, opts)
	assert.Error(t, err)
}

func TestTraceFrameNoSignal(t *testing.T) {
	res, err := TraceFrame(gray.New(400, 400, 128), sceneOptions(50))
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, failure.ErrInsufficientSignal))
}

func boxBlur(img *gray.Image) *gray.Image {
	out := gray.New(img.Width, img.Height, 0)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			sum := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += int(img.At(x+dx, y+dy))
				}
			}
			out.Set(x, y, uint8(sum/9))
		}
	}
	return out
}

func TestTraceBestPicksSharpestTracedFrame(t *testing.T) {
	sharp := ringScene(500, 50)
	frames := []*gray.Image{gray.New(500, 500, 128), boxBlur(sharp), sharp}

	res, err := TraceBest(context.Background(), frames, LaplacianVariance{}, sceneOptions(50), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Index)
	assert.GreaterOrEqual(t, res.Failures, 1)
	assert.Len(t, res.Regularized, 800)
}

func TestTraceBestAllFail(t *testing.T) {
	frames := []*gray.Image{gray.New(300, 300, 100), gray.New(300, 300, 120)}
	res, err := TraceBest(context.Background(), frames, LaplacianVariance{}, sceneOptions(50), zerolog.Nop())
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, failure.ErrInsufficientSignal))

	_, err = TraceBest(context.Background(), nil, LaplacianVariance{}, sceneOptions(50), zerolog.Nop())
	assert.Error(t, err)
}

func TestTraceBestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TraceBest(ctx, []*gray.Image{ringScene(300, 30)}, LaplacianVariance{}, sceneOptions(30), zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFrameScorers(t *testing.T) {
	sharp := ringScene(300, 30)
	blurred := boxBlur(sharp)
	flat := gray.New(300, 300, 128)

	lv := LaplacianVariance{}
	assert.Greater(t, lv.Score(sharp), lv.Score(blurred))
	assert.Zero(t, lv.Score(flat))

	dot := gray.New(9, 9, 0)
	dot.Set(4, 4, 100)
	// -400 at the dot, +100 on its four neighbours, 0 elsewhere
	assert.InDelta(t, 200000.0/81, lv.Score(dot), 1e-6)

	ed := EdgeDensity{Params: sceneOptions(30).Trace.Edges}
	assert.Greater(t, ed.Score(sharp), 0.0)
	assert.Zero(t, ed.Score(flat))
}
