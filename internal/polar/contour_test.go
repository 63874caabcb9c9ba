package polar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ellipse returns radii of an axis-aligned ellipse with semi-axes a (x) and b (y).
func ellipse(n int, a, b float64) []float64 {
	radii := make([]float64, n)
	for i := range radii {
		th := 2 * math.Pi * float64(i) / float64(n)
		radii[i] = a * b / math.Hypot(b*math.Cos(th), a*math.Sin(th))
	}
	return radii
}

func TestNewRejectsInvalid(t *testing.T) {
	_, err := New([]float64{1, 2, 3}, Millimeters, Clockwise)
	assert.Error(t, err)

	radii := ellipse(16, 2, 1)
	radii[3] = math.NaN()
	_, err = New(radii, Millimeters, Clockwise)
	assert.Error(t, err)
}

func TestBoxAndDiameter(t *testing.T) {
	c, err := New(ellipse(DefaultSamples, 25, 15), Millimeters, CounterClockwise)
	require.NoError(t, err)

	w, h := c.Box()
	assert.InDelta(t, 50, w, 0.01)
	assert.InDelta(t, 30, h, 0.01)
	assert.InDelta(t, 25, c.MaxRadius(), 1e-9)
	// Ramanujan's approximation for the ellipse perimeter
	a, b := 25.0, 15.0
	hh := (a - b) * (a - b) / ((a + b) * (a + b))
	want := math.Pi * (a + b) * (1 + 3*hh/(10+math.Sqrt(4-3*hh)))
	assert.InDelta(t, want, c.Perimeter(), 0.05)
}

func TestConventionRoundTrip(t *testing.T) {
	radii := make([]float64, 40)
	for i := range radii {
		radii[i] = float64(10 + i)
	}
	cw, err := New(radii, Pixels, Clockwise)
	require.NoError(t, err)

	ccw := cw.ToConvention(CounterClockwise)
	assert.Equal(t, CounterClockwise, ccw.Convention)
	assert.Equal(t, radii[0], ccw.Radii[0])
	assert.Equal(t, radii[39], ccw.Radii[1])

	// the same physical point is reported by both conventions
	p1 := cw.Points()[5]
	p2 := ccw.Points()[35]
	assert.InDelta(t, p1.X, p2.X, 1e-9)
	assert.InDelta(t, p1.Y, p2.Y, 1e-9)

	back := ccw.ToConvention(Clockwise)
	assert.Equal(t, radii, back.Radii)
}

func TestMirrorSwapsNasalAndTemporal(t *testing.T) {
	radii := make([]float64, 8)
	for i := range radii {
		radii[i] = 10
	}
	radii[0] = 20 // bulge on +X
	c, err := New(radii, Millimeters, CounterClockwise)
	require.NoError(t, err)

	m := c.Mirror()
	assert.Equal(t, 20.0, m.Radii[4])
	assert.Equal(t, 10.0, m.Radii[0])
	assert.Equal(t, radii, c.Radii, "mirror must not mutate the receiver")
}

func TestUnitConversion(t *testing.T) {
	c, err := New(ellipse(64, 20, 10), Millimeters, Clockwise)
	require.NoError(t, err)

	px := c.ToPixels(12)
	assert.Equal(t, Pixels, px.Unit)
	assert.InDelta(t, 240, px.MaxRadius(), 1e-9)

	mm := px.ToMillimeters(12)
	for i := range mm.Radii {
		assert.InDelta(t, c.Radii[i], mm.Radii[i], 1e-9)
	}
	assert.Panics(t, func() { px.Hundredths() })
	assert.Equal(t, 2000, c.Hundredths()[0])
}

func TestResample(t *testing.T) {
	c, err := New(ellipse(800, 20, 12), Millimeters, Clockwise)
	require.NoError(t, err)

	r := c.Resample(2400)
	require.Equal(t, 2400, r.N())
	for i := 0; i < 800; i++ {
		assert.InDelta(t, c.Radii[i], r.Radii[3*i], 1e-9)
	}
	d := r.Resample(800)
	for i := range d.Radii {
		assert.InDelta(t, c.Radii[i], d.Radii[i], 1e-9)
	}
}
