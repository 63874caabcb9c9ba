package edges

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"lens-tracer/internal/failure"
	"lens-tracer/internal/gray"
	"lens-tracer/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diskImage renders a dark disk on a mid-gray background with optional noise.
func diskImage(w, h int, cx, cy, r float64, noise int, seed int64) *gray.Image {
	rng := rand.New(rand.NewSource(seed))
	img := gray.New(w, h, 128)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 128
			if math.Hypot(float64(x)-cx, float64(y)-cy) < r {
				v = 60
			}
			if noise > 0 {
				v += rng.Intn(2*noise+1) - noise
			}
			img.Set(x, y, uint8(v))
		}
	}
	return img
}

func TestBuildDeterministic(t *testing.T) {
	img := diskImage(120, 100, 60, 50, 30, 6, 7)
	p := DefaultParams()

	first, err := Build(img, p)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := Build(img, p)
		require.NoError(t, err)
		assert.Equal(t, first.Pix, again.Pix)
		assert.Equal(t, first.High, again.High)
	}
	assert.Greater(t, first.Count(), 100)
}

func TestHysteresisConnectivity(t *testing.T) {
	img := diskImage(160, 120, 70, 60, 40, 10, 3)
	p := DefaultParams()

	g := ComputeGradient(img)
	valid := func(x, y int) bool {
		return x >= p.Border && y >= p.Border && x < g.Width-p.Border && y < g.Height-p.Border
	}
	score, maxScore, _ := scoreField(g, valid, p.DirectionalBias)
	high, low := thresholds(score, maxScore, p)
	classes, strong := classify(g, score, high, low)
	require.Greater(t, strong, 0)

	m, err := Build(img, p)
	require.NoError(t, err)

	// every strong pixel is kept, and nothing unclassified leaks in
	for i, c := range classes {
		if c == classStrong {
			assert.Equal(t, uint8(255), m.Pix[i], "strong pixel %d dropped", i)
		}
		if c == classNone {
			assert.Equal(t, uint8(0), m.Pix[i], "unclassified pixel %d kept", i)
		}
	}

	// every kept pixel is reachable from a strong pixel through kept pixels
	seen := make([]bool, len(m.Pix))
	var stack []int
	for i, c := range classes {
		if c == classStrong {
			seen[i] = true
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%m.Width, i/m.Width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if m.On(x+dx, y+dy) {
					j := (y+dy)*m.Width + x + dx
					if !seen[j] {
						seen[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
	}
	for i, v := range m.Pix {
		if v != 0 {
			assert.True(t, seen[i], "weak pixel %d not connected to a strong seed", i)
		}
	}
}

func TestUniformImageAborts(t *testing.T) {
	img := gray.New(64, 48, 128)

	m, err := Build(img, DefaultParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrInsufficientSignal))
	require.NotNil(t, m)
	assert.True(t, m.Empty())
	assert.Equal(t, 64, m.Width)
}

func TestKillLineAndBorder(t *testing.T) {
	img := diskImage(100, 100, 50, 50, 30, 0, 1)

	m, err := Build(img, DefaultParams().WithKillLine(50).WithBorder(5))
	require.NoError(t, err)
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			require.False(t, m.On(x, y), "edge above kill line at %d,%d", x, y)
		}
	}
	assert.Greater(t, m.CountIn(geometry.NewRectInt(0, 50, 100, 50)), 50)
}

func TestMaskFlattensInsteadOfZeroing(t *testing.T) {
	img := gray.New(80, 80, 128)
	// a real edge so the frame has signal
	for y := 0; y < 80; y++ {
		for x := 60; x < 80; x++ {
			img.Set(x, y, 40)
		}
	}

	plain, err := Build(img, DefaultParams())
	require.NoError(t, err)

	// masking a uniform area must not create edges along the mask boundary
	mask := make([]bool, 80*80)
	for y := 20; y < 40; y++ {
		for x := 20; x < 40; x++ {
			mask[y*80+x] = true
		}
	}
	masked, err := Build(img, DefaultParams().WithMask(mask))
	require.NoError(t, err)
	assert.Equal(t, plain.Pix, masked.Pix)

	// a masked glare blob loses gradient energy rather than being erased
	glare := gray.New(40, 40, 128)
	for y := 15; y < 25; y++ {
		for x := 15; x < 25; x++ {
			glare.Set(x, y, 250)
		}
	}
	full := make([]bool, 40*40)
	for i := range full {
		full[i] = true
	}
	src := make([]float64, len(glare.Pix))
	flatten(src, glare, full)
	flat := scharr(src, 40, 40)
	sharp := ComputeGradient(glare)

	maxAbs := func(v []float64) float64 {
		m := 0.0
		for _, x := range v {
			m = math.Max(m, math.Abs(x))
		}
		return m
	}
	assert.Less(t, maxAbs(flat.GX), maxAbs(sharp.GX))
	assert.Greater(t, maxAbs(flat.GX), 0.0)
}

func TestMaskLengthMismatchPanics(t *testing.T) {
	img := gray.New(10, 10, 0)
	assert.Panics(t, func() {
		_, _ = Build(img, DefaultParams().WithMask(make([]bool, 5)))
	})
}

func TestAnnulusRestrictsToRimBand(t *testing.T) {
	// rim: dark elliptical ring between two ellipses, plus a distracting
	// dark blob in the middle (the eye)
	w, h := 200, 140
	img := gray.New(w, h, 140)
	cx, cy := 100.0, 70.0
	inside := func(x, y, a, b float64) bool {
		dx, dy := (x-cx)/a, (y-cy)/b
		return dx*dx+dy*dy < 1
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx, fy := float64(x), float64(y)
			if inside(fx, fy, 80, 55) && !inside(fx, fy, 72, 47) {
				img.Set(x, y, 50)
			}
			if math.Hypot(fx-cx, fy-cy) < 12 {
				img.Set(x, y, 30)
			}
		}
	}

	g := ComputeGradient(img)
	full, err := BuildFromGradient(g, DefaultParams())
	require.NoError(t, err)
	require.Greater(t, full.CountIn(geometry.NewRectInt(85, 55, 30, 30)), 0)

	ann := Annulus{
		Box:                geometry.NewRect(20, 15, 160, 110),
		Thickness:          8,
		NormalToleranceDeg: 30,
	}
	m, err := BuildAnnulus(g, ann, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, m.CountIn(geometry.NewRectInt(85, 55, 30, 30)))
	assert.Greater(t, m.Count(), 200)
}

func TestAnnulusTooSmall(t *testing.T) {
	g := ComputeGradient(gray.New(20, 20, 0))
	_, err := BuildAnnulus(g, Annulus{Box: geometry.NewRect(0, 0, 4, 4), Thickness: 4}, DefaultParams())
	assert.True(t, errors.Is(err, failure.ErrInsufficientSignal))
}
