package regularize

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lensSeries(n int) []int {
	out := make([]int, n)
	for i := range out {
		th := 2 * math.Pi * float64(i) / float64(n)
		out[i] = int(math.Round(2400 + 350*math.Cos(2*th) + 80*math.Sin(th)))
	}
	return out
}

func mean(v []int) float64 {
	s := 0
	for _, x := range v {
		s += x
	}
	return float64(s) / float64(len(v))
}

func TestDiffClampClosure(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := DefaultParams()

	for trial := 0; trial < 20; trial++ {
		in := make([]int, 200+rng.Intn(600))
		for i := range in {
			in[i] = 1000 + rng.Intn(400)
			if rng.Intn(25) == 0 {
				in[i] += 900 // glare jump
			}
		}
		out := DiffClamp(in, p)
		require.Len(t, out, len(in))

		limit := clampLimit(circularDiffs(in), p)
		sum := 0
		for _, d := range circularDiffs(out) {
			sum += d
			assert.LessOrEqual(t, abs(d), limit)
		}
		assert.Equal(t, 0, sum)
		assert.InDelta(t, mean(in), mean(out), 0.5)
	}
}

func TestClampLimit(t *testing.T) {
	p := DefaultParams()

	// alike steps: MAD is zero and the median step sets the limit
	assert.Equal(t, 10, clampLimit([]int{10, -10, 10, -10, 10, -10}, p))
	// flat series fall back to the floor
	assert.Equal(t, p.MinClamp, clampLimit([]int{0, 0, 0, 1, 0, 0}, p))
	// |d| = {1,1,2,2,3,9}: median 2, MAD 1
	assert.Equal(t, 6, clampLimit([]int{1, -1, 2, -2, 3, -9}, p))
}

func TestRegularizeMeanPreserved(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for trial := 0; trial < 20; trial++ {
		in := lensSeries(800)
		for k := 0; k < 30; k++ {
			in[rng.Intn(800)] += rng.Intn(600) - 300
		}
		out := Regularize(in, nil, DefaultParams())
		assert.InDelta(t, mean(in), mean(out), 1.0)
	}
}

func TestRegularizeRemovesSpikes(t *testing.T) {
	clean := lensSeries(800)
	spiky := append([]int(nil), clean...)
	spiky[100] += 500 // two-sample spike on the steepest flank
	spiky[101] += 450
	spiky[500] -= 700

	out := Regularize(spiky, nil, DefaultParams())
	for i := range out {
		tol := 4.0
		if near(i, 100, 6) || near(i, 101, 6) || near(i, 500, 6) {
			// the window-5 median may return a value from up to two samples away
			tol = 3 + 2*float64(maxStep(clean, i, 4))
		}
		assert.InDelta(t, clean[i], out[i], tol, "sample %d", i)
	}
	assert.Equal(t, clean[100]+500, spiky[100], "input must not be modified")

	// the spikes themselves are gone
	assert.Less(t, abs(out[100]-clean[100]), 50)
	assert.Less(t, abs(out[500]-clean[500]), 50)
}

func TestRegularizeSmoothSeriesUnchanged(t *testing.T) {
	in := lensSeries(800)
	out := Regularize(in, nil, DefaultParams())
	for i := range out {
		assert.InDelta(t, in[i], out[i], 2, "sample %d", i)
	}
}

func TestCalibrationBias(t *testing.T) {
	n := 800
	clean := lensSeries(n)
	bias := make([]float64, n)
	in := append([]int(nil), clean...)
	for i := range bias {
		bias[i] = 0.5 // constant part is removed by the mean
		if i >= 200 && i < 280 {
			// this sector reads up to 0.1 mm long
			bump := 0.1 * 0.5 * (1 - math.Cos(2*math.Pi*float64(i-200)/80))
			bias[i] += bump
			in[i] += int(math.Round(100 * bump))
		}
	}
	cal := NewCalibration(bias)

	out := Regularize(in, cal, DefaultParams())
	for i := range out {
		assert.InDelta(t, clean[i], out[i], 3, "sample %d", i)
	}

	uncorrected := Regularize(in, nil, DefaultParams())
	assert.GreaterOrEqual(t, uncorrected[240]-clean[240], 7)
}

func TestCalibrationLengthMismatchPanics(t *testing.T) {
	cal := NewCalibration(make([]float64, 10))
	assert.Panics(t, func() { Regularize(make([]int, 800), cal, DefaultParams()) })
}

func TestLoadCalibration(t *testing.T) {
	text := "# device 7 bias table\n0.10\n\n0.20\n# trailing note\n0.30\n0.40\n"
	cal, err := LoadCalibration(strings.NewReader(text), 4)
	require.NoError(t, err)
	assert.Equal(t, []int{-15, -5, 5, 15}, cal.Offsets())

	_, err = LoadCalibration(strings.NewReader(text), 800)
	assert.Error(t, err)

	_, err = LoadCalibration(strings.NewReader("0.1\nabc\n"), 2)
	assert.Error(t, err)
}

func TestFiltersAreCircular(t *testing.T) {
	in := []int{100, 0, 0, 0, 0, 0, 0, 100}
	med := MedianFilter(in, 3)
	assert.Equal(t, []int{100, 0, 0, 0, 0, 0, 0, 100}, med)

	avg := MovingAverage([]int{30, 0, 0, 0, 0, 0}, 3)
	assert.Equal(t, []int{10, 10, 0, 0, 0, 10}, avg)
}

func circularDiffs(v []int) []int {
	d := make([]int, len(v))
	for i := range v {
		d[i] = v[(i+1)%len(v)] - v[i]
	}
	return d
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func near(i, j, reach int) bool {
	return abs(i-j) <= reach
}

// maxStep is the largest circular step of v within reach of i.
func maxStep(v []int, i, reach int) int {
	n := len(v)
	m := 0
	for k := i - reach; k < i+reach; k++ {
		m = max(m, abs(v[wrap(k+1, n)]-v[wrap(k, n)]))
	}
	return m
}
