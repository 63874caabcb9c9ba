// Package regularize cleans a circular radius series in hundredths of a millimeter.
//
// Regularize applies five stages in a fixed order; each relies on what the
// previous one left behind (the diff clamp assumes spikes are already gone):
//
//  1. circular median filter
//  2. circular moving average
//  3. per-angle bias correction from a Calibration (optional)
//  4. robust diff clamp with circular closure and mean re-centering
//  5. light smoothing, re-centered to the input mean
package regularize

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Params configures the regularizer.
type Params struct {
	MedianWindow int     // odd window of the despike median
	SmoothWindow int     // odd window of the moving average
	ClampK       float64 // diff limit = max(MinClamp, median|d| + ClampK*MAD|d|)
	MinClamp     int     // floor of the diff limit, hundredths per step
	FinalWindow  int     // odd window of the final smoothing, 1 disables
}

// DefaultParams returns the regularizer defaults for 800-sample series.
func DefaultParams() Params {
	return Params{
		MedianWindow: 5,
		SmoothWindow: 5,
		ClampK:       4.0,
		MinClamp:     2,
		FinalWindow:  3,
	}
}

// Regularize returns the cleaned series. cal may be nil. The input is not modified.
func Regularize(radii []int, cal *Calibration, p Params) []int {
	if len(radii) == 0 {
		return nil
	}
	if cal != nil && cal.Len() != len(radii) {
		panic(fmt.Sprintf("regularize: calibration has %d samples, series has %d", cal.Len(), len(radii)))
	}
	inputMean := meanInt(radii)

	out := MedianFilter(radii, p.MedianWindow)
	out = MovingAverage(out, p.SmoothWindow)
	if cal != nil {
		for i, off := range cal.Offsets() {
			out[i] -= off
		}
	}
	out = DiffClamp(out, p)
	out = MovingAverage(out, p.FinalWindow)
	return recenter(out, inputMean)
}

// MedianFilter applies a circular median of the given odd window.
func MedianFilter(radii []int, window int) []int {
	n := len(radii)
	out := make([]int, n)
	if window <= 1 {
		copy(out, radii)
		return out
	}
	half := window / 2
	buf := make([]int, window)
	for i := range radii {
		for k := -half; k <= half; k++ {
			buf[k+half] = radii[wrap(i+k, n)]
		}
		sort.Ints(buf)
		out[i] = buf[half]
	}
	return out
}

// MovingAverage applies a circular box filter of the given odd window, rounding
// each output to the nearest unit.
func MovingAverage(radii []int, window int) []int {
	n := len(radii)
	out := make([]int, n)
	if window <= 1 {
		copy(out, radii)
		return out
	}
	half := window / 2
	for i := range radii {
		sum := 0
		for k := -half; k <= half; k++ {
			sum += radii[wrap(i+k, n)]
		}
		out[i] = int(math.Round(float64(sum) / float64(2*half+1)))
	}
	return out
}

// DiffClamp bounds the per-step change of a circular series.
//
// The circular differences are clamped to ±limit with
// limit = max(MinClamp, median(|d|) + ClampK·MAD(|d|)). The clamped
// differences are then nudged one unit at a time, walking the circle, until
// they sum to exactly zero, integrated back to radii and shifted to the
// input's mean.
func DiffClamp(radii []int, p Params) []int {
	n := len(radii)
	if n < 2 {
		return append([]int(nil), radii...)
	}
	diffs := make([]int, n)
	for i := range radii {
		diffs[i] = radii[wrap(i+1, n)] - radii[i]
	}

	limit := clampLimit(diffs, p)
	sum := 0
	for i, d := range diffs {
		diffs[i] = max(-limit, min(limit, d))
		sum += diffs[i]
	}

	// close the loop: a positive residual is removed from diffs that can
	// still decrease, a negative one added to diffs that can still increase
	for j := 0; sum != 0; j = (j + 1) % n {
		switch {
		case sum > 0 && diffs[j] > -limit:
			diffs[j]--
			sum--
		case sum < 0 && diffs[j] < limit:
			diffs[j]++
			sum++
		}
	}

	out := make([]int, n)
	out[0] = radii[0]
	for i := 1; i < n; i++ {
		out[i] = out[i-1] + diffs[i-1]
	}
	return recenter(out, meanInt(radii))
}

// clampLimit is max(MinClamp, median|d| + ClampK·MAD|d|). The plain
// max(floor, k·MAD) form is offset by the median step here, so a flank whose
// steps are all large but alike is never clamped.
func clampLimit(diffs []int, p Params) int {
	abs := make([]float64, len(diffs))
	for i, d := range diffs {
		abs[i] = math.Abs(float64(d))
	}
	sort.Float64s(abs)
	med := stat.Quantile(0.5, stat.Empirical, abs, nil)

	dev := make([]float64, len(abs))
	for i, a := range abs {
		dev[i] = math.Abs(a - med)
	}
	sort.Float64s(dev)
	mad := stat.Quantile(0.5, stat.Empirical, dev, nil)

	limit := int(math.Ceil(med + p.ClampK*mad))
	return max(limit, p.MinClamp)
}

// recenter shifts the series so its mean is within half a unit of target.
func recenter(radii []int, target float64) []int {
	shift := int(math.Round(target - meanInt(radii)))
	if shift == 0 {
		return radii
	}
	for i := range radii {
		radii[i] += shift
	}
	return radii
}

func meanInt(v []int) float64 {
	f := make([]float64, len(v))
	for i, x := range v {
		f[i] = float64(x)
	}
	return floats.Sum(f) / float64(len(f))
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}
