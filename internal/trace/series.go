package trace

import (
	"math"
	"sort"
)

// fillGaps replaces NaN samples by circular linear interpolation between the
// nearest hits on either side. A single hit is replicated around the circle.
// Returns false when there is no hit at all.
func fillGaps(radii []float64) bool {
	n := len(radii)
	var hits []int
	for i, r := range radii {
		if !math.IsNaN(r) {
			hits = append(hits, i)
		}
	}
	switch len(hits) {
	case 0:
		return false
	case 1:
		for i := range radii {
			radii[i] = radii[hits[0]]
		}
		return true
	}

	for h := range hits {
		a := hits[h]
		b := hits[(h+1)%len(hits)]
		gap := (b - a + n) % n
		if gap <= 1 {
			continue
		}
		ra, rb := radii[a], radii[b]
		for k := 1; k < gap; k++ {
			t := float64(k) / float64(gap)
			radii[(a+k)%n] = ra + (rb-ra)*t
		}
	}
	return true
}

// smoothRadii fills gaps and applies the circular median, the circular
// moving average and the forward/backward jump clamp. Returns a new slice.
func smoothRadii(raw []float64, medianWindow, smoothWindow int, maxJump float64) []float64 {
	radii := append([]float64(nil), raw...)
	fillGaps(radii)
	radii = circularMedian(radii, medianWindow)
	radii = circularMean(radii, smoothWindow)
	clampJumps(radii, maxJump)
	return radii
}

func circularMedian(v []float64, window int) []float64 {
	n := len(v)
	out := make([]float64, n)
	if window <= 1 {
		copy(out, v)
		return out
	}
	half := window / 2
	buf := make([]float64, 2*half+1)
	for i := range v {
		for k := -half; k <= half; k++ {
			buf[k+half] = v[((i+k)%n+n)%n]
		}
		sort.Float64s(buf)
		out[i] = buf[half]
	}
	return out
}

func circularMean(v []float64, window int) []float64 {
	n := len(v)
	out := make([]float64, n)
	if window <= 1 {
		copy(out, v)
		return out
	}
	half := window / 2
	for i := range v {
		s := 0.0
		for k := -half; k <= half; k++ {
			s += v[((i+k)%n+n)%n]
		}
		out[i] = s / float64(2*half+1)
	}
	return out
}

// clampJumps bounds the change between neighbouring samples to maxJump,
// first walking forward then backward. The backward pass lets samples
// clipped on a rising edge recover from the far side.
func clampJumps(v []float64, maxJump float64) {
	if maxJump <= 0 || len(v) < 2 {
		return
	}
	for i := 1; i < len(v); i++ {
		v[i] = math.Max(v[i-1]-maxJump, math.Min(v[i-1]+maxJump, v[i]))
	}
	for i := len(v) - 2; i >= 0; i-- {
		v[i] = math.Max(v[i+1]-maxJump, math.Min(v[i+1]+maxJump, v[i]))
	}
}

// downsample averages each group of factor samples centered on the output
// angle, so output sample i sits at the angle of input sample i*factor.
func downsample(v []float64, factor int) []float64 {
	if factor <= 1 {
		return append([]float64(nil), v...)
	}
	n := len(v)
	out := make([]float64, n/factor)
	lo := -(factor / 2)
	hi := lo + factor
	for i := range out {
		s := 0.0
		for k := lo; k < hi; k++ {
			s += v[((i*factor+k)%n+n)%n]
		}
		out[i] = s / float64(factor)
	}
	return out
}
