package edges

import (
	"math"

	"lens-tracer/internal/failure"
)

// Params holds parameters for edge detection.
// See params.go for defaults.
type Params struct {
	// Full-frame constraints
	Border     int    // pixels within Border of the frame edge are never edges
	KillAboveY int    // rows with y < KillAboveY are cleared (eyebrow exclusion)
	Mask       []bool // per-pixel flattening mask, nil for none

	DirectionalBias float64 // k in max(|gy|-k|gx|, |gx|-k|gy|)

	// Adaptive thresholds
	HighFraction   float64 // fraction of the maximum score
	PercentileGain float64 // multiplier on the score percentile
	Percentile     float64 // percentile of positive scores (0-1)
	MinHigh        float64 // floor for the high threshold
	LowRatio       float64 // low = LowRatio * high

	MinSamples int // minimum number of positive scores
}

type class uint8

const (
	classNone class = iota
	classWeak
	classStrong
)

// detect runs score, NMS, thresholding and hysteresis over pixels accepted by valid.
func detect(g *Gradient, valid func(x, y int) bool, p Params) (*Map, error) {
	out := NewMap(g.Width, g.Height)

	score, maxScore, positives := scoreField(g, valid, p.DirectionalBias)
	if positives < p.MinSamples || maxScore <= 0 {
		return out, failure.New(failure.KindInsufficientSignal, "edges",
			"%d gradient samples above zero, need %d", positives, p.MinSamples)
	}

	high, low := thresholds(score, maxScore, p)
	out.High, out.Low = high, low

	classes, strong := classify(g, score, high, low)
	if strong == 0 {
		return out, failure.New(failure.KindInsufficientSignal, "edges",
			"no pixel reaches the strong threshold %.2f", high)
	}

	hysteresis(classes, g.Width, g.Height, out.Pix)
	return out, nil
}

// scoreField computes the directionally biased score for accepted pixels.
func scoreField(g *Gradient, valid func(x, y int) bool, k float64) ([]float64, float64, int) {
	score := make([]float64, g.Width*g.Height)
	var maxScore float64
	positives := 0
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if !valid(x, y) {
				continue
			}
			i := y*g.Width + x
			ax := math.Abs(g.GX[i])
			ay := math.Abs(g.GY[i])
			s := math.Max(ay-k*ax, ax-k*ay)
			if s <= 0 {
				continue
			}
			score[i] = s
			positives++
			if s > maxScore {
				maxScore = s
			}
		}
	}
	return score, maxScore, positives
}

// thresholds derives the hysteresis pair from a histogram percentile of the
// positive scores.
func thresholds(score []float64, maxScore float64, p Params) (high, low float64) {
	var hist [histogramBins]int
	total := 0
	for _, s := range score {
		if s <= 0 {
			continue
		}
		bin := int(s / maxScore * (histogramBins - 1))
		hist[bin]++
		total++
	}

	target := int(math.Ceil(p.Percentile * float64(total)))
	pct := maxScore
	cum := 0
	for b := 0; b < histogramBins; b++ {
		cum += hist[b]
		if cum >= target {
			pct = float64(b+1) / (histogramBins - 1) * maxScore
			break
		}
	}

	high = math.Min(p.HighFraction*maxScore, p.PercentileGain*pct)
	high = math.Max(high, p.MinHigh)
	low = p.LowRatio * high
	return high, low
}

// direction offsets along the quantized gradient direction (0°, 45°, 90°, 135°)
// in image coordinates (+Y down).
var nmsOffsets = [4][2]int{
	{1, 0},
	{1, 1},
	{0, 1},
	{-1, 1},
}

func quantize(gx, gy float64) int {
	a := math.Atan2(gy, gx) * 180 / math.Pi
	if a < 0 {
		a += 180
	}
	switch {
	case a < 22.5 || a >= 157.5:
		return 0
	case a < 67.5:
		return 1
	case a < 112.5:
		return 2
	default:
		return 3
	}
}

// classify applies non-maximum suppression and double thresholding.
// Of two equal neighbours along the gradient the one in the positive
// direction wins, so a symmetric step keeps exactly one pixel.
func classify(g *Gradient, score []float64, high, low float64) ([]class, int) {
	w, h := g.Width, g.Height
	at := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return score[y*w+x]
	}

	classes := make([]class, w*h)
	strong := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			s := score[i]
			if s < low {
				continue
			}
			off := nmsOffsets[quantize(g.GX[i], g.GY[i])]
			if s < at(x-off[0], y-off[1]) || s <= at(x+off[0], y+off[1]) {
				continue
			}
			if s >= high {
				classes[i] = classStrong
				strong++
			} else {
				classes[i] = classWeak
			}
		}
	}
	return classes, strong
}

// hysteresis keeps weak pixels 8-connected to a strong seed.
func hysteresis(classes []class, w, h int, out []uint8) {
	stack := make([]int, 0, 1024)
	for i, c := range classes {
		if c == classStrong {
			out[i] = 255
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if out[j] == 0 && classes[j] == classWeak {
					out[j] = 255
					stack = append(stack, j)
				}
			}
		}
	}
}
