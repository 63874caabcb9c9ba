package refine

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Strategy selects a built-in Scorer.
type Strategy int

const (
	// InlierMedian scores inlier fraction × clamp(median response / reference).
	InlierMedian Strategy = iota
	// InlierMean scores inlier fraction × clamp(mean response / reference).
	InlierMean
)

func (s Strategy) String() string {
	switch s {
	case InlierMedian:
		return "inlier-median"
	case InlierMean:
		return "inlier-mean"
	default:
		return "unknown"
	}
}

// ParseStrategy resolves a strategy name as printed by String.
func ParseStrategy(name string) (Strategy, bool) {
	for _, s := range []Strategy{InlierMedian, InlierMean} {
		if s.String() == name {
			return s, true
		}
	}
	return InlierMedian, false
}

// Scorer turns the per-sample edge responses of one candidate into a
// coverage (inlier fraction) and a score in [0, 1].
type Scorer interface {
	Score(responses []float64) (coverage, score float64)
}

// Scorer returns the scorer for s with the given thresholds.
func (s Strategy) Scorer(inlierThreshold, referenceResponse float64) Scorer {
	return responseScorer{
		threshold: inlierThreshold,
		reference: referenceResponse,
		useMean:   s == InlierMean,
	}
}

type responseScorer struct {
	threshold float64
	reference float64
	useMean   bool
}

func (r responseScorer) Score(responses []float64) (float64, float64) {
	if len(responses) == 0 {
		return 0, 0
	}
	inliers := 0
	for _, v := range responses {
		if v > r.threshold {
			inliers++
		}
	}
	coverage := float64(inliers) / float64(len(responses))

	var central float64
	if r.useMean {
		central = stat.Mean(responses, nil)
	} else {
		sorted := append([]float64(nil), responses...)
		sort.Float64s(sorted)
		central = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	strength := math.Max(0, math.Min(1, central/r.reference))
	return coverage, coverage * strength
}
