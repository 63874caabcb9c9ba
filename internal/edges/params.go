package edges

// DefaultParams returns default edge detection parameters.
// These are tuned for rim and lens boundaries in 8-bit camera frames.
func DefaultParams() Params {
	return Params{
		Border:     2,
		KillAboveY: 0, // disabled

		// score = max(|gy| - k|gx|, |gx| - k|gy|); diagonal texture is
		// attenuated to 1-k of its magnitude while rim-aligned structure
		// keeps its full response.
		DirectionalBias: 0.6,

		// high = min(HighFraction*max, PercentileGain*p95), floored at MinHigh
		HighFraction:   0.16,
		PercentileGain: 1.10,
		Percentile:     0.95,
		MinHigh:        4.0, // Scharr units (step of ~8 gray levels)
		LowRatio:       0.5,

		MinSamples: 64,
	}
}

// WithKillLine returns a copy of params that clears every row above y.
func (p Params) WithKillLine(y int) Params {
	p.KillAboveY = y
	return p
}

// WithMask returns a copy of params that flattens the masked pixels.
// The mask must have one entry per source pixel.
func (p Params) WithMask(mask []bool) Params {
	p.Mask = mask
	return p
}

// WithBorder returns a copy of params excluding a border of n pixels.
func (p Params) WithBorder(n int) Params {
	p.Border = n
	return p
}
