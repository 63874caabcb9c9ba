// Package config loads tuning parameters for the measurement stages from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"lens-tracer/internal/arcfit"
	"lens-tracer/internal/edges"
	"lens-tracer/internal/refine"
	"lens-tracer/internal/regularize"
	"lens-tracer/internal/rim"
	"lens-tracer/internal/trace"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds optional overrides. Nil fields fall back to the stage
// defaults, so partial files are safe.
type TuningConfig struct {
	// Edge map
	DirectionalBias *float64 `json:"directional_bias,omitempty"`
	HighFraction    *float64 `json:"high_fraction,omitempty"`
	PercentileGain  *float64 `json:"percentile_gain,omitempty"`
	LowRatio        *float64 `json:"low_ratio,omitempty"`
	EdgeBorder      *int     `json:"edge_border,omitempty"`

	// Tracer
	Samples          *int     `json:"samples,omitempty"`
	Oversample       *int     `json:"oversample,omitempty"`
	RingDiameterMm   *float64 `json:"ring_diameter_mm,omitempty"`
	RingBandMm       *float64 `json:"ring_band_mm,omitempty"`
	InteriorMarginMm *float64 `json:"interior_margin_mm,omitempty"`
	MaxJumpMm        *float64 `json:"max_jump_mm,omitempty"`
	MinCoverage      *float64 `json:"min_coverage,omitempty"`

	// Regularizer
	ClampK          *float64 `json:"clamp_k,omitempty"`
	MinClamp        *int     `json:"min_clamp,omitempty"`
	CalibrationPath *string  `json:"calibration_path,omitempty"`

	// Rim detector
	BridgeGapMm   *float64 `json:"bridge_gap_mm,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`

	// Arc fitter
	Iterations     *int     `json:"iterations,omitempty"`
	MaxResidualPx  *float64 `json:"max_residual_px,omitempty"`
	ScaleTolerance *float64 `json:"scale_tolerance,omitempty"`
	MaxRotationDeg *float64 `json:"max_rotation_deg,omitempty"`

	// Refiner
	RefineStrategy    *string  `json:"refine_strategy,omitempty"`
	InlierThreshold   *float64 `json:"inlier_threshold,omitempty"`
	ReferenceResponse *float64 `json:"reference_response,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field set to the built-in
// stage defaults.
func DefaultTuningConfig() *TuningConfig {
	e := edges.DefaultParams()
	tr := trace.DefaultParams()
	rg := regularize.DefaultParams()
	rm := rim.DefaultParams()
	af := arcfit.DefaultParams()
	rf := refine.DefaultParams()
	return &TuningConfig{
		DirectionalBias:   ptrFloat64(e.DirectionalBias),
		HighFraction:      ptrFloat64(e.HighFraction),
		PercentileGain:    ptrFloat64(e.PercentileGain),
		LowRatio:          ptrFloat64(e.LowRatio),
		EdgeBorder:        ptrInt(e.Border),
		Samples:           ptrInt(tr.Samples),
		Oversample:        ptrInt(tr.Oversample),
		RingDiameterMm:    ptrFloat64(tr.RingDiameterMm),
		RingBandMm:        ptrFloat64(tr.RingBandMm),
		InteriorMarginMm:  ptrFloat64(tr.InteriorMarginMm),
		MaxJumpMm:         ptrFloat64(tr.MaxJumpMm),
		MinCoverage:       ptrFloat64(tr.MinCoverage),
		ClampK:            ptrFloat64(rg.ClampK),
		MinClamp:          ptrInt(rg.MinClamp),
		CalibrationPath:   ptrString(""),
		BridgeGapMm:       ptrFloat64(rm.BridgeGapMm),
		MinConfidence:     ptrFloat64(rm.MinConfidence),
		Iterations:        ptrInt(af.Iterations),
		MaxResidualPx:     ptrFloat64(af.MaxResidualPx),
		ScaleTolerance:    ptrFloat64(af.ScaleTolerance),
		MaxRotationDeg:    ptrFloat64(af.MaxRotationDeg),
		RefineStrategy:    ptrString(rf.Strategy.String()),
		InlierThreshold:   ptrFloat64(rf.InlierThreshold),
		ReferenceResponse: ptrFloat64(rf.ReferenceResponse),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// a parent. Panics if the file cannot be loaded; intended for tests and tools.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that the set values are usable.
func (c *TuningConfig) Validate() error {
	fractions := map[string]*float64{
		"high_fraction":   c.HighFraction,
		"low_ratio":       c.LowRatio,
		"min_coverage":    c.MinCoverage,
		"min_confidence":  c.MinConfidence,
		"scale_tolerance": c.ScaleTolerance,
	}
	for name, v := range fractions {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}
	positives := map[string]*float64{
		"ring_diameter_mm":   c.RingDiameterMm,
		"max_jump_mm":        c.MaxJumpMm,
		"max_residual_px":    c.MaxResidualPx,
		"reference_response": c.ReferenceResponse,
	}
	for name, v := range positives {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	if c.Samples != nil && *c.Samples < 8 {
		return fmt.Errorf("samples must be at least 8, got %d", *c.Samples)
	}
	if c.Oversample != nil && *c.Oversample < 1 {
		return fmt.Errorf("oversample must be at least 1, got %d", *c.Oversample)
	}
	if c.Iterations != nil && *c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", *c.Iterations)
	}
	if c.MinClamp != nil && *c.MinClamp < 0 {
		return fmt.Errorf("min_clamp must be non-negative, got %d", *c.MinClamp)
	}
	if c.RefineStrategy != nil {
		if _, ok := refine.ParseStrategy(*c.RefineStrategy); !ok {
			return fmt.Errorf("unknown refine_strategy %q", *c.RefineStrategy)
		}
	}
	return nil
}
