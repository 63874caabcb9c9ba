package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lens-tracer/internal/arcfit"
	"lens-tracer/internal/refine"
	"lens-tracer/internal/regularize"
	"lens-tracer/internal/rim"
	"lens-tracer/internal/trace"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultTuningConfig(), cfg); diff != "" {
		t.Errorf("%s drifted from the stage defaults (-builtin +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestEmptyConfigUsesStageDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	tp := cfg.TraceParams()
	assert.Equal(t, trace.DefaultParams().Samples, tp.Samples)
	assert.Equal(t, trace.DefaultParams().RingDiameterMm, tp.RingDiameterMm)
	assert.Equal(t, regularize.DefaultParams(), cfg.RegularizeParams())
	assert.Equal(t, rim.DefaultParams(), cfg.RimParams())
	assert.Equal(t, arcfit.DefaultParams(), cfg.ArcFitParams())
	assert.Equal(t, refine.InlierMedian, cfg.RefineParams().Strategy)
	assert.Equal(t, "", cfg.GetCalibrationPath())
}

func TestPartialConfigOverrides(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
		"samples": 400,
		"ring_diameter_mm": 60,
		"iterations": 5,
		"refine_strategy": "inlier-mean",
		"calibration_path": "bias.txt"
	}`)
	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	tp := cfg.TraceParams()
	assert.Equal(t, 400, tp.Samples)
	assert.Equal(t, 60.0, tp.RingDiameterMm)
	assert.Equal(t, trace.DefaultParams().MinCoverage, tp.MinCoverage)
	assert.Equal(t, 5, cfg.ArcFitParams().Iterations)
	assert.Equal(t, refine.InlierMean, cfg.RefineParams().Strategy)
	assert.Equal(t, "bias.txt", cfg.GetCalibrationPath())
}

func TestLoadTuningConfigRejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"extension", "tuning.yaml", `{}`, ".json extension"},
		{"syntax", "tuning.json", `{"samples":`, "parse config JSON"},
		{"fraction", "tuning.json", `{"min_coverage": 1.5}`, "min_coverage"},
		{"positive", "tuning.json", `{"max_jump_mm": 0}`, "max_jump_mm"},
		{"samples", "tuning.json", `{"samples": 4}`, "samples"},
		{"strategy", "tuning.json", `{"refine_strategy": "best"}`, "refine_strategy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadTuningConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
