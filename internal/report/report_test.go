package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lens-tracer/internal/arcfit"
	"lens-tracer/internal/failure"
	"lens-tracer/internal/pipeline"
	"lens-tracer/internal/refine"
	"lens-tracer/internal/rim"
	"lens-tracer/pkg/geometry"
)

func sampleFace() (*pipeline.FaceResult, *pipeline.Measurements) {
	face := &pipeline.FaceResult{}
	face.Eyes[pipeline.ImageLeft] = &pipeline.EyeResult{
		Side: pipeline.ImageLeft,
		Err:  failure.New(failure.KindOutOfTolerance, "arcfit", "residual 4.1 px exceeds 3.0 px"),
		Rim:  &rim.Estimate{Confidence: 0.3, Mirrored: true},
	}
	face.Eyes[pipeline.ImageRight] = &pipeline.EyeResult{
		Side:    pipeline.ImageRight,
		Rim:     &rim.Estimate{Confidence: 0.9, OK: true},
		Fit:     &arcfit.Result{Scale: 4.02, RotationDeg: 1.5, ResidualRMS: 0.7},
		Refined: &refine.Result{Best: refine.Candidate{Scale: 1, Score: 0.92}},
		Points:  []geometry.Point2D{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 1}},
	}
	m := &pipeline.Measurements{Scale: 4.02}
	m.Eyes[pipeline.ImageRight] = pipeline.EyeMeasurements{MonoPD: 33.5, FittingHeight: 19, BoxWidth: 50.2, BoxHeight: 37.1, Valid: true}
	return face, m
}

func TestFromFace(t *testing.T) {
	face, m := sampleFace()
	r := FromFace(face, m)

	assert.Len(t, r.ID, 36)
	assert.Equal(t, 4.02, r.Scale)
	require.NotNil(t, r.Measurements)
	assert.False(t, r.Measurements.Binocular)
	require.Len(t, r.Eyes, 2)

	left := r.Eyes[0]
	assert.Equal(t, "image-left", left.Side)
	assert.False(t, left.OK)
	assert.Equal(t, failure.KindOutOfTolerance.String(), left.FailureKind)
	assert.Contains(t, left.Error, "residual")
	assert.True(t, left.Mirrored)
	assert.Zero(t, left.MonoPD)

	right := r.Eyes[1]
	assert.True(t, right.OK)
	assert.Empty(t, right.FailureKind)
	assert.Equal(t, 0.92, right.RefineScore)
	assert.Equal(t, 33.5, right.MonoPD)
	assert.Len(t, right.Contour, 3)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "report.json")
	face, m := sampleFace()
	r := FromFace(face, m)
	r.SetImage(path, filepath.Join(dir, "images", "face.png"))
	r.SetReference(path, filepath.Join(dir, "out", "lens.fil"), "job-1")

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, r.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, filepath.Join("..", "images", "face.png"), got.ImagePath)
	assert.Equal(t, "lens.fil", got.ReferencePath)
	assert.Equal(t, filepath.Join(dir, "images", "face.png"), got.GetImagePath(path))
	assert.Equal(t, filepath.Join(dir, "out", "lens.fil"), got.GetReferencePath(path))
	assert.Equal(t, r.Eyes, got.Eyes)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
