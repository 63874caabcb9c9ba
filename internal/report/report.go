// Package report provides measurement report handling and persistence.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"lens-tracer/internal/failure"
	"lens-tracer/internal/pipeline"
	"lens-tracer/internal/version"
	"lens-tracer/pkg/geometry"
)

// File is a face measurement report (.json).
type File struct {
	Version  int       `json:"version"`
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Tool     string    `json:"tool"`

	// Input paths (relative to the report file)
	ImagePath     string `json:"image,omitempty"`
	ReferencePath string `json:"reference,omitempty"`
	ReferenceJob  string `json:"reference_job,omitempty"`

	Scale        float64       `json:"scale_px_per_mm,omitempty"`
	Measurements *Measurements `json:"measurements,omitempty"`
	Eyes         []Eye         `json:"eyes"`
}

// Measurements are the derived values in millimeters.
type Measurements struct {
	PD        float64 `json:"pd,omitempty"`
	Bridge    float64 `json:"bridge,omitempty"`
	Binocular bool    `json:"binocular"`
}

// Eye is the outcome for one eye.
type Eye struct {
	Side          string             `json:"side"`
	OK            bool               `json:"ok"`
	Error         string             `json:"error,omitempty"`
	FailureKind   string             `json:"failure_kind,omitempty"`
	RimConfidence float64            `json:"rim_confidence,omitempty"`
	Mirrored      bool               `json:"mirrored,omitempty"`
	Scale         float64            `json:"scale_px_per_mm,omitempty"`
	RotationDeg   float64            `json:"rotation_deg,omitempty"`
	ResidualPx    float64            `json:"residual_px,omitempty"`
	RefineScore   float64            `json:"refine_score,omitempty"`
	MonoPD        float64            `json:"mono_pd,omitempty"`
	FittingHeight float64            `json:"fitting_height,omitempty"`
	BoxWidth      float64            `json:"box_width,omitempty"`
	BoxHeight     float64            `json:"box_height,omitempty"`
	Contour       []geometry.Point2D `json:"contour,omitempty"`
}

// New creates an empty report with a fresh id.
func New() *File {
	now := time.Now()
	return &File{
		Version:  1,
		ID:       uuid.NewString(),
		Created:  now,
		Modified: now,
		Tool:     "lens-tracer " + version.Version,
	}
}

// FromFace builds a report from a face run. m may be nil when no eye fitted.
func FromFace(face *pipeline.FaceResult, m *pipeline.Measurements) *File {
	f := New()
	if m != nil {
		f.Scale = m.Scale
		f.Measurements = &Measurements{PD: m.PD, Bridge: m.Bridge, Binocular: m.Binocular}
	}
	for s, e := range face.Eyes {
		if e == nil {
			continue
		}
		eye := Eye{Side: e.Side.String(), OK: e.OK()}
		if e.Err != nil {
			eye.Error = e.Err.Error()
			if k := failure.KindOf(e.Err); k != 0 {
				eye.FailureKind = k.String()
			}
		}
		if e.Rim != nil {
			eye.RimConfidence = e.Rim.Confidence
			eye.Mirrored = e.Rim.Mirrored
		}
		if e.Fit != nil {
			eye.Scale = e.Fit.Scale
			eye.RotationDeg = e.Fit.RotationDeg
			eye.ResidualPx = e.Fit.ResidualRMS
		}
		if e.Refined != nil {
			eye.RefineScore = e.Refined.Best.Score
		}
		if m != nil && m.Eyes[s].Valid {
			eye.MonoPD = m.Eyes[s].MonoPD
			eye.FittingHeight = m.Eyes[s].FittingHeight
			eye.BoxWidth = m.Eyes[s].BoxWidth
			eye.BoxHeight = m.Eyes[s].BoxHeight
		}
		eye.Contour = e.Points
		f.Eyes = append(f.Eyes, eye)
	}
	return f
}

// Load loads a report from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r File
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}

// Save writes the report to path.
func (r *File) Save(path string) error {
	r.Modified = time.Now()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetImage records the face image path relative to the report.
func (r *File) SetImage(reportPath, imagePath string) {
	r.ImagePath = relativeTo(reportPath, imagePath)
}

// SetReference records the reference FIL path relative to the report.
func (r *File) SetReference(reportPath, filPath, job string) {
	r.ReferencePath = relativeTo(reportPath, filPath)
	r.ReferenceJob = job
}

// GetImagePath returns the absolute path to the face image.
func (r *File) GetImagePath(reportPath string) string {
	return resolve(reportPath, r.ImagePath)
}

// GetReferencePath returns the absolute path to the reference FIL file.
func (r *File) GetReferencePath(reportPath string) string {
	return resolve(reportPath, r.ReferencePath)
}

func relativeTo(reportPath, path string) string {
	rel, err := filepath.Rel(filepath.Dir(reportPath), path)
	if err != nil {
		return path
	}
	return rel
}

func resolve(reportPath, path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(reportPath), path)
}
