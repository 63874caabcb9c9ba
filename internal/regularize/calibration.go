package regularize

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Calibration is a per-angle radius bias table of a capture device, in
// millimeters, indexed in the tracer's angular convention. It is built once
// and passed explicitly to Regularize.
type Calibration struct {
	bias []float64
}

// NewCalibration copies a bias table.
func NewCalibration(biasMm []float64) *Calibration {
	return &Calibration{bias: append([]float64(nil), biasMm...)}
}

// LoadCalibration parses exactly n newline-separated millimeter values.
// Blank lines and lines starting with '#' are ignored.
func LoadCalibration(r io.Reader, n int) (*Calibration, error) {
	var bias []float64
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("calibration line %d: %w", line, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("calibration line %d: value %q is not finite", line, text)
		}
		bias = append(bias, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read calibration: %w", err)
	}
	if len(bias) != n {
		return nil, fmt.Errorf("calibration has %d values, want %d", len(bias), n)
	}
	return &Calibration{bias: bias}, nil
}

// LoadCalibrationFile reads a calibration table from disk.
func LoadCalibrationFile(path string, n int) (*Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open calibration: %w", err)
	}
	defer f.Close()
	return LoadCalibration(f, n)
}

// Len returns the number of table entries.
func (c *Calibration) Len() int { return len(c.bias) }

// Offsets returns the zero-mean correction in hundredths of a millimeter:
// round(100 * (table[i] - mean(table))).
func (c *Calibration) Offsets() []int {
	var mean float64
	for _, b := range c.bias {
		mean += b
	}
	mean /= float64(len(c.bias))
	out := make([]int, len(c.bias))
	for i, b := range c.bias {
		out[i] = int(math.Round(100 * (b - mean)))
	}
	return out
}
