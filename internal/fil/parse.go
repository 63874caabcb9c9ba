package fil

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

var (
	hboxPattern = regexp.MustCompile(`HBOX=\s*([-+]?[0-9]*\.?[0-9]+)`)
	vboxPattern = regexp.MustCompile(`VBOX=\s*([-+]?[0-9]*\.?[0-9]+)`)
)

// Parse decodes one Latin-1 FIL record. Radii may be hundredths of a
// millimeter or millimeters; a record whose largest value is at least 200 is
// read as hundredths. When TRCFMT names a sample count the R= values must
// match it.
func Parse(rd io.Reader) (*Record, error) {
	raw, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(rd))
	if err != nil {
		return nil, fmt.Errorf("fil: read: %w", err)
	}
	text := string(raw)

	rec := &Record{}
	var values []float64
	declared := -1

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "R":
			for _, field := range strings.Split(value, ";") {
				field = strings.TrimSpace(field)
				if field == "" {
					continue
				}
				v, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return nil, fmt.Errorf("fil: line %d: bad radius %q", lineNo, field)
				}
				values = append(values, v)
			}
		case "TRCFMT":
			parts := strings.Split(value, ";")
			if len(parts) >= 2 {
				n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
				if err != nil {
					return nil, fmt.Errorf("fil: line %d: bad TRCFMT %q", lineNo, value)
				}
				declared = n
			}
		case "JOB":
			rec.Job = strings.Trim(value, `"`)
		case "STATUS":
			rec.Status, _ = strconv.Atoi(value)
		case "CIRC":
			rec.Circ = leadingFloat(value)
		case "FED":
			rec.FED = leadingFloat(value)
		case "FMFR":
			rec.Manufacturer = value
		case "FRAM":
			rec.Frame = value
		case "EYESIZ":
			rec.EyeSize = leadingFloat(value)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("fil: scan: %w", err)
	}

	if m := hboxPattern.FindStringSubmatch(text); m != nil {
		rec.HBox, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := vboxPattern.FindStringSubmatch(text); m != nil {
		rec.VBox, _ = strconv.ParseFloat(m[1], 64)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("fil: no R= radii")
	}
	if declared >= 0 && declared != len(values) {
		return nil, fmt.Errorf("fil: TRCFMT declares %d radii, found %d", declared, len(values))
	}
	rec.Radii = toHundredths(values)
	return rec, nil
}

// ParseFile reads a FIL record from path.
func ParseFile(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FIL file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func toHundredths(values []float64) []int {
	maxV := math.Inf(-1)
	for _, v := range values {
		maxV = math.Max(maxV, v)
	}
	factor := 100.0
	if maxV >= hundredthsThreshold {
		factor = 1
	}
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(math.Round(v * factor))
	}
	return out
}

// leadingFloat parses the value before the first ';', 0 when absent.
func leadingFloat(value string) float64 {
	head, _, _ := strings.Cut(value, ";")
	v, err := strconv.ParseFloat(strings.TrimSpace(head), 64)
	if err != nil {
		return 0
	}
	return v
}
