package fil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Representation selects how radii are written.
type Representation int

const (
	Hundredths Representation = iota
	Millimeters
)

// Write encodes r with radii in hundredths of a millimeter.
func Write(w io.Writer, r *Record) error {
	return WriteAs(w, r, Hundredths)
}

// WriteAs encodes r with the given radius representation. Text that cannot be
// represented in Latin-1 is an error, as is a job id containing a quote or a
// line break.
func WriteAs(w io.Writer, r *Record, rep Representation) error {
	if err := checkJob(r.Job); err != nil {
		return err
	}
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	line("REQ=FIL")
	line(`JOB="%s"`, r.Job)
	line("STATUS=%d", r.Status)
	line("TRCFMT=1;%d;E;R;D", len(r.Radii))
	for start := 0; start < len(r.Radii); start += ValuesPerLine {
		end := min(start+ValuesPerLine, len(r.Radii))
		b.WriteString("R=")
		for _, v := range r.Radii[start:end] {
			if rep == Millimeters {
				b.WriteString(strconv.FormatFloat(float64(v)/100, 'f', 2, 64))
			} else {
				b.WriteString(strconv.Itoa(v))
			}
			b.WriteByte(';')
		}
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	line("CIRC=%.2f;?", r.Circ)
	line("FED=%.2f;?", r.FED)
	line("HBOX=%.2f;?", r.HBox)
	line("VBOX=%.2f;?", r.VBox)
	line("FMFR=%s", r.Manufacturer)
	line("FRAM=%s", r.Frame)
	line("EYESIZ=%.2f", r.EyeSize)

	encoded, err := charmap.ISO8859_1.NewEncoder().String(b.String())
	if err != nil {
		return fmt.Errorf("fil: encode latin-1: %w", err)
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(encoded); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile writes r to path in hundredths.
func WriteFile(path string, r *Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create FIL file: %w", err)
	}
	if err := Write(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write FIL file: %w", err)
	}
	return f.Close()
}

// checkJob rejects ids that the quoted JOB field cannot carry verbatim.
func checkJob(job string) error {
	if strings.ContainsAny(job, "\"\r\n") {
		return fmt.Errorf("fil: job id %q contains a quote or line break", job)
	}
	return nil
}
