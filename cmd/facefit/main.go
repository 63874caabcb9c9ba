// Command facefit places a traced lens contour on both eyes of a face photo
// and prints the derived measurements.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"lens-tracer/internal/config"
	"lens-tracer/internal/debugplot"
	"lens-tracer/internal/fil"
	"lens-tracer/internal/gray"
	"lens-tracer/internal/logger"
	"lens-tracer/internal/pipeline"
	"lens-tracer/internal/report"
	"lens-tracer/internal/version"
	"lens-tracer/pkg/geometry"
)

func main() {
	imagePath := flag.String("image", "", "Face photo")
	filPath := flag.String("fil", "", "Reference lens contour (FIL)")
	midline := flag.Float64("midline", 0, "Facial midline x (px)")
	pxPerMm := flag.Float64("pxmm", 0, "Approximate scale in px/mm")
	irisScale := flag.Float64("iris-scale", 0, "Independent scale in px/mm, 0 when unknown")
	leftROI := flag.String("left-roi", "", "Image-left eye region x,y,w,h")
	rightROI := flag.String("right-roi", "", "Image-right eye region x,y,w,h")
	leftPupil := flag.String("left-pupil", "", "Image-left pupil x,y")
	rightPupil := flag.String("right-pupil", "", "Image-right pupil x,y")
	browY := flag.Float64("brow", -1, "Eyebrow bottom y (px), negative when unknown")
	bridgeY := flag.Float64("bridge", -1, "Bridge row y (px), negative when unknown")
	configPath := flag.String("config", "", "Tuning config (.json)")
	outPath := flag.String("out", "", "Write a JSON report")
	plotPath := flag.String("plot", "", "Write a contour plot")
	level := flag.String("log", "info", "Log level")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("facefit"))
		return
	}
	if *imagePath == "" || *filPath == "" || *pxPerMm <= 0 || *leftROI == "" || *rightROI == "" {
		fmt.Println("Usage: facefit -image <face> -fil <lens.fil> -midline <x> -pxmm <px/mm> -left-roi x,y,w,h -right-roi x,y,w,h -left-pupil x,y -right-pupil x,y [-brow y] [-bridge y] [-out report.json]")
		os.Exit(1)
	}
	log := logger.Component(logger.Console(logger.ParseLevel(*level)), "facefit")

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			fatalf("Failed to load config: %v", err)
		}
	}

	img, err := gray.Load(*imagePath)
	if err != nil {
		fatalf("Failed to load image: %v", err)
	}
	rec, err := fil.ParseFile(*filPath)
	if err != nil {
		fatalf("Failed to read reference: %v", err)
	}
	ref, err := rec.Contour()
	if err != nil {
		fatalf("Invalid reference contour: %v", err)
	}
	w, h := ref.Box()
	fmt.Printf("Loaded %s: %dx%d pixels\n", *imagePath, img.Width, img.Height)
	fmt.Printf("Reference %q: %d samples, box %.2f x %.2f mm\n", rec.Job, ref.N(), w, h)

	in := pipeline.FaceInput{
		Image:            img,
		MidlineX:         *midline,
		PxPerMmGuess:     *pxPerMm,
		IndependentScale: *irisScale,
		Reference:        ref,
	}
	in.Eyes[pipeline.ImageLeft] = eyeInput(*leftROI, *leftPupil, *browY, *bridgeY)
	in.Eyes[pipeline.ImageRight] = eyeInput(*rightROI, *rightPupil, *browY, *bridgeY)

	opts := pipeline.DefaultFaceOptions()
	opts.Edges = cfg.EdgeParams()
	opts.Rim = cfg.RimParams()
	opts.ArcFit = cfg.ArcFitParams()
	opts.Refine = cfg.RefineParams()

	face, err := pipeline.RunFace(context.Background(), in, opts, log)
	if err != nil {
		fatalf("Fit failed: %v", err)
	}

	fmt.Printf("\n=== Eyes ===\n")
	fmt.Printf("%-12s %6s %8s %8s %8s %8s %8s\n", "Eye", "Rim", "Mirror", "Scale", "Rot", "RMS", "Refine")
	for _, e := range face.Eyes {
		if !e.OK() {
			fmt.Printf("%-12s failed: %v\n", e.Side, e.Err)
			continue
		}
		conf, mirrored := 0.0, false
		if e.Rim != nil {
			conf, mirrored = e.Rim.Confidence, e.Rim.Mirrored
		}
		refineScore := 0.0
		if e.Refined != nil {
			refineScore = e.Refined.Best.Score
		}
		fmt.Printf("%-12s %6.2f %8v %8.3f %8.2f %8.2f %8.2f\n",
			e.Side, conf, mirrored, e.Fit.Scale, e.Fit.RotationDeg, e.Fit.ResidualRMS, refineScore)
	}

	m, err := pipeline.Measure(in, face)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No measurements: %v\n", err)
	} else {
		fmt.Printf("\n=== Measurements (mm at %.3f px/mm) ===\n", m.Scale)
		if m.Binocular {
			fmt.Printf("PD: %.1f\n", m.PD)
			fmt.Printf("Bridge: %.1f\n", m.Bridge)
		}
		for s, em := range m.Eyes {
			if !em.Valid {
				continue
			}
			fmt.Printf("%-12s mono PD %.1f  height %.1f  box %.1f x %.1f\n",
				pipeline.Side(s), em.MonoPD, em.FittingHeight, em.BoxWidth, em.BoxHeight)
		}
	}

	if *outPath != "" {
		r := report.FromFace(face, m)
		r.SetImage(*outPath, *imagePath)
		r.SetReference(*outPath, *filPath, rec.Job)
		if err := r.Save(*outPath); err != nil {
			fatalf("Failed to write report: %v", err)
		}
		log.Info().Str("path", *outPath).Str("id", r.ID).Msg("wrote report")
	}

	if *plotPath != "" {
		var outlines []debugplot.Outline
		for _, e := range face.Eyes {
			if e.OK() {
				outlines = append(outlines, debugplot.Outline{Name: e.Side.String(), Points: e.Points})
			}
		}
		if len(outlines) > 0 {
			if err := debugplot.Contours(*plotPath, "Placed contours", outlines...); err != nil {
				fatalf("Failed to write plot: %v", err)
			}
		}
	}
}

func eyeInput(roi, pupil string, browY, bridgeY float64) pipeline.EyeInput {
	r, err := parseInts(roi, 4)
	if err != nil {
		fatalf("Invalid roi %q: %v", roi, err)
	}
	in := pipeline.EyeInput{ROI: geometry.NewRectInt(r[0], r[1], r[2], r[3])}
	if pupil != "" {
		p, err := parseInts(pupil, 2)
		if err != nil {
			fatalf("Invalid pupil %q: %v", pupil, err)
		}
		in.Pupil = geometry.Point2D{X: float64(p[0]), Y: float64(p[1])}
	} else {
		in.Pupil = in.ROI.ToFloat().Center()
	}
	if browY >= 0 {
		in.BrowY = &browY
	}
	if bridgeY >= 0 {
		in.BridgeRowY = &bridgeY
	}
	return in
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
