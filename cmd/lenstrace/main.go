// Command lenstrace traces a lens photographed on the calibration ring and
// writes the regularized contour as a FIL file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"lens-tracer/internal/config"
	"lens-tracer/internal/debugplot"
	"lens-tracer/internal/fil"
	"lens-tracer/internal/gray"
	"lens-tracer/internal/logger"
	"lens-tracer/internal/pipeline"
	"lens-tracer/internal/regularize"
	"lens-tracer/internal/version"
)

func main() {
	images := flag.String("image", "", "Lens photo, or a comma-separated burst of photos (TIFF, PNG, JPEG, BMP)")
	pxPerMm := flag.Float64("pxmm", 0, "Image scale in pixels per millimeter")
	configPath := flag.String("config", "", "Tuning config (.json); built-in defaults when empty")
	calibPath := flag.String("calib", "", "Per-angle bias table; overrides calibration_path from the config")
	outPath := flag.String("out", "lens.fil", "Output FIL path")
	job := flag.String("job", "", "FIL job id; random when empty")
	manufacturer := flag.String("mfr", "LT", "FIL manufacturer tag")
	scorerName := flag.String("scorer", "laplacian", "Burst frame score: laplacian or edges")
	plotPath := flag.String("plot", "", "Write a radius plot (.png, .svg, .pdf)")
	level := flag.String("log", "info", "Log level")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("lenstrace"))
		return
	}
	if *images == "" || *pxPerMm <= 0 {
		fmt.Println("Usage: lenstrace -image <path>[,<path>...] -pxmm <px/mm> [-out lens.fil] [-config tuning.json] [-calib bias.txt] [-plot radii.png]")
		os.Exit(1)
	}
	log := logger.Component(logger.Console(logger.ParseLevel(*level)), "lenstrace")

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	opts := pipeline.FrameOptions{
		PxPerMm:    *pxPerMm,
		Trace:      cfg.TraceParams(),
		Regularize: cfg.RegularizeParams(),
	}
	calib := cfg.GetCalibrationPath()
	if *calibPath != "" {
		calib = *calibPath
	}
	if calib != "" {
		cal, err := regularize.LoadCalibrationFile(calib, opts.Trace.Samples)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load calibration: %v\n", err)
			os.Exit(1)
		}
		opts.Calibration = cal
	}

	var frames []*gray.Image
	for _, path := range strings.Split(*images, ",") {
		img, err := gray.Load(strings.TrimSpace(path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded %s: %dx%d pixels\n", path, img.Width, img.Height)
		frames = append(frames, img)
	}

	fmt.Printf("\nTrace parameters:\n")
	fmt.Printf("  Scale: %.3f px/mm\n", opts.PxPerMm)
	fmt.Printf("  Ring: %.1f mm (band %.2f mm, margin %.2f mm)\n",
		opts.Trace.RingDiameterMm, opts.Trace.RingBandMm, opts.Trace.InteriorMarginMm)
	fmt.Printf("  Samples: %d x%d oversampled\n", opts.Trace.Samples, opts.Trace.Oversample)
	fmt.Printf("  Calibration: %v\n", opts.Calibration != nil)

	var scorer pipeline.FrameScorer = pipeline.LaplacianVariance{}
	if *scorerName == "edges" {
		scorer = pipeline.EdgeDensity{Params: opts.Trace.Edges}
	}

	res, err := pipeline.TraceBest(context.Background(), frames, scorer, opts, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Trace failed: %v\n", err)
		os.Exit(1)
	}

	tr := res.Trace
	fmt.Printf("\n=== Trace ===\n")
	if len(frames) > 1 {
		fmt.Printf("Frame: %d of %d (score %.1f, %d failed)\n", res.Index+1, len(frames), res.FrameScore, res.Failures)
	}
	fmt.Printf("Ring: center (%.1f, %.1f) radius %.1f px, score %.2f\n",
		tr.Ring.Center.X, tr.Ring.Center.Y, tr.Ring.Radius, tr.Ring.Score)
	fmt.Printf("Ring scale: %.3f px/mm (given %.3f, %+.2f%%)\n",
		tr.RingPxPerMm, opts.PxPerMm, 100*(tr.RingPxPerMm/opts.PxPerMm-1))
	fmt.Printf("Coverage: %.1f%%", 100*tr.Coverage)
	if tr.Fallback {
		fmt.Printf(" (contour fallback)")
	}
	fmt.Println()

	rec, err := fil.FromContour(*job, res.Contour, *manufacturer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build FIL record: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n=== Contour ===\n")
	fmt.Printf("%-8s %10s\n", "Field", "mm")
	fmt.Printf("%-8s %10.2f\n", "HBOX", rec.HBox)
	fmt.Printf("%-8s %10.2f\n", "VBOX", rec.VBox)
	fmt.Printf("%-8s %10.2f\n", "FED", rec.FED)
	fmt.Printf("%-8s %10.2f\n", "CIRC", rec.Circ)

	if err := fil.WriteFile(*outPath, rec); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log.Info().Str("path", *outPath).Str("job", rec.Job).Msg("wrote FIL")

	if *plotPath != "" {
		err := debugplot.Radii(*plotPath, "Lens radii (tracer convention)",
			debugplot.Ints("raw", res.Raw), debugplot.Ints("regularized", res.Regularized))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write plot: %v\n", err)
			os.Exit(1)
		}
		log.Info().Str("path", *plotPath).Msg("wrote plot")
	}
}
