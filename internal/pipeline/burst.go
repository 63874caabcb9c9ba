package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"lens-tracer/internal/edges"
	"lens-tracer/internal/gray"
)

// FrameScorer rates the sharpness of a candidate frame; higher is better.
type FrameScorer interface {
	Score(img *gray.Image) float64
}

// EdgeDensity scores a frame by the fraction of edge pixels.
type EdgeDensity struct {
	Params edges.Params
}

// Score returns the edge pixel count over the frame area, or 0 when the
// frame has no edge signal.
func (s EdgeDensity) Score(img *gray.Image) float64 {
	em, err := edges.Build(img, s.Params)
	if err != nil {
		return 0
	}
	return float64(em.Count()) / float64(img.Width*img.Height)
}

// LaplacianVariance scores a frame by the variance of its 4-neighbour Laplacian.
type LaplacianVariance struct{}

// Score returns the squared standard deviation of the aperture-1 Laplacian.
func (LaplacianVariance) Score(img *gray.Image) float64 {
	src, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8U, img.Pix)
	if err != nil {
		return 0
	}
	defer src.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(src, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)
	if stddev.Empty() {
		return 0
	}
	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}

// BurstResult is the frame selected by TraceBest.
type BurstResult struct {
	*FrameResult
	Index      int
	FrameScore float64
	Failures   int // frames that did not trace
}

// TraceBest traces every frame concurrently and returns the successful trace
// of the frame the scorer rates highest. Frame failures are logged and only
// reported when no frame traces; cancellation of ctx aborts the run.
func TraceBest(ctx context.Context, frames []*gray.Image, scorer FrameScorer, opts FrameOptions, log zerolog.Logger) (*BurstResult, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames")
	}
	results := make([]*FrameResult, len(frames))
	scores := make([]float64, len(frames))
	errs := make([]error, len(frames))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, img := range frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scores[i] = scorer.Score(img)
			results[i], errs[i] = TraceFrame(img, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := -1
	failures := 0
	for i := range frames {
		if errs[i] != nil {
			failures++
			log.Debug().Int("frame", i).Err(errs[i]).Msg("frame did not trace")
			continue
		}
		if best < 0 || scores[i] > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("none of %d frames traced: %w", len(frames), errors.Join(errs...))
	}

	log.Info().
		Int("frame", best).
		Float64("frame_score", scores[best]).
		Float64("coverage", results[best].Trace.Coverage).
		Int("failures", failures).
		Msg("selected frame")
	return &BurstResult{FrameResult: results[best], Index: best, FrameScore: scores[best], Failures: failures}, nil
}
