package registration

import (
	"context"

	"histokit/internal/imaging"
	"histokit/pkg/geometry"
)

// Settings are the optimizer and metric parameters of one level, taken from
// the registrar config.
type Settings struct {
	LearningRate      float64
	MinStep           float64
	MaxIterations     int
	GradientTolerance float64
	RelaxationFactor  float64
	HistogramBins     int
	SamplingRate      float64
	Seed              int64
}

// Problem is one resolution level handed to the optimizer. Fixed and Moving
// are already shrunk and smoothed; transforms are in level pixel coordinates.
type Problem struct {
	Level        int
	ShrinkFactor int
	Fixed        imaging.Image
	Moving       imaging.Image
	Settings     Settings
}

// Iteration is reported by the optimizer after every iteration.
// Metric is lower-is-better.
type Iteration struct {
	Index     int
	Metric    float64
	Transform geometry.Similarity
}

// StopReason tells why the optimizer left a level.
type StopReason int

const (
	StopGradientTolerance StopReason = iota
	StopStepTooSmall
	StopMaxIterations
)

func (r StopReason) String() string {
	switch r {
	case StopGradientTolerance:
		return "gradient tolerance"
	case StopStepTooSmall:
		return "step too small"
	case StopMaxIterations:
		return "maximum iterations"
	default:
		return "unknown"
	}
}

// Converged reports whether the optimizer stopped on its own criteria rather
// than the iteration cap.
func (r StopReason) Converged() bool {
	return r == StopGradientTolerance || r == StopStepTooSmall
}

// LevelResult is what the optimizer returns for one level.
type LevelResult struct {
	Transform  geometry.Similarity
	Metric     float64
	Iterations int
	Reason     StopReason
}

// Optimizer runs an iterative search on one resolution level, starting from
// initial. It must call observe exactly once per iteration, synchronously,
// and stop returning observe's error as soon as observe fails.
type Optimizer interface {
	Optimize(ctx context.Context, p Problem, initial geometry.Similarity, observe func(Iteration) error) (LevelResult, error)
}

// Pyramid provides the image primitives of a run.
type Pyramid interface {
	// Downsample smooths img with a Gaussian of sigma pixels (0 = none) and
	// shrinks it by an integer factor.
	Downsample(img imaging.Image, factor int, sigma float64) (imaging.Image, error)

	// Resample warps moving into the grid of reference; t maps moving
	// coordinates onto reference coordinates.
	Resample(moving, reference imaging.Image, t geometry.Similarity) (imaging.Image, error)
}

// Progress is the accumulated run history: entry i is the i-th optimizer
// iteration of the run, its cumulative index, the level it ran on and the
// metric value.
type Progress struct {
	Iterations []int
	Levels     []int
	Metrics    []float64
}

// Len returns the number of recorded iterations.
func (p Progress) Len() int {
	return len(p.Metrics)
}

func (p *Progress) add(level int, metric float64) {
	p.Iterations = append(p.Iterations, len(p.Metrics))
	p.Levels = append(p.Levels, level)
	p.Metrics = append(p.Metrics, metric)
}

// snapshot returns a view that callers cannot grow into the registrar's
// backing arrays.
func (p Progress) snapshot() Progress {
	n := len(p.Metrics)
	return Progress{
		Iterations: p.Iterations[:n:n],
		Levels:     p.Levels[:n:n],
		Metrics:    p.Metrics[:n:n],
	}
}

// ProgressFunc receives the full history after every iteration. The run does
// not continue until it returns.
type ProgressFunc func(Progress)
