package registration

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"histokit/internal/imaging"
	"histokit/internal/param"
	"histokit/pkg/geometry"
)

// State is the position of a registrar in its life cycle.
type State int

const (
	StateIdle State = iota
	StateConfiguring
	StateRunning
	StateConverged
	StateIterationLimitReached
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateIterationLimitReached:
		return "iteration limit reached"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of a successful run.
type Result struct {
	Transform    geometry.Similarity
	State        State
	Iterations   int
	Metric       float64
	Levels       []LevelResult
	Checkerboard imaging.Image
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registrar) {
		r.logger = l.With().Str("component", "registration").Logger()
	}
}

// WithChannel selects the plane used from multi-channel images. The default
// is 1.
func WithChannel(c int) Option {
	return func(r *Registrar) {
		r.channel = c
	}
}

// WithSeed sets the seed of the metric's random sampling.
func WithSeed(seed int64) Option {
	return func(r *Registrar) {
		r.seed = seed
	}
}

// Registrar aligns a moving image onto a fixed image with a coarse-to-fine
// schedule. It is not safe for concurrent use.
type Registrar struct {
	pyramid   Pyramid
	optimizer Optimizer
	config    *param.Config
	logger    zerolog.Logger
	channel   int
	seed      int64

	fixed   *imaging.Image
	moving  *imaging.Image
	initial geometry.Similarity
	state   State
}

// New returns an idle registrar with a fresh copy of the default config.
func New(pyr Pyramid, opt Optimizer, opts ...Option) *Registrar {
	r := &Registrar{
		pyramid:   pyr,
		optimizer: opt,
		config:    param.NewConfig(Algorithm, Schema()),
		logger:    zerolog.Nop(),
		channel:   1,
		seed:      1,
		initial:   geometry.IdentitySimilarity(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config returns the registrar's parameters. Writes through it are validated.
func (r *Registrar) Config() *param.Config {
	return r.config
}

// State reports the life cycle position.
func (r *Registrar) State() State {
	return r.state
}

func (r *Registrar) configuring() {
	if r.state != StateRunning {
		r.state = StateConfiguring
	}
}

// SetFixed sets the reference image.
func (r *Registrar) SetFixed(img imaging.Image) {
	r.fixed = &img
	r.configuring()
}

// SetMoving sets the image to be aligned.
func (r *Registrar) SetMoving(img imaging.Image) {
	r.moving = &img
	r.configuring()
}

// SetInitialTransform sets the starting moving-to-fixed transform.
func (r *Registrar) SetInitialTransform(t geometry.Similarity) {
	r.initial = t
	r.configuring()
}

// Configure applies parameter assignments in order, stopping at the first
// invalid one.
func (r *Registrar) Configure(assignments []param.Assignment) error {
	r.configuring()
	return r.config.Update(assignments)
}

func (r *Registrar) settings() Settings {
	return Settings{
		LearningRate:      r.config.Float(ParamLearningRate),
		MinStep:           r.config.Float(ParamMinStep),
		MaxIterations:     r.config.Int(ParamIterations),
		GradientTolerance: r.config.Float(ParamGradTolerance),
		RelaxationFactor:  r.config.Float(ParamRelaxFactor),
		HistogramBins:     r.config.Int(ParamHistogramBins),
		SamplingRate:      r.config.Float(ParamSamplingRate),
		Seed:              r.seed,
	}
}

// run is the state of a single Register call.
type run struct {
	level    int
	metric   float64
	history  Progress
	progress ProgressFunc
}

// Register runs every level of the schedule and returns the final transform.
// progress, when non-nil, is called synchronously after each optimizer
// iteration. ctx is checked once per iteration.
func (r *Registrar) Register(ctx context.Context, progress ProgressFunc) (*Result, error) {
	if r.state == StateRunning {
		return nil, ErrAlreadyRunning
	}
	r.state = StateRunning
	defer func() {
		// A panicking progress callback must not leave the registrar locked.
		if r.state == StateRunning {
			r.state = StateFailed
		}
	}()
	st := &run{level: -1, metric: math.NaN(), progress: progress}

	fail := func(err error) (*Result, error) {
		r.state = StateFailed
		r.logger.Info().Err(err).Int("level", st.level).Msg("registration failed")
		return nil, &RegistrationError{Level: st.level, Metric: st.metric, Err: err}
	}

	shrink := r.config.Ints(ParamShrinkFactor)
	sigma := r.config.Ints(ParamSmoothSigma)
	pattern := r.config.Ints(ParamCheckerPattern)
	if len(shrink) != len(sigma) {
		return fail(fmt.Errorf("%w: %d shrink factors, %d sigmas", ErrConfigMismatch, len(shrink), len(sigma)))
	}
	if len(shrink) == 0 {
		return fail(fmt.Errorf("%w: empty schedule", ErrConfigMismatch))
	}
	if len(pattern) != 2 {
		return fail(fmt.Errorf("%w: checker_pattern needs 2 values, got %d", ErrConfigMismatch, len(pattern)))
	}

	fixed, moving, err := r.planes(shrink)
	if err != nil {
		return fail(err)
	}

	settings := r.settings()
	current := r.initial
	var levels []LevelResult

	for level, factor := range shrink {
		st.level = level
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		fixedL, err := r.pyramid.Downsample(fixed, factor, float64(sigma[level]))
		if err != nil {
			return fail(fmt.Errorf("%w: fixed image at level %d: %v", ErrDimensionMismatch, level, err))
		}
		movingL, err := r.pyramid.Downsample(moving, factor, float64(sigma[level]))
		if err != nil {
			return fail(fmt.Errorf("%w: moving image at level %d: %v", ErrDimensionMismatch, level, err))
		}

		r.logger.Debug().
			Int("level", level).
			Int("shrink", factor).
			Int("sigma", sigma[level]).
			Int("width", fixedL.Width).
			Int("height", fixedL.Height).
			Msg("level start")

		problem := Problem{
			Level:        level,
			ShrinkFactor: factor,
			Fixed:        fixedL,
			Moving:       movingL,
			Settings:     settings,
		}
		observed := 0
		observe := func(it Iteration) error {
			if math.IsNaN(it.Metric) || math.IsInf(it.Metric, 0) {
				return fmt.Errorf("%w: metric is %v at iteration %d", ErrSingularMetric, it.Metric, it.Index)
			}
			observed++
			st.metric = it.Metric
			st.history.add(level, it.Metric)
			if st.progress != nil {
				st.progress(st.history.snapshot())
			}
			return ctx.Err()
		}

		res, err := r.optimizer.Optimize(ctx, problem, current.AtLevel(factor), observe)
		if err != nil {
			return fail(err)
		}
		res.Iterations = observed
		res.Transform = res.Transform.FromLevel(factor)
		levels = append(levels, res)
		current = res.Transform
		if observed > 0 {
			st.metric = res.Metric
		}

		r.logger.Debug().
			Int("level", level).
			Int("iterations", observed).
			Float64("metric", res.Metric).
			Stringer("stop", res.Reason).
			Stringer("transform", current).
			Msg("level done")
	}

	resampled, err := r.pyramid.Resample(moving, fixed, current)
	if err != nil {
		return fail(err)
	}
	checker, err := imaging.Checkerboard(fixed, resampled, [2]int{pattern[0], pattern[1]})
	if err != nil {
		return fail(err)
	}

	final := StateIterationLimitReached
	if levels[len(levels)-1].Reason.Converged() {
		final = StateConverged
	}
	r.state = final

	result := &Result{
		Transform:    current,
		State:        final,
		Iterations:   st.history.Len(),
		Metric:       st.metric,
		Levels:       levels,
		Checkerboard: checker,
	}
	r.logger.Info().
		Stringer("state", final).
		Int("iterations", result.Iterations).
		Float64("metric", result.Metric).
		Stringer("transform", current).
		Msg("registration finished")
	return result, nil
}

// planes validates the inputs and reduces them to single-channel images.
func (r *Registrar) planes(shrink []int) (imaging.Image, imaging.Image, error) {
	if r.fixed == nil || r.moving == nil {
		return imaging.Image{}, imaging.Image{}, ErrMissingImage
	}

	reduce := func(name string, img imaging.Image) (imaging.Image, error) {
		if err := img.Validate(); err != nil {
			return imaging.Image{}, fmt.Errorf("%w: %s image: %v", ErrDimensionMismatch, name, err)
		}
		plane, err := img.SingleChannel(r.channel)
		if err != nil {
			return imaging.Image{}, fmt.Errorf("%w: %s image: %v", ErrDimensionMismatch, name, err)
		}
		for _, f := range shrink {
			if plane.Width/f < 1 || plane.Height/f < 1 {
				return imaging.Image{}, fmt.Errorf("%w: %s image %dx%d is smaller than shrink factor %d",
					ErrDimensionMismatch, name, plane.Width, plane.Height, f)
			}
		}
		return plane, nil
	}

	fixed, err := reduce("fixed", *r.fixed)
	if err != nil {
		return imaging.Image{}, imaging.Image{}, err
	}
	moving, err := reduce("moving", *r.moving)
	if err != nil {
		return imaging.Image{}, imaging.Image{}, err
	}
	return fixed, moving, nil
}
