package optimize

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"histokit/internal/registration"
	"histokit/pkg/geometry"
)

// DefaultDerivativeStep is the central-difference step, in pixels of
// induced image shift.
const DefaultDerivativeStep = 0.05

// Descent is a regular-step gradient descent over the four similarity
// parameters. Scale and angle act about the fixed image's center, and the
// search runs in a scaled space where one unit of every coordinate moves the
// fixed-image corners by about one pixel, so a single step length fits scale,
// angle and translation alike. Results are reported as origin-based
// similarities.
type Descent struct {
	logger zerolog.Logger
	step   float64
}

// Option configures a Descent.
type Option func(*Descent)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Descent) {
		d.logger = l.With().Str("component", "optimize").Logger()
	}
}

// WithDerivativeStep overrides DefaultDerivativeStep.
func WithDerivativeStep(h float64) Option {
	return func(d *Descent) {
		d.step = h
	}
}

// NewDescent returns a descent optimizer scoring with MutualInformation.
func NewDescent(opts ...Option) *Descent {
	d := &Descent{logger: zerolog.Nop(), step: DefaultDerivativeStep}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Optimize implements registration.Optimizer.
//
// Each iteration evaluates the metric and its gradient, reports them, then
// stops when the gradient magnitude is below the tolerance or the step length
// has been relaxed below the minimum; otherwise it moves one step length
// against the gradient. The step length is multiplied by the relaxation
// factor whenever the gradient turns by more than 90 degrees.
func (d *Descent) Optimize(ctx context.Context, p registration.Problem, initial geometry.Similarity, observe func(registration.Iteration) error) (registration.LevelResult, error) {
	s := p.Settings
	rng := rand.New(rand.NewSource(s.Seed + int64(p.Level)))
	metric, err := NewMutualInformation(p.Fixed, p.Moving, s.HistogramBins, s.SamplingRate, rng)
	if err != nil {
		return registration.LevelResult{}, err
	}

	fr := newFrame(initial, p.Fixed.Width, p.Fixed.Height)
	var evalErr error
	value := func(u []float64) float64 {
		v, err := metric.Value(fr.fromScaled(u))
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.NaN()
		}
		return v
	}

	d.logger.Debug().
		Int("level", p.Level).
		Int("samples", metric.Samples()).
		Floats64("scales", fr.w).
		Msg("descent start")

	u := fr.toScaled(initial)
	grad := make([]float64, len(u))
	var prev []float64
	stepLen := s.LearningRate
	fdSettings := &fd.Settings{Formula: fd.Central, Step: d.step}

	result := registration.LevelResult{Transform: initial, Metric: math.NaN(), Reason: registration.StopMaxIterations}
	for iter := 0; iter < s.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		v := value(u)
		fd.Gradient(grad, value, u, fdSettings)
		if evalErr != nil {
			return result, evalErr
		}

		current := fr.fromScaled(u)
		result.Transform = current
		result.Metric = v
		result.Iterations = iter + 1
		if err := observe(registration.Iteration{Index: iter, Metric: v, Transform: current}); err != nil {
			return result, err
		}

		mag := floats.Norm(grad, 2)
		if math.IsNaN(mag) {
			return result, fmt.Errorf("%w: gradient is NaN", registration.ErrSingularMetric)
		}
		if mag < s.GradientTolerance {
			result.Reason = registration.StopGradientTolerance
			return result, nil
		}
		if prev != nil && floats.Dot(grad, prev) < 0 {
			stepLen *= s.RelaxationFactor
		}
		if stepLen < s.MinStep {
			result.Reason = registration.StopStepTooSmall
			return result, nil
		}

		floats.AddScaled(u, -stepLen/mag, grad)
		prev = append(prev[:0], grad...)
	}

	result.Transform = fr.fromScaled(u)
	return result, nil
}

// frame is the optimizer's coordinate system: similarity parameters with
// rotation and scale about a fixed center, each multiplied by a weight.
//
// With p' = s*R*(p - c) + c + t the origin-based translation is
// t + c - s*R*c.
type frame struct {
	center geometry.Point2D
	w      []float64
}

// newFrame centers the parameters on a width x height fixed grid and weighs
// each by the largest shift in pixels that a unit change of it causes at the
// grid corners, evaluated at t.
func newFrame(t geometry.Similarity, width, height int) frame {
	const delta = 1e-3
	fr := frame{
		center: geometry.Point2D{X: float64(width-1) / 2, Y: float64(height-1) / 2},
		w:      []float64{1, 1, 1, 1},
	}
	corners := []geometry.Point2D{
		{X: 0, Y: 0},
		{X: float64(width - 1), Y: 0},
		{X: 0, Y: float64(height - 1)},
		{X: float64(width - 1), Y: float64(height - 1)},
	}
	base := fr.params(t)
	w := make([]float64, len(base))
	for i := range base {
		shifted := append([]float64(nil), base...)
		shifted[i] += delta
		moved := fr.similarity(shifted)
		var largest float64
		for _, c := range corners {
			a := t.Apply(c)
			b := moved.Apply(c)
			largest = math.Max(largest, math.Hypot(a.X-b.X, a.Y-b.Y)/delta)
		}
		if largest < 1e-6 {
			largest = 1
		}
		w[i] = largest
	}
	fr.w = w
	return fr
}

// params returns the centered parameters {scale, angle, tx, ty} of t.
func (fr frame) params(t geometry.Similarity) []float64 {
	rc := linear(t).Apply(fr.center)
	return []float64{t.Scale, t.Angle, t.TX - fr.center.X + rc.X, t.TY - fr.center.Y + rc.Y}
}

// similarity is the inverse of params.
func (fr frame) similarity(p []float64) geometry.Similarity {
	t := geometry.Similarity{Scale: p[0], Angle: p[1]}
	rc := linear(t).Apply(fr.center)
	t.TX = p[2] + fr.center.X - rc.X
	t.TY = p[3] + fr.center.Y - rc.Y
	return t
}

func (fr frame) toScaled(t geometry.Similarity) []float64 {
	u := fr.params(t)
	floats.Mul(u, fr.w)
	return u
}

func (fr frame) fromScaled(u []float64) geometry.Similarity {
	p := append([]float64(nil), u...)
	floats.Div(p, fr.w)
	return fr.similarity(p)
}

// linear drops the translation of t.
func linear(t geometry.Similarity) geometry.AffineTransform {
	a := t.Affine()
	a.TX, a.TY = 0, 0
	return a
}
