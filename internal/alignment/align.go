package alignment

import (
	"fmt"

	"histokit/internal/imaging"
	"histokit/pkg/geometry"

	"github.com/rs/zerolog"
)

// Resampler warps a moving image into the pixel grid of a reference image.
// The transform maps moving coordinates onto reference coordinates.
type Resampler interface {
	Resample(moving, reference imaging.Image, t geometry.Similarity) (imaging.Image, error)
}

// Options configures keypoint initialization.
type Options struct {
	Channel        int            // Channel used from multi-channel images
	CheckerPattern [2]int         // Tiles along x and y of the preview checkerboard
	Logger         zerolog.Logger // Debug output
}

// DefaultOptions returns default initialization options.
func DefaultOptions() Options {
	return Options{
		Channel:        1,
		CheckerPattern: imaging.DefaultCheckerPattern,
		Logger:         zerolog.Nop(),
	}
}

// Initialization is the outcome of a keypoint-based initialization.
type Initialization struct {
	Fit          *Fit
	Resampled    imaging.Image // moving image in the fixed grid
	Checkerboard imaging.Image // fixed/resampled-moving comparison
}

// Transform returns the initial transform to hand to the registrar.
func (i *Initialization) Transform() geometry.Similarity {
	return i.Fit.Similarity
}

// Initialize estimates a similarity transform from keypoint correspondences,
// resamples the moving image into the fixed image grid and builds a
// checkerboard preview for a visual sanity check before registration.
func Initialize(moving, fixed imaging.Image, movingPts, fixedPts []geometry.Point2D, r Resampler, opts Options) (*Initialization, error) {
	if moving.Empty() || fixed.Empty() {
		return nil, fmt.Errorf("empty input image")
	}

	fit, err := FitSimilarity(movingPts, fixedPts)
	if err != nil {
		return nil, err
	}

	opts.Logger.Debug().
		Int("points", len(movingPts)).
		Stringer("transform", fit.Similarity).
		Bool("mirrored", fit.Mirrored).
		Float64("mean_error", fit.MeanError).
		Msg("keypoint fit")
	if fit.Mirrored {
		opts.Logger.Warn().Msg("keypoints describe a reflection; the moving image is not flipped")
	}

	fixedPlane, err := fixed.SingleChannel(opts.Channel)
	if err != nil {
		return nil, fmt.Errorf("fixed image: %w", err)
	}
	movingPlane, err := moving.SingleChannel(opts.Channel)
	if err != nil {
		return nil, fmt.Errorf("moving image: %w", err)
	}

	resampled, err := r.Resample(movingPlane, fixedPlane, fit.Similarity)
	if err != nil {
		return nil, fmt.Errorf("resample moving image: %w", err)
	}

	checker, err := imaging.Checkerboard(fixedPlane, resampled, opts.CheckerPattern)
	if err != nil {
		return nil, fmt.Errorf("checkerboard: %w", err)
	}

	return &Initialization{
		Fit:          fit,
		Resampled:    resampled,
		Checkerboard: checker,
	}, nil
}
