package registration

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistration matches every *RegistrationError.
	ErrRegistration = errors.New("registration: run failed")

	// ErrConfigMismatch is returned when the shrink and smoothing schedules
	// have different lengths.
	ErrConfigMismatch = errors.New("registration: shrink_factor and smooth_sigma lengths differ")

	// ErrMissingImage is returned when a run starts without a fixed or
	// moving image.
	ErrMissingImage = errors.New("registration: fixed and moving images are required")

	// ErrDimensionMismatch is returned for images that cannot be registered:
	// empty, inconsistent buffers, or too small for the shrink schedule.
	ErrDimensionMismatch = errors.New("registration: image dimension mismatch")

	// ErrSingularMetric is returned when the similarity metric cannot be
	// computed (constant image, no overlap, NaN).
	ErrSingularMetric = errors.New("registration: singular metric")

	// ErrAlreadyRunning is returned when Register is re-entered on the same
	// registrar, e.g. from inside the progress callback.
	ErrAlreadyRunning = errors.New("registration: run already in progress")
)

// RegistrationError describes a failed run. Level is the resolution level
// that was running (-1 before the first level) and Metric the last metric
// value seen (NaN if none).
type RegistrationError struct {
	Level  int
	Metric float64
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration: failed at level %d (last metric %g): %v", e.Level, e.Metric, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Is makes every RegistrationError match ErrRegistration.
func (e *RegistrationError) Is(target error) bool {
	return target == ErrRegistration
}
