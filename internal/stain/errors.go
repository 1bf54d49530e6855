package stain

import "errors"

var (
	// ErrChannelCount is returned for images that are not 3-channel RGB.
	ErrChannelCount = errors.New("stain: image must have 3 channels")

	// ErrEmptyMask is returned when no pixel exceeds the optical density
	// threshold.
	ErrEmptyMask = errors.New("stain: no pixel above optical density threshold")

	// ErrDegenerateBasis is returned when the optical density samples do not
	// span two independent stain directions.
	ErrDegenerateBasis = errors.New("stain: degenerate stain basis")

	// ErrIntensity is returned for pixel values at or below -1, whose
	// optical density is undefined.
	ErrIntensity = errors.New("stain: pixel intensity out of range")
)
