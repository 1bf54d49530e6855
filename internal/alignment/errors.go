package alignment

import "errors"

var (
	// ErrUnderdetermined is returned when fewer than three index-aligned
	// correspondences are supplied.
	ErrUnderdetermined = errors.New("alignment: at least 3 point correspondences required")

	// ErrSingularSystem is returned when the least-squares system has no
	// unique solution, e.g. for collinear points.
	ErrSingularSystem = errors.New("alignment: singular least-squares system")
)
