package param

import "errors"

// Sentinel errors of the parameter layer. Every error returned by this package
// wraps exactly one of them; callers match with errors.Is.
var (
	// ErrKind is returned when a value does not have the shape declared by the
	// parameter kind (scalar vs list, integer vs float, non-numeric).
	ErrKind = errors.New("param: value does not match parameter kind")

	// ErrRange is returned when a scalar, or any element of a list, lies
	// outside the inclusive parameter range.
	ErrRange = errors.New("param: value out of range")

	// ErrUnknownParameter is returned when a name is not part of an
	// algorithm's schema.
	ErrUnknownParameter = errors.New("param: unknown parameter")
)
