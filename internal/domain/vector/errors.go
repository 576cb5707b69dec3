package vector

import "errors"

// Sentinel kinds for vector errors.
var (
	ErrZeroMagnitude      = errors.New("zero magnitude vector")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrEmptyVector        = errors.New("empty vector")
	ErrMalformed          = errors.New("malformed vector encoding")
	ErrUnsupportedVersion = errors.New("unsupported vector encoding version")
	ErrNonFinite          = errors.New("vector contains NaN or Inf")
)
