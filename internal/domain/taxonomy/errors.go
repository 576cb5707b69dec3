package taxonomy

import "errors"

// Sentinel errors for taxonomy loading.
var (
	ErrLoadCategories    = errors.New("load categories")
	ErrNoCategories      = errors.New("taxonomy has no categories")
	ErrDimensionMismatch = errors.New("category vectors have inconsistent dimensions")
	ErrInvalidKind       = errors.New("invalid taxonomy kind")
)
