package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidLimit = errors.New("invalid page limit")
	ErrInvalidKind  = errors.New("invalid taxonomy kind")
	ErrClosed       = errors.New("store closed")
	ErrKindConflict = errors.New("category belongs to another taxonomy")
)
