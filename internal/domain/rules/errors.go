package rules

import "errors"

// Sentinel kinds for rule scoring errors.
var (
	ErrNoRules = errors.New("no categories to score against")
)
