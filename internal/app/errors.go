package service

import "errors"

// Sentinel errors for classification runs.
var (
	ErrSelectCandidates   = errors.New("select candidates")
	ErrNoEmbedder         = errors.New("no embedder configured")
	ErrInvalidCategoryDef = errors.New("invalid category definition")
	ErrLoadCategoryFile   = errors.New("load category file")
	ErrLoadItem           = errors.New("load item")
	ErrPersistLabel       = errors.New("persist label")
)
