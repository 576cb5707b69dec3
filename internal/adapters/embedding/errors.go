package embedding

import "errors"

// Sentinel errors returned by providers. The batch embedder never surfaces
// them; it turns a failed call into empty slots.
var (
	ErrProviderStatus    = errors.New("embedding provider returned non-success status")
	ErrMalformedResponse = errors.New("malformed embedding response")
	ErrMissingAPIKey     = errors.New("embedding api key not configured")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	// ErrTransient marks failures worth retrying: rate limits, server
	// errors and transport failures.
	ErrTransient = errors.New("transient embedding failure")
)
