package upstream

import "errors"

// Sentinel kinds for dispatch errors.
var (
	// ErrBuildRequest means the outbound request could not be constructed.
	ErrBuildRequest = errors.New("build upstream request")
	// ErrTransport means no HTTP response was received.
	ErrTransport = errors.New("upstream unreachable")
)
