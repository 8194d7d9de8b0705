package audit

import "errors"

// Sentinel errors for journal operations.
var (
	ErrNotFound       = errors.New("audit entry not found")
	ErrDuplicate      = errors.New("audit entry already exists")
	ErrInvalidEntry   = errors.New("invalid audit entry")
	ErrUnknownBackend = errors.New("unknown audit backend")
	ErrStore          = errors.New("audit store failure")
)
