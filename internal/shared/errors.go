package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates a failed access check. Terminal for the
	// request; never silently downgraded to a default view.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrVersionConflict indicates a concurrent mutation was detected.
	// Callers re-fetch and retry; nothing in this service retries itself.
	ErrVersionConflict = errors.New("version conflict")
)
