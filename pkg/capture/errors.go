package capture

import "errors"

// Sentinel errors for the capture collaborators. Callers classify failures
// with errors.Is; adapters wrap these with backend-specific detail.
var (
	// ErrPermissionDenied indicates the process lacks the OS permission
	// required to capture another application's audio.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrTargetNotFound indicates no capturable source matches the
	// requested application name or target identifier.
	ErrTargetNotFound = errors.New("capture target not found")

	// ErrUnavailable indicates the OS capture session could not start or
	// was interrupted mid-stream. The underlying condition does not
	// self-heal within a session's lifetime, so it is never retried.
	ErrUnavailable = errors.New("capture session unavailable")
)
