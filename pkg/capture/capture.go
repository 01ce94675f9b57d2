// Package capture defines the interfaces and types for OS-level
// application-audio capture within appgrab.
//
// The three collaborator abstractions are:
//
//   - [Backend] — opens a capture [Session] restricted to one target
//     application and delivers PCM buffers through callbacks.
//   - [Resolver] — maps a human-readable browser name to a stable target
//     identifier usable for capture filtering.
//   - [Authorizer] — reports whether the process holds the OS permission
//     required to capture another application's audio.
//
// Implementations are provided by backend-specific adapter packages
// (e.g., capture/portaudio) and by capture/mock for tests. The interfaces
// are intentionally narrow to keep the pipeline decoupled from the
// identity of the OS capture API.
//
// This package lives under pkg/ because external code (third-party capture
// adapters) is expected to implement [Backend].
package capture

import "context"

// Format fixes the PCM shape of a capture session. Both values are chosen
// at session start and never change mid-session.
type Format struct {
	// SampleRate in Hz (e.g., 48000).
	SampleRate int

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int
}

// BufferFunc receives one raw buffer of interleaved 16-bit little-endian
// PCM payload. It is invoked from the backend's delivery context — often an
// OS-internal thread — at buffer arrival time. Implementations must not
// block and must not perform I/O; slow work belongs downstream of a queue.
type BufferFunc func(pcm []byte)

// ErrorFunc receives asynchronous session errors (target process exited,
// stream interrupted). Invoked at most from the backend's delivery context;
// implementations must not block.
type ErrorFunc func(err error)

// Backend is the entry point for an OS capture API adapter.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Start constructs a content filter restricted to targetID, opens the
	// capture session, and registers the delivery callbacks. The supplied
	// ctx governs the lifetime of the start attempt only; once streaming,
	// the Session remains alive until [Session.Stop] is called.
	//
	// Fails with an error wrapping [ErrUnavailable] when the OS denies the
	// session (permission revoked mid-flight, target vanished, unsupported
	// format) and [ErrTargetNotFound] when no capturable source matches
	// targetID. Start errors are fatal to the session and are not retried.
	Start(ctx context.Context, targetID string, format Format, onBuffer BufferFunc, onError ErrorFunc) (Session, error)
}

// Session represents one active OS-level capture.
type Session interface {
	// Stop unregisters the delivery callbacks and tears down the OS
	// session. After Stop returns no further onBuffer or onError calls are
	// made. It is safe to call Stop more than once; subsequent calls are
	// no-ops and return nil.
	Stop() error
}

// Resolver maps a browser name to a capturable target identifier.
type Resolver interface {
	// Resolve returns the stable target identifier for name. Fails with an
	// error wrapping [ErrTargetNotFound] when the name is not a known
	// capturable application.
	Resolve(name string) (targetID string, err error)
}

// Authorizer reports whether audio capture is permitted.
type Authorizer interface {
	// Authorized reports whether the process may open capture sessions.
	// Implementations may prompt the user; they must respect ctx.
	Authorized(ctx context.Context) bool
}

// AuthorizerFunc adapts a plain function to the [Authorizer] interface.
type AuthorizerFunc func(ctx context.Context) bool

// Authorized implements [Authorizer].
func (f AuthorizerFunc) Authorized(ctx context.Context) bool { return f(ctx) }
