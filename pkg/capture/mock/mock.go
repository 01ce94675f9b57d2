// Package mock provides in-memory mock implementations of the
// [capture.Backend], [capture.Session], [capture.Resolver], and
// [capture.Authorizer] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields the test can set to control return values. The Backend
// additionally captures the delivery callbacks so a test can drive buffer
// and error delivery by hand:
//
//	backend := &mock.Backend{}
//	sess, _ := backend.Start(ctx, "com.apple.Safari", format, onBuffer, onError)
//	backend.Deliver(make([]byte, 3840)) // invokes onBuffer
//	backend.Fail(io.ErrUnexpectedEOF)   // invokes onError
package mock

import (
	"context"
	"sync"

	"github.com/appgrab/appgrab/pkg/capture"
)

// ─── Backend ─────────────────────────────────────────────────────────────────

// StartCall records the arguments of a single [Backend.Start] invocation.
type StartCall struct {
	// TargetID is the targetID argument passed to Start.
	TargetID string

	// Format is the format argument passed to Start.
	Format capture.Format
}

// Backend is a mock implementation of [capture.Backend].
// Set the exported fields before use; inspect the Call* fields after.
type Backend struct {
	mu sync.Mutex

	// StartErr is returned by [Backend.Start]. When non-nil, no session is
	// created and the callbacks are discarded.
	StartErr error

	// SessionResult is returned by [Backend.Start]. When nil, a fresh
	// [Session] is created and returned.
	SessionResult capture.Session

	// StartCalls holds the arguments of each Start invocation, in order.
	StartCalls []StartCall

	onBuffer capture.BufferFunc
	onError  capture.ErrorFunc
	stopped  bool
}

// Compile-time interface assertion.
var _ capture.Backend = (*Backend)(nil)

// Start implements [capture.Backend]. It records the call, retains the
// callbacks for [Backend.Deliver] and [Backend.Fail], and returns
// SessionResult (or a fresh [Session] whose Stop detaches the callbacks).
func (b *Backend) Start(_ context.Context, targetID string, format capture.Format, onBuffer capture.BufferFunc, onError capture.ErrorFunc) (capture.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.StartCalls = append(b.StartCalls, StartCall{TargetID: targetID, Format: format})
	if b.StartErr != nil {
		return nil, b.StartErr
	}

	b.onBuffer = onBuffer
	b.onError = onError
	b.stopped = false

	if b.SessionResult != nil {
		return b.SessionResult, nil
	}
	return &Session{backend: b}, nil
}

// Deliver invokes the registered onBuffer callback with pcm, simulating one
// OS buffer delivery. Deliveries after Stop are silently discarded, matching
// the Backend contract that no callbacks fire once Stop has returned.
func (b *Backend) Deliver(pcm []byte) {
	b.mu.Lock()
	cb, stopped := b.onBuffer, b.stopped
	b.mu.Unlock()
	if cb != nil && !stopped {
		cb(pcm)
	}
}

// Fail invokes the registered onError callback, simulating a mid-stream
// session error. Discarded after Stop.
func (b *Backend) Fail(err error) {
	b.mu.Lock()
	cb, stopped := b.onError, b.stopped
	b.mu.Unlock()
	if cb != nil && !stopped {
		cb(err)
	}
}

func (b *Backend) stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

// ─── Session ─────────────────────────────────────────────────────────────────

// Session is a mock implementation of [capture.Session]. Sessions returned
// by [Backend.Start] detach the backend's callbacks on Stop.
type Session struct {
	mu sync.Mutex

	// StopErr is returned by the first call to [Session.Stop].
	StopErr error

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	backend *Backend
}

// Compile-time interface assertion.
var _ capture.Session = (*Session)(nil)

// Stop implements [capture.Session]. The first call detaches the backend
// callbacks and returns StopErr; subsequent calls are no-ops returning nil.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCountStop++
	if s.CallCountStop > 1 {
		return nil
	}
	if s.backend != nil {
		s.backend.stop()
	}
	return s.StopErr
}

// ─── Resolver ────────────────────────────────────────────────────────────────

// Resolver is a mock implementation of [capture.Resolver].
type Resolver struct {
	mu sync.Mutex

	// TargetID is returned by [Resolver.Resolve] when ResolveErr is nil.
	TargetID string

	// ResolveErr is returned by [Resolver.Resolve].
	ResolveErr error

	// ResolvedNames holds the names passed to Resolve, in order.
	ResolvedNames []string
}

// Compile-time interface assertion.
var _ capture.Resolver = (*Resolver)(nil)

// Resolve implements [capture.Resolver].
func (r *Resolver) Resolve(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResolvedNames = append(r.ResolvedNames, name)
	if r.ResolveErr != nil {
		return "", r.ResolveErr
	}
	return r.TargetID, nil
}

// ─── Authorizer ──────────────────────────────────────────────────────────────

// Authorizer is a mock implementation of [capture.Authorizer].
type Authorizer struct {
	mu sync.Mutex

	// Granted is returned by [Authorizer.Authorized].
	Granted bool

	// CallCountAuthorized records how many times Authorized was called.
	CallCountAuthorized int
}

// Compile-time interface assertion.
var _ capture.Authorizer = (*Authorizer)(nil)

// Authorized implements [capture.Authorizer].
func (a *Authorizer) Authorized(context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.CallCountAuthorized++
	return a.Granted
}
