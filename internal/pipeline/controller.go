package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/appgrab/appgrab/internal/observe"
	"github.com/appgrab/appgrab/pkg/capture"
)

// State is the lifecycle state of a [Controller].
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateStreaming
	StateStopping
	StateStopped
	StateError
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Controller owns the lifecycle of one OS capture session and translates
// its asynchronous buffer delivery into queue enqueues. The delivery
// callback tags each buffer with a strictly increasing sequence number and
// performs no I/O — all slow work is deferred to the [Writer] behind the
// queue.
//
// Controller is safe for concurrent use; Start runs once, Stop is
// idempotent, and the delivery callbacks may fire from OS-internal threads.
type Controller struct {
	backend capture.Backend
	auth    capture.Authorizer
	queue   *Queue
	metrics *observe.Metrics
	format  capture.Format

	// id labels this session in logs and metric attributes.
	id string

	state  atomic.Int32
	seq    atomic.Uint64
	intake atomic.Bool

	// seenDropped and seenDroppedFrames track the queue's loss counters so
	// the delivery callback can emit drop deltas without extra queue
	// bookkeeping.
	seenDropped       atomic.Uint64
	seenDroppedFrames atomic.Uint64

	mu      sync.Mutex
	session capture.Session

	stopOnce sync.Once
	stopErr  error

	// errCh surfaces the first mid-stream session error to the coordinator.
	errCh chan error
}

// NewController creates a controller feeding q with buffers in format.
func NewController(backend capture.Backend, auth capture.Authorizer, q *Queue, format capture.Format, m *observe.Metrics) *Controller {
	c := &Controller{
		backend: backend,
		auth:    auth,
		queue:   q,
		metrics: m,
		format:  format,
		id:      uuid.NewString(),
		errCh:   make(chan error, 1),
	}
	c.state.Store(int32(StateIdle))
	return c
}

// ID returns the session identifier used in logs and metrics.
func (c *Controller) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Err exposes the first asynchronous session error. The channel never
// closes; the coordinator selects on it alongside cancellation.
func (c *Controller) Err() <-chan error { return c.errCh }

// Start checks capture permission, opens the OS session restricted to
// targetID, and begins streaming buffers into the queue. Startup failures
// are fatal and not retried: the caller sees them before any output file
// exists.
func (c *Controller) Start(ctx context.Context, targetID string) error {
	if !c.auth.Authorized(ctx) {
		return fmt.Errorf("pipeline: %w", capture.ErrPermissionDenied)
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateStarting)) {
		return fmt.Errorf("pipeline: controller already started (state %s)", c.State())
	}

	sess, err := c.backend.Start(ctx, targetID, c.format, c.onBuffer, c.onError)
	if err != nil {
		c.state.Store(int32(StateError))
		return fmt.Errorf("pipeline: start capture of %q: %w", targetID, err)
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	c.intake.Store(true)
	c.state.Store(int32(StateStreaming))
	slog.Info("capture session streaming",
		"session_id", c.id,
		"target_id", targetID,
		"sample_rate", c.format.SampleRate,
		"channels", c.format.Channels,
	)
	return nil
}

// onBuffer is the delivery callback: it wraps the raw payload, tags it with
// the next sequence number, and enqueues. No blocking work happens here —
// the queue's overflow policy guarantees a bounded hold on its lock.
func (c *Controller) onBuffer(pcm []byte) {
	if !c.intake.Load() {
		return
	}

	b := capture.Buffer{
		Data:       pcm,
		SampleRate: c.format.SampleRate,
		Channels:   c.format.Channels,
		Seq:        c.seq.Add(1),
	}
	if !c.queue.Enqueue(b) {
		return
	}

	ctx := context.Background()
	c.metrics.QueueDepth.Add(ctx, 1)
	c.metrics.FramesCaptured.Add(ctx, int64(b.Frames()),
		metric.WithAttributes(observe.Attr("session_id", c.id)))

	// An eviction removes a queued buffer without a dequeue, so the depth
	// gauge must come down by the same amount or it drifts under sustained
	// overflow.
	if total := c.queue.Dropped(); total > 0 {
		if delta := total - c.seenDropped.Swap(total); delta > 0 {
			c.metrics.QueueDepth.Add(ctx, -int64(delta))
		}
	}
	if total := c.queue.DroppedFrames(); total > 0 {
		if delta := total - c.seenDroppedFrames.Swap(total); delta > 0 {
			c.metrics.FramesDropped.Add(ctx, int64(delta))
		}
	}
}

// onError is the asynchronous session-error callback. It records the error,
// surfaces it to the coordinator, and drives the same drain-and-finalize
// path as a user stop so partial audio is never silently discarded. The
// teardown itself runs on a fresh goroutine — the callback must not block.
func (c *Controller) onError(err error) {
	c.metrics.CaptureErrors.Add(context.Background(), 1)
	c.state.Store(int32(StateError))

	select {
	case c.errCh <- fmt.Errorf("pipeline: capture session %s: %w", c.id, err):
	default:
	}
	go c.Stop()
}

// Stop halts intake, tears down the OS session, and closes the queue so
// the writer drains to end-of-stream. Idempotent: the second and later
// calls are no-ops returning nil.
func (c *Controller) Stop() error {
	c.stopOnce.Do(func() {
		if c.State() != StateError {
			c.state.Store(int32(StateStopping))
		}
		c.intake.Store(false)

		c.mu.Lock()
		sess := c.session
		c.mu.Unlock()

		if sess != nil {
			if err := sess.Stop(); err != nil {
				c.stopErr = fmt.Errorf("pipeline: stop capture session %s: %w", c.id, err)
			}
		}
		c.queue.Close()

		if c.State() != StateError {
			c.state.Store(int32(StateStopped))
		}
		slog.Info("capture session stopped",
			"session_id", c.id,
			"state", c.State().String(),
			"buffers", c.seq.Load(),
			"dropped_buffers", c.queue.Dropped(),
		)
	})
	return c.stopErr
}
