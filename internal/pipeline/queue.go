// Package pipeline implements the capture-to-disk pipeline: a bounded
// buffer queue between the OS delivery callback and the writer, the
// capture session controller, the streaming container writer, and the
// coordinator that turns cancellation into an orderly stop → drain →
// finalize sequence.
package pipeline

import (
	"sync"

	"github.com/appgrab/appgrab/pkg/capture"
)

// DefaultQueueCapacity holds roughly 5 seconds of audio at the usual 20 ms
// delivery cadence — ample headroom for transient writer stalls.
const DefaultQueueCapacity = 256

// Queue is a bounded FIFO of [capture.Buffer] connecting the capture
// delivery callback (producer) to the writer goroutine (consumer).
//
// Overflow policy: when full, Enqueue evicts the oldest unconsumed buffer
// and counts the loss rather than blocking — stalling the delivery
// callback risks stalling the OS capture session itself, while a dropped
// buffer costs one inaudible gap. Dequeue order always equals enqueue
// order for the buffers that survive.
//
// All methods are safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	buf   []capture.Buffer
	head  int
	count int

	closed        bool
	dropped       uint64
	droppedFrames uint64
}

// NewQueue creates a queue holding at most capacity buffers. A capacity
// below 1 falls back to [DefaultQueueCapacity].
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	q := &Queue{buf: make([]capture.Buffer, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends b to the queue. It never blocks beyond the internal lock:
// when the queue is full the oldest buffer is evicted first. Returns false
// when the queue has been closed and b was discarded.
func (q *Queue) Enqueue(b capture.Buffer) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if q.count == len(q.buf) {
		evicted := q.buf[q.head]
		q.buf[q.head] = capture.Buffer{}
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped++
		q.droppedFrames += uint64(evicted.Frames())
	}

	q.buf[(q.head+q.count)%len(q.buf)] = b
	q.count++
	q.notEmpty.Signal()
	return true
}

// Dequeue removes and returns the oldest buffer, blocking until one is
// available. The second result is false when the queue is closed and fully
// drained — the end-of-stream condition.
func (q *Queue) Dequeue() (capture.Buffer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		return capture.Buffer{}, false
	}

	b := q.buf[q.head]
	q.buf[q.head] = capture.Buffer{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return b, true
}

// Close marks the queue closed: subsequent Enqueue calls are rejected and
// blocked Dequeue callers are woken to drain the remainder and observe
// end-of-stream. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
}

// Len returns the number of buffers currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Dropped returns the number of buffers evicted by the overflow policy.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// DroppedFrames returns the number of sample frames lost to eviction.
func (q *Queue) DroppedFrames() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.droppedFrames
}
