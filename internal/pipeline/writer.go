package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/appgrab/appgrab/internal/observe"
	"github.com/appgrab/appgrab/pkg/capture"
	"github.com/appgrab/appgrab/pkg/wav"
)

// Stats summarises what a [Writer] has persisted so far. Safe to read from
// any goroutine while the writer runs.
type Stats struct {
	// Frames is the number of complete sample frames written.
	Frames int64

	// Bytes is the number of payload bytes written.
	Bytes int64

	// Dropped is the number of buffers lost to queue overflow.
	Dropped uint64

	// DroppedFrames is the number of sample frames lost to queue overflow.
	DroppedFrames uint64

	// Duration is the audio duration represented by the written frames.
	Duration time.Duration
}

// Writer consumes buffers from a [Queue] and streams them into a WAV
// container, finalizing the header exactly once on every exit path.
//
// The main loop and finalize run on a single goroutine ([Writer.Run]);
// [Writer.Stats] may be called concurrently.
type Writer struct {
	queue   *Queue
	metrics *observe.Metrics
	format  capture.Format

	enc    *wav.Writer
	closer io.Closer // nil when the destination is not file-backed
	path   string

	frames atomic.Int64
	bytes  atomic.Int64

	finalizeOnce sync.Once
	finalizeErr  error
}

// NewWriter writes a provisional container header to ws and returns a
// Writer draining q. Use [OpenWriter] for the file-backed path.
func NewWriter(ws io.WriteSeeker, format capture.Format, q *Queue, m *observe.Metrics) (*Writer, error) {
	enc, err := wav.NewWriter(ws, format.SampleRate, format.Channels)
	if err != nil {
		return nil, err
	}
	return &Writer{queue: q, metrics: m, format: format, enc: enc}, nil
}

// OpenWriter creates the file at path — creating missing parent
// directories — and writes the provisional header. If header creation fails
// the file is removed so no ambiguous partial file is left behind; the
// error is fatal and surfaced immediately.
func OpenWriter(path string, format capture.Format, q *Queue, m *observe.Metrics) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("pipeline: create output directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: create %q: %w", path, err)
	}

	w, err := NewWriter(f, format, q, m)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("pipeline: open %q: %w", path, err)
	}
	w.closer = f
	w.path = path
	return w, nil
}

// Run drains the queue until end-of-stream, appending each buffer's payload
// to the container, then finalizes. A mid-loop write failure is non-fatal
// to data already written: Run finalizes with the totals accumulated so far
// before propagating the error.
//
// Shutdown is driven by the queue closing, not by ctx — the writer must
// keep draining after cancellation so already-captured audio is preserved.
// ctx only attributes metrics and logs.
func (w *Writer) Run(ctx context.Context) error {
	for {
		b, ok := w.queue.Dequeue()
		if !ok {
			return w.finalize(ctx)
		}
		w.metrics.QueueDepth.Add(ctx, -1)

		start := time.Now()
		n, err := w.enc.Write(b.Data)
		w.bytes.Add(int64(n))
		w.frames.Add(int64(b.Frames()))
		w.metrics.WriteDuration.Record(ctx, time.Since(start).Seconds())
		w.metrics.BytesWritten.Add(ctx, int64(n))

		if err != nil {
			ferr := w.finalize(ctx)
			return errors.Join(fmt.Errorf("pipeline: append buffer %d: %w", b.Seq, err), ferr)
		}
	}
}

// Close finalizes the container if [Writer.Run] has not already done so.
// Safe to call on every exit path; only the first finalize takes effect.
func (w *Writer) Close() error {
	return w.finalize(context.Background())
}

// finalize patches the container header with the final totals and closes
// the file handle. Guarded by a sync.Once so it executes exactly once per
// output stream no matter which exit path reaches it first.
func (w *Writer) finalize(ctx context.Context) error {
	w.finalizeOnce.Do(func() {
		var errs []error
		if err := w.enc.Finalize(); err != nil {
			errs = append(errs, err)
		}
		if w.closer != nil {
			if err := w.closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("pipeline: close %q: %w", w.path, err))
			}
		}
		w.finalizeErr = errors.Join(errs...)

		stats := w.Stats()
		w.metrics.SessionDuration.Record(ctx, stats.Duration.Seconds())
		slog.Info("output finalized",
			"path", w.path,
			"frames", stats.Frames,
			"bytes", stats.Bytes,
			"duration", stats.Duration,
			"dropped_buffers", stats.Dropped,
		)
	})
	return w.finalizeErr
}

// Stats returns a snapshot of the writer's progress.
func (w *Writer) Stats() Stats {
	frames := w.frames.Load()
	return Stats{
		Frames:        frames,
		Bytes:         w.bytes.Load(),
		Dropped:       w.queue.Dropped(),
		DroppedFrames: w.queue.DroppedFrames(),
		Duration:      time.Duration(frames) * time.Second / time.Duration(w.format.SampleRate),
	}
}

// Path returns the output file path, or "" for non-file destinations.
func (w *Writer) Path() string { return w.path }
