package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/appgrab/appgrab/internal/observe"
	"github.com/appgrab/appgrab/pkg/capture"
)

// Config fixes a pipeline run's parameters. All fields except TargetID and
// OutputPath have working zero-value defaults.
type Config struct {
	// TargetID is the resolved capture target identifier.
	TargetID string

	// OutputPath is the destination WAV file.
	OutputPath string

	// Format is the PCM shape for the whole session.
	Format capture.Format

	// QueueCapacity bounds the buffer queue. Zero means
	// [DefaultQueueCapacity].
	QueueCapacity int

	// ProgressInterval is the cadence of progress log lines while
	// recording. Zero disables progress logging.
	ProgressInterval time.Duration
}

// Pipeline wires the capture session controller, buffer queue, and
// streaming writer together and coordinates their shutdown: stop intake →
// drain the queue → finalize the container → return, in that order, no
// matter whether the run ends by cancellation, by a mid-stream capture
// error, or by a writer I/O error.
type Pipeline struct {
	cfg        Config
	queue      *Queue
	controller *Controller
	metrics    *observe.Metrics
}

// New assembles a pipeline from its collaborators. Nothing starts until
// [Pipeline.Run].
func New(cfg Config, backend capture.Backend, auth capture.Authorizer, m *observe.Metrics) *Pipeline {
	q := NewQueue(cfg.QueueCapacity)
	return &Pipeline{
		cfg:        cfg,
		queue:      q,
		controller: NewController(backend, auth, q, cfg.Format, m),
		metrics:    m,
	}
}

// Controller exposes the session controller for readiness checks.
func (p *Pipeline) Controller() *Controller { return p.controller }

// Run executes one capture session until ctx is cancelled or the session
// fails, and returns the final writer statistics.
//
// The capture session starts before the output file is created, so fatal
// startup errors (permission denied, unknown target, capture unavailable)
// surface with no file on disk. Buffers delivered while the file opens sit
// in the queue. On any exit the output is a valid, correctly-headered
// container holding exactly the audio persisted up to that point.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	ctx, span := observe.StartSpan(ctx, "record")
	defer span.End()

	if err := p.controller.Start(ctx, p.cfg.TargetID); err != nil {
		return Stats{}, err
	}

	writer, err := OpenWriter(p.cfg.OutputPath, p.cfg.Format, p.queue, p.metrics)
	if err != nil {
		p.controller.Stop()
		return Stats{}, err
	}
	slog.Info("recording", "path", writer.Path(), "session_id", p.controller.ID())

	writerDone := make(chan struct{})
	var captureErr error

	g := new(errgroup.Group)
	g.Go(func() error {
		defer close(writerDone)
		return writer.Run(ctx)
	})
	g.Go(func() error {
		// Shutdown coordinator: the first of cancellation, session error,
		// or writer completion triggers the stop → drain → finalize chain.
		defer p.controller.Stop()
		select {
		case <-ctx.Done():
		case captureErr = <-p.controller.Err():
		case <-writerDone:
		}
		return nil
	})
	if p.cfg.ProgressInterval > 0 {
		g.Go(func() error {
			p.reportProgress(writer, writerDone)
			return nil
		})
	}

	runErr := g.Wait()
	return writer.Stats(), errors.Join(captureErr, runErr)
}

// reportProgress logs recording progress until the writer finishes.
func (p *Pipeline) reportProgress(writer *Writer, done <-chan struct{}) {
	ticker := time.NewTicker(p.cfg.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			stats := writer.Stats()
			slog.Info("recording progress",
				"duration", stats.Duration.Round(100*time.Millisecond),
				"frames", stats.Frames,
				"queued", p.queue.Len(),
				"dropped_buffers", stats.Dropped,
			)
		}
	}
}
