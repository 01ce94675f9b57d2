package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/appgrab/appgrab/internal/observe"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 3 * time.Second

// Serve runs the status server on addr until ctx is cancelled, then shuts
// down gracefully. The server exposes the probe endpoints of h plus
// /metrics in Prometheus exposition format, all wrapped in the observability
// middleware.
//
// Serve blocks; run it on its own goroutine alongside the recording
// pipeline. A nil return means a clean shutdown.
func Serve(ctx context.Context, addr string, h *Handler, m *observe.Metrics) error {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Join(err, srv.Close())
		}
		<-errCh // always http.ErrServerClosed after Shutdown
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
