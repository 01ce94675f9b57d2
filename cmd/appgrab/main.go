// Command appgrab records a browser's audio output to a WAV file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/appgrab/appgrab/internal/config"
	"github.com/appgrab/appgrab/internal/health"
	"github.com/appgrab/appgrab/internal/observe"
	"github.com/appgrab/appgrab/internal/pipeline"
	"github.com/appgrab/appgrab/pkg/capture"
	"github.com/appgrab/appgrab/pkg/capture/portaudio"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional; real environment variables win over file entries.
	_ = godotenv.Load()

	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	browser := flag.String("browser", "", "browser to capture (e.g. safari, chrome)")
	output := flag.String("o", "", "output WAV file path")
	flag.StringVar(output, "output", "", "output WAV file path (alias of -o)")
	sampleRate := flag.Int("sample-rate", 0, "sample rate in Hz (44100, 48000, or 96000)")
	channels := flag.Int("channels", 0, "channel count (1 or 2)")
	listBrowsers := flag.Bool("list-browsers", false, "print the known browser names and exit")
	flag.Parse()

	resolver := capture.TableResolver{}

	if *listBrowsers {
		for _, name := range resolver.Known() {
			fmt.Println(name)
		}
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "appgrab: %v\n", err)
		return 1
	}

	// Flags win over both file and environment values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "browser":
			cfg.Capture.Browser = *browser
		case "o", "output":
			cfg.Output.Path = *output
		case "sample-rate":
			cfg.Capture.SampleRate = *sampleRate
		case "channels":
			cfg.Capture.Channels = *channels
		}
	})
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "appgrab: %v\n", err)
		return 1
	}
	if cfg.Capture.Browser == "" {
		fmt.Fprintln(os.Stderr, "appgrab: no browser selected — pass -browser or set capture.browser (see -list-browsers)")
		return 2
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName:    "appgrab",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise observability", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(shutdownCtx); err != nil {
			slog.Warn("observability shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Resolve the capture target ────────────────────────────────────────────
	targetID, err := resolver.Resolve(cfg.Capture.Browser)
	if err != nil {
		fmt.Fprintf(os.Stderr, "appgrab: %v\n", err)
		return 2
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Pipeline ──────────────────────────────────────────────────────────────
	backend := portaudio.New()
	p := pipeline.New(pipeline.Config{
		TargetID:   targetID,
		OutputPath: cfg.Output.Path,
		Format: capture.Format{
			SampleRate: cfg.Capture.SampleRate,
			Channels:   cfg.Capture.Channels,
		},
		QueueCapacity:    cfg.Pipeline.QueueCapacity,
		ProgressInterval: cfg.Pipeline.ProgressInterval,
	}, backend, portaudio.Authorizer(), metrics)

	// ── Status server (optional) ──────────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		controller := p.Controller()
		handler := health.New(health.ReadyFunc("capture",
			func() bool { return controller.State() == pipeline.StateStreaming },
			func() string { return controller.State().String() },
		))
		go func() {
			if err := health.Serve(ctx, cfg.Server.ListenAddr, handler, metrics); err != nil {
				slog.Error("status server error", "err", err)
			}
		}()
	}

	slog.Info("appgrab starting",
		"browser", cfg.Capture.Browser,
		"target_id", targetID,
		"output", cfg.Output.Path,
		"sample_rate", cfg.Capture.SampleRate,
		"channels", cfg.Capture.Channels,
	)
	slog.Info("recording — press Ctrl+C to stop")

	stats, err := p.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		if stats.Frames == 0 {
			return 1
		}
		// Partial audio survived the failure; report it below but still
		// signal the error to the caller.
		printSummary(cfg.Output.Path, stats)
		return 1
	}

	printSummary(cfg.Output.Path, stats)
	return 0
}

// loadConfig loads the YAML file at path, or builds the default configuration
// overlaid with APPGRAB_* environment variables when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printSummary(path string, stats pipeline.Stats) {
	fmt.Printf("saved %s: %.1fs, %d frames, %d bytes",
		path,
		stats.Duration.Seconds(),
		stats.Frames,
		stats.Bytes,
	)
	if stats.Dropped > 0 {
		fmt.Printf(" (%d buffers dropped)", stats.Dropped)
	}
	fmt.Println()
}
