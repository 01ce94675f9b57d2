package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config populated with working defaults. Browser stays
// empty: the capture target must come from the file, the environment, or a
// flag.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Capture: CaptureConfig{
			SampleRate: DefaultSampleRate,
			Channels:   DefaultChannels,
		},
		Output: OutputConfig{
			Path: DefaultOutputPath,
		},
		Pipeline: PipelineConfig{
			ProgressInterval: DefaultProgressInterval,
		},
	}
}

// envVars maps APPGRAB_* environment variables onto config fields.
// Values are parsed with the same rules as the YAML schema.
var envVars = map[string]func(cfg *Config, v string) error{
	"APPGRAB_BROWSER": func(cfg *Config, v string) error {
		cfg.Capture.Browser = v
		return nil
	},
	"APPGRAB_OUTPUT": func(cfg *Config, v string) error {
		cfg.Output.Path = v
		return nil
	},
	"APPGRAB_SAMPLE_RATE": func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not an integer: %w", err)
		}
		cfg.Capture.SampleRate = n
		return nil
	},
	"APPGRAB_CHANNELS": func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not an integer: %w", err)
		}
		cfg.Capture.Channels = n
		return nil
	},
	"APPGRAB_LISTEN_ADDR": func(cfg *Config, v string) error {
		cfg.Server.ListenAddr = v
		return nil
	},
	"APPGRAB_LOG_LEVEL": func(cfg *Config, v string) error {
		cfg.Server.LogLevel = LogLevel(v)
		return nil
	},
	"APPGRAB_PROGRESS_INTERVAL": func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("not a duration: %w", err)
		}
		cfg.Pipeline.ProgressInterval = d
		return nil
	},
}

// ApplyEnv overlays APPGRAB_* environment variables onto cfg. Environment
// values win over file values; flags are applied later by the caller and win
// over both.
func ApplyEnv(cfg *Config) error {
	var errs []error
	for name, apply := range envVars {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		if err := apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks that cfg contains a coherent set of values and fills
// remaining zero fields with defaults. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Capture.SampleRate == 0 {
		cfg.Capture.SampleRate = DefaultSampleRate
	}
	switch cfg.Capture.SampleRate {
	case 44100, 48000, 96000:
	default:
		errs = append(errs, fmt.Errorf("capture.sample_rate %d is invalid; valid values: 44100, 48000, 96000", cfg.Capture.SampleRate))
	}

	if cfg.Capture.Channels == 0 {
		cfg.Capture.Channels = DefaultChannels
	}
	if cfg.Capture.Channels != 1 && cfg.Capture.Channels != 2 {
		errs = append(errs, fmt.Errorf("capture.channels %d is invalid; valid values: 1, 2", cfg.Capture.Channels))
	}

	if cfg.Output.Path == "" {
		cfg.Output.Path = DefaultOutputPath
	}
	// The output is always a WAV container; append the suffix rather than
	// erroring so "-o session" does what the user meant.
	if !strings.EqualFold(filepath.Ext(cfg.Output.Path), ".wav") {
		cfg.Output.Path += ".wav"
	}

	if cfg.Pipeline.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("pipeline.queue_capacity %d is negative", cfg.Pipeline.QueueCapacity))
	}
	if cfg.Pipeline.ProgressInterval < 0 {
		cfg.Pipeline.ProgressInterval = 0 // disabled
	}

	return errors.Join(errs...)
}

// SlogLevel converts the configured level to the slog constant.
// Unrecognised values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
