// Package config provides the configuration schema and loader for the
// appgrab recorder.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [Validate] when the corresponding field is unset.
const (
	DefaultSampleRate       = 48000
	DefaultChannels         = 2
	DefaultOutputPath       = "capture.wav"
	DefaultProgressInterval = 500 * time.Millisecond
)

// Config is the root configuration structure for appgrab.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader];
// every field has a working default, so an empty file is valid.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Capture  CaptureConfig  `yaml:"capture"`
	Output   OutputConfig   `yaml:"output"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig holds settings for the optional status server and logging.
type ServerConfig struct {
	// ListenAddr is the TCP address the status server listens on
	// (e.g., "127.0.0.1:8420"). Empty disables the status server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig selects what to record and in which PCM shape.
type CaptureConfig struct {
	// Browser is the browser name to capture, matched case-insensitively
	// against the known-browser table (e.g., "safari", "chrome").
	Browser string `yaml:"browser"`

	// SampleRate is the session sample rate in Hz: 44100, 48000, or 96000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the channel count (1 or 2).
	Channels int `yaml:"channels"`
}

// OutputConfig describes the recording destination.
type OutputConfig struct {
	// Path is the WAV file to write. A missing ".wav" suffix is appended,
	// missing parent directories are created, and an existing file is
	// overwritten.
	Path string `yaml:"path"`
}

// PipelineConfig tunes the buffer queue and progress reporting.
type PipelineConfig struct {
	// QueueCapacity bounds the buffer queue between the capture callback
	// and the disk writer. Zero means the built-in default.
	QueueCapacity int `yaml:"queue_capacity"`

	// ProgressInterval is how often a progress line is logged while
	// recording. Negative disables progress logging.
	ProgressInterval time.Duration `yaml:"progress_interval"`
}
