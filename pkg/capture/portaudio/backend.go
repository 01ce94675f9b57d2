// Package portaudio adapts the PortAudio library to the [capture.Backend]
// interface.
//
// PortAudio has no notion of per-application audio, so this backend relies
// on the OS routing the target application's output to a loopback/monitor
// input device (BlackHole or Loopback on macOS, a PulseAudio/PipeWire
// monitor source on Linux). Target resolution matches the application token
// from the bundle-style target ID against the available input device names
// and falls back to any device advertising itself as a loopback or monitor
// source.
package portaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/appgrab/appgrab/pkg/capture"
	"github.com/appgrab/appgrab/pkg/pcm"
)

// framesPerBuffer is the PortAudio read granularity: 960 frames is 20 ms at
// 48 kHz, matching the delivery cadence the pipeline is tuned for.
const framesPerBuffer = 960

// Backend opens capture sessions on PortAudio input devices.
//
// Backend is safe for concurrent use, but PortAudio itself supports only
// one initialisation per process; one session at a time is the intended use.
type Backend struct{}

// Compile-time interface assertion.
var _ capture.Backend = (*Backend)(nil)

// New returns a PortAudio capture backend.
func New() *Backend { return &Backend{} }

// Start implements [capture.Backend]. It initialises PortAudio, resolves an
// input device for targetID, opens a stream at the device's native rate, and
// starts the delivery loop, which converts each buffer to the requested
// format before handing it to onBuffer.
func (b *Backend) Start(ctx context.Context, targetID string, format capture.Format, onBuffer capture.BufferFunc, onError capture.ErrorFunc) (capture.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w: %w", err, capture.ErrUnavailable)
	}

	dev, err := findInputDevice(targetID)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	slog.Info("portaudio: capture device selected",
		"device", dev.Name,
		"target_id", targetID,
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
	)

	// Loopback devices typically run at a fixed native rate; open the stream
	// there and convert to the session format in the delivery loop.
	deviceRate := int(dev.DefaultSampleRate)
	if deviceRate <= 0 {
		deviceRate = format.SampleRate
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = format.Channels
	params.SampleRate = float64(deviceRate)
	params.FramesPerBuffer = framesPerBuffer

	frame := make([]int16, framesPerBuffer*format.Channels)
	stream, err := portaudio.OpenStream(params, frame)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: open stream on %q: %w: %w", dev.Name, err, capture.ErrUnavailable)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w: %w", err, capture.ErrUnavailable)
	}

	s := &session{
		stream:     stream,
		frame:      frame,
		deviceRate: deviceRate,
		channels:   format.Channels,
		conv:       &pcm.Converter{TargetRate: format.SampleRate, TargetChannels: format.Channels},
		onBuffer:   onBuffer,
		onError:    onError,
		loopDone:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Authorizer returns the permission collaborator for this backend.
// Device-level capture needs no screen-recording grant, so authorization
// always succeeds; ScreenCaptureKit-style backends substitute a real check.
func Authorizer() capture.Authorizer {
	return capture.AuthorizerFunc(func(context.Context) bool { return true })
}

// session is one active PortAudio capture stream.
type session struct {
	stream     *portaudio.Stream
	frame      []int16
	deviceRate int
	channels   int
	conv       *pcm.Converter
	onBuffer   capture.BufferFunc
	onError    capture.ErrorFunc

	stopping atomic.Bool
	stopOnce sync.Once
	loopDone chan struct{}
}

// readLoop blocks on the PortAudio stream and hands each filled buffer to
// the delivery callback. The callback contract (no blocking, no I/O) is the
// caller's responsibility; this loop only converts samples to bytes.
func (s *session) readLoop() {
	defer close(s.loopDone)

	for {
		if s.stopping.Load() {
			return
		}
		if err := s.stream.Read(); err != nil {
			if s.stopping.Load() {
				// Stop tore down the stream under us; not an error.
				return
			}
			s.onError(fmt.Errorf("portaudio: read: %w: %w", err, capture.ErrUnavailable))
			return
		}
		if s.stopping.Load() {
			return
		}

		raw := make([]byte, len(s.frame)*2)
		for i, sample := range s.frame {
			binary.LittleEndian.PutUint16(raw[i*2:], uint16(sample))
		}
		out := s.conv.Convert(raw, s.deviceRate, s.channels)
		if len(out) == 0 {
			continue
		}
		s.onBuffer(out)
	}
}

// Stop implements [capture.Session]. The first call aborts the stream,
// waits for the delivery loop to exit (so no callback fires after Stop
// returns), and releases PortAudio. Subsequent calls return nil.
func (s *session) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		// Abort discards queued device buffers; the pipeline has its own
		// queue and does not need them replayed.
		if aerr := s.stream.Abort(); aerr != nil {
			err = fmt.Errorf("portaudio: abort stream: %w", aerr)
		}
		<-s.loopDone
		if cerr := s.stream.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("portaudio: close stream: %w", cerr)
		}
		portaudio.Terminate()
	})
	return err
}

// findInputDevice picks the input device for a bundle-style target ID.
func findInputDevice(targetID string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: enumerate devices: %w: %w", err, capture.ErrUnavailable)
	}

	token := appToken(targetID)
	var fallback *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		name := strings.ToLower(dev.Name)
		if token != "" && strings.Contains(name, token) {
			return dev, nil
		}
		if fallback == nil && (strings.Contains(name, "loopback") || strings.Contains(name, "monitor") || strings.Contains(name, "blackhole")) {
			fallback = dev
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("portaudio: no input device matches %q and no loopback device found: %w", targetID, capture.ErrTargetNotFound)
}

// appToken extracts the lowercase application token from a bundle-style
// target ID: "com.google.Chrome" → "chrome".
func appToken(targetID string) string {
	parts := strings.Split(targetID, ".")
	if len(parts) == 0 {
		return ""
	}
	return strings.ToLower(parts[len(parts)-1])
}
