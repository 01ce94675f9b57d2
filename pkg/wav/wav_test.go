package wav_test

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/appgrab/appgrab/pkg/wav"
)

// seekBuffer is an in-memory io.WriteSeeker for exercising the encoder
// without touching the filesystem.
type seekBuffer struct {
	buf []byte
	pos int64
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if need := s.pos + int64(len(p)); need > int64(len(s.buf)) {
		grown := make([]byte, need)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[s.pos:], p)
	s.pos += int64(len(p))
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.pos = offset
	case io.SeekCurrent:
		s.pos += offset
	case io.SeekEnd:
		s.pos = int64(len(s.buf)) + offset
	}
	if s.pos < 0 {
		return 0, fmt.Errorf("negative position")
	}
	return s.pos, nil
}

func TestNewWriter_RejectsInvalidFormat(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		sampleRate int
		channels   int
	}{
		{"zero sample rate", 0, 2},
		{"negative sample rate", -48000, 2},
		{"zero channels", 48000, 0},
		{"too many channels", 48000, 3},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := wav.NewWriter(&seekBuffer{}, tc.sampleRate, tc.channels); err == nil {
				t.Fatalf("NewWriter(%d, %d) should fail", tc.sampleRate, tc.channels)
			}
		})
	}
}

func TestFinalize_EmptyPayload(t *testing.T) {
	t.Parallel()
	sb := &seekBuffer{}
	w, err := wav.NewWriter(sb, 48000, 2)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if len(sb.buf) != wav.HeaderSize {
		t.Fatalf("empty file should be exactly %d bytes, got %d", wav.HeaderSize, len(sb.buf))
	}
	h, err := wav.DecodeHeader(sb.buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.DataSize != 0 {
		t.Errorf("DataSize = %d, want 0", h.DataSize)
	}
	if h.RIFFSize != 36 {
		t.Errorf("RIFFSize = %d, want 36", h.RIFFSize)
	}
	if h.AudioFormat != 1 {
		t.Errorf("AudioFormat = %d, want 1 (PCM)", h.AudioFormat)
	}
}

func TestFinalize_DeclaredSizesMatchPayload(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		sampleRate int
		channels   int
		chunks     []int // payload chunk sizes in bytes
	}{
		{"one buffer mono", 44100, 1, []int{640}},
		{"many buffers stereo", 48000, 2, []int{3840, 3840, 3840, 1920}},
		{"hundred buffers", 48000, 2, manyChunks(100, 3840)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sb := &seekBuffer{}
			w, err := wav.NewWriter(sb, tc.sampleRate, tc.channels)
			if err != nil {
				t.Fatalf("NewWriter: %v", err)
			}

			var total int
			for i, size := range tc.chunks {
				n, err := w.Write(make([]byte, size))
				if err != nil {
					t.Fatalf("Write chunk %d: %v", i, err)
				}
				total += n
			}
			if err := w.Finalize(); err != nil {
				t.Fatalf("Finalize: %v", err)
			}

			h, err := wav.DecodeHeader(sb.buf)
			if err != nil {
				t.Fatalf("DecodeHeader: %v", err)
			}
			if int(h.DataSize) != total {
				t.Errorf("DataSize = %d, want %d", h.DataSize, total)
			}
			if int(h.RIFFSize) != 36+total {
				t.Errorf("RIFFSize = %d, want %d", h.RIFFSize, 36+total)
			}
			if len(sb.buf) != wav.HeaderSize+total {
				t.Errorf("file size = %d, want %d", len(sb.buf), wav.HeaderSize+total)
			}
			if got := int(h.SampleRate); got != tc.sampleRate {
				t.Errorf("SampleRate = %d, want %d", got, tc.sampleRate)
			}
			if got := int(h.Channels); got != tc.channels {
				t.Errorf("Channels = %d, want %d", got, tc.channels)
			}
			wantAlign := tc.channels * 2
			if got := int(h.BlockAlign); got != wantAlign {
				t.Errorf("BlockAlign = %d, want %d", got, wantAlign)
			}
			if got := int(h.ByteRate); got != tc.sampleRate*wantAlign {
				t.Errorf("ByteRate = %d, want %d", got, tc.sampleRate*wantAlign)
			}
		})
	}
}

func TestFinalize_SecondCallErrors(t *testing.T) {
	t.Parallel()
	w, err := wav.NewWriter(&seekBuffer{}, 48000, 2)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if err := w.Finalize(); !errors.Is(err, wav.ErrFinalized) {
		t.Fatalf("second Finalize = %v, want ErrFinalized", err)
	}
	if _, err := w.Write([]byte{0, 0}); !errors.Is(err, wav.ErrFinalized) {
		t.Fatalf("Write after Finalize = %v, want ErrFinalized", err)
	}
}

func TestWriter_FrameAndDurationAccounting(t *testing.T) {
	t.Parallel()
	sb := &seekBuffer{}
	w, err := wav.NewWriter(sb, 48000, 2)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	// 100 buffers of 960 frames each at 48 kHz stereo: 96000 frames, 2 s.
	frame := make([]byte, 960*2*2)
	for i := 0; i < 100; i++ {
		if _, err := w.Write(frame); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if w.Frames() != 96000 {
		t.Errorf("Frames = %d, want 96000", w.Frames())
	}
	if w.Duration() != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", w.Duration())
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	h, err := wav.DecodeHeader(sb.buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Frames() != 96000 {
		t.Errorf("header Frames = %d, want 96000", h.Frames())
	}
}

func TestDecodeHeader_RejectsGarbage(t *testing.T) {
	t.Parallel()
	if _, err := wav.DecodeHeader(make([]byte, 10)); err == nil {
		t.Error("short header should fail")
	}
	junk := make([]byte, wav.HeaderSize)
	copy(junk, "JUNKDATA")
	if _, err := wav.DecodeHeader(junk); err == nil {
		t.Error("non-RIFF header should fail")
	}
}

func manyChunks(n, size int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = size
	}
	return out
}
