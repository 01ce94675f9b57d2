// Package wav implements a streaming RIFF/WAVE encoder for 16-bit PCM audio.
//
// The encoder is built for capture pipelines that do not know the final
// payload length up front: [NewWriter] emits a provisional header with
// zeroed length fields, [Writer.Write] appends raw interleaved PCM payload,
// and [Writer.Finalize] seeks back and patches the RIFF and data chunk
// sizes so the file is a valid, playable container for exactly the bytes
// that were written — whether the session ended normally, was cancelled
// after zero buffers, or was cut short by an I/O error.
//
// This package lives under pkg/ because capture backends and external
// tooling are expected to consume it directly.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// HeaderSize is the fixed size in bytes of the canonical PCM WAV header
// (RIFF chunk descriptor + fmt chunk + data chunk header).
const HeaderSize = 44

// BitsPerSample is the fixed sample width. The pipeline is pass-through
// 16-bit little-endian PCM; other widths are out of scope.
const BitsPerSample = 16

// ErrFinalized is returned by [Writer.Write] and [Writer.Finalize] when the
// header has already been finalized. Finalize must run exactly once per
// file; callers that may race multiple exit paths should guard with their
// own once-semantics and treat this error as a logic bug.
var ErrFinalized = errors.New("wav: writer already finalized")

// Writer encodes a growing WAV file onto an io.WriteSeeker.
//
// Writer is not safe for concurrent use: the capture pipeline touches it
// from the single writer goroutine only.
type Writer struct {
	ws         io.WriteSeeker
	sampleRate int
	channels   int
	dataBytes  int64
	finalized  bool
}

// NewWriter writes a provisional header (length fields zero) to ws and
// returns a Writer ready to accept payload. If writing the header fails the
// underlying stream is left as-is; callers creating a fresh file should
// remove it so no ambiguous partial file survives a failed open.
func NewWriter(ws io.WriteSeeker, sampleRate, channels int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("wav: invalid channel count %d", channels)
	}

	w := &Writer{ws: ws, sampleRate: sampleRate, channels: channels}
	if err := w.writeHeader(); err != nil {
		return nil, fmt.Errorf("wav: write provisional header: %w", err)
	}
	return w, nil
}

// Write appends raw interleaved 16-bit little-endian PCM payload and
// advances the running byte count. Partial writes advance the count by the
// number of bytes actually written so a later Finalize still declares the
// true on-disk payload length.
func (w *Writer) Write(p []byte) (int, error) {
	if w.finalized {
		return 0, ErrFinalized
	}
	n, err := w.ws.Write(p)
	w.dataBytes += int64(n)
	if err != nil {
		return n, fmt.Errorf("wav: write payload: %w", err)
	}
	return n, nil
}

// Finalize patches the RIFF and data chunk length fields with the running
// totals. It must be called exactly once; a second call returns
// [ErrFinalized]. After Finalize the Writer rejects further payload.
//
// Finalize does not close the underlying stream — the owner of the file
// handle closes it after Finalize succeeds (or best-effort after it fails).
func (w *Writer) Finalize() error {
	if w.finalized {
		return ErrFinalized
	}
	w.finalized = true

	var lens [4]byte

	// RIFF chunk size at offset 4: header remainder (36) + payload.
	if _, err := w.ws.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek riff size: %w", err)
	}
	binary.LittleEndian.PutUint32(lens[:], uint32(36+w.dataBytes))
	if _, err := w.ws.Write(lens[:]); err != nil {
		return fmt.Errorf("wav: patch riff size: %w", err)
	}

	// data chunk size at offset 40.
	if _, err := w.ws.Seek(40, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek data size: %w", err)
	}
	binary.LittleEndian.PutUint32(lens[:], uint32(w.dataBytes))
	if _, err := w.ws.Write(lens[:]); err != nil {
		return fmt.Errorf("wav: patch data size: %w", err)
	}

	return nil
}

// Finalized reports whether Finalize has run.
func (w *Writer) Finalized() bool { return w.finalized }

// DataBytes returns the number of payload bytes written so far.
func (w *Writer) DataBytes() int64 { return w.dataBytes }

// Frames returns the number of complete sample frames written so far
// (one frame = one sample per channel).
func (w *Writer) Frames() int64 {
	return w.dataBytes / int64(w.blockAlign())
}

// Duration returns the audio duration represented by the written payload.
func (w *Writer) Duration() time.Duration {
	return time.Duration(w.Frames()) * time.Second / time.Duration(w.sampleRate)
}

func (w *Writer) blockAlign() int {
	return w.channels * BitsPerSample / 8
}

// writeHeader emits the 44-byte canonical PCM header with zeroed lengths.
func (w *Writer) writeHeader() error {
	var h [HeaderSize]byte
	le := binary.LittleEndian

	copy(h[0:4], "RIFF")
	// h[4:8] — RIFF chunk size, patched by Finalize.
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	le.PutUint32(h[16:20], 16) // fmt chunk size
	le.PutUint16(h[20:22], 1)  // PCM
	le.PutUint16(h[22:24], uint16(w.channels))
	le.PutUint32(h[24:28], uint32(w.sampleRate))
	le.PutUint32(h[28:32], uint32(w.sampleRate*w.blockAlign())) // byte rate
	le.PutUint16(h[32:34], uint16(w.blockAlign()))
	le.PutUint16(h[34:36], BitsPerSample)

	copy(h[36:40], "data")
	// h[40:44] — data chunk size, patched by Finalize.

	_, err := w.ws.Write(h[:])
	return err
}
