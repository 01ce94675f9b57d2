package capture

// Buffer is one immutable chunk of interleaved 16-bit little-endian PCM
// samples flowing from a capture session to the writer. Ownership transfers
// with the value: the producer must not retain or mutate Data after handing
// the Buffer to the queue.
type Buffer struct {
	// Data is the raw PCM payload.
	Data []byte

	// SampleRate in Hz, as configured at session start.
	SampleRate int

	// Channels is the interleaved channel count.
	Channels int

	// Seq is the arrival sequence number, strictly increasing per session
	// starting at 1. The queue preserves Seq order end-to-end.
	Seq uint64
}

// Frames returns the number of complete sample frames in the buffer
// (one frame = one 16-bit sample per channel).
func (b Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Data) / (2 * b.Channels)
}
