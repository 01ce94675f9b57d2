package wav

import (
	"encoding/binary"
	"fmt"
)

// Header is the decoded form of a canonical PCM WAV header. Used by tests
// and tooling to verify finalized files; the encoder itself never reads.
type Header struct {
	// RIFFSize is the declared RIFF chunk size (file size minus 8).
	RIFFSize uint32

	// AudioFormat is the fmt chunk codec tag; 1 means uncompressed PCM.
	AudioFormat uint16

	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16

	// DataSize is the declared payload length of the data chunk.
	DataSize uint32
}

// DecodeHeader parses the first [HeaderSize] bytes of a WAV file produced
// by this package. It rejects files whose chunk layout deviates from the
// canonical RIFF/fmt/data ordering the encoder emits.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("wav: header too short: %d bytes", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("wav: not a RIFF/WAVE file")
	}
	if string(b[12:16]) != "fmt " {
		return Header{}, fmt.Errorf("wav: missing fmt chunk")
	}
	if string(b[36:40]) != "data" {
		return Header{}, fmt.Errorf("wav: missing data chunk")
	}

	le := binary.LittleEndian
	return Header{
		RIFFSize:      le.Uint32(b[4:8]),
		AudioFormat:   le.Uint16(b[20:22]),
		Channels:      le.Uint16(b[22:24]),
		SampleRate:    le.Uint32(b[24:28]),
		ByteRate:      le.Uint32(b[28:32]),
		BlockAlign:    le.Uint16(b[32:34]),
		BitsPerSample: le.Uint16(b[34:36]),
		DataSize:      le.Uint32(b[40:44]),
	}, nil
}

// Frames returns the number of complete sample frames the header declares.
func (h Header) Frames() uint32 {
	if h.BlockAlign == 0 {
		return 0
	}
	return h.DataSize / uint32(h.BlockAlign)
}
