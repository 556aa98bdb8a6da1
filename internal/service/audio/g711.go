package audio

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zaf/g711"
)

// Encoding names accepted for raw (headerless) audio payloads.
const (
	EncodingPCM16 = "pcm16"
	EncodingULaw  = "ulaw"
	EncodingALaw  = "alaw"
)

// DecodeRaw converts a headerless mono payload into a Buffer.
// pcm16 is little-endian signed 16-bit; ulaw and alaw are G.711.
func DecodeRaw(data []byte, encoding string, sampleRate int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	var pcm []byte
	switch strings.ToLower(encoding) {
	case EncodingPCM16, "linear16", "":
		pcm = data
	case EncodingULaw, "mulaw":
		pcm = g711.DecodeUlaw(data)
	case EncodingALaw:
		pcm = g711.DecodeAlaw(data)
	default:
		return nil, fmt.Errorf("audio: unsupported encoding %q", encoding)
	}
	if len(pcm) < 2 {
		return nil, ErrEmptyBuffer
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		samples[i] = float32(v) / (pcm16Max + 1)
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate}, nil
}
