// Package audio holds the audio input representations accepted by the
// pipeline and the WAV/G.711 conversions between them.
package audio

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyBuffer is returned for a buffer without samples.
	ErrEmptyBuffer = errors.New("audio: buffer has no samples")

	// ErrInvalidSampleRate is returned for a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("audio: sample rate must be positive")

	// ErrNoSource is returned when a Source carries neither a path nor a buffer.
	ErrNoSource = errors.New("audio: source has neither path nor buffer")
)

// Buffer is mono audio held in memory, samples in the [-1, 1] range.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Validate checks that the buffer can be written to a file.
func (b *Buffer) Validate() error {
	if b == nil || len(b.Samples) == 0 {
		return ErrEmptyBuffer
	}
	if b.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	return nil
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Source is the audio input of one turn: either a file on disk or an
// in-memory buffer with an explicit sample rate.
type Source struct {
	Path   string
	Buffer *Buffer
}

// FromFile returns a Source reading the audio file at path.
func FromFile(path string) Source {
	return Source{Path: path}
}

// FromBuffer returns a Source backed by samples at sampleRate Hz.
func FromBuffer(samples []float32, sampleRate int) Source {
	return Source{Buffer: &Buffer{Samples: samples, SampleRate: sampleRate}}
}

// IsBuffer reports whether the source must be materialized before transcription.
func (s Source) IsBuffer() bool {
	return s.Buffer != nil
}

// String describes the source for logs.
func (s Source) String() string {
	switch {
	case s.Buffer != nil:
		return fmt.Sprintf("buffer(%d samples @ %dHz)", len(s.Buffer.Samples), s.Buffer.SampleRate)
	case s.Path != "":
		return s.Path
	default:
		return "empty"
	}
}
