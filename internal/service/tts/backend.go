// Package tts synthesizes replies in a cloned voice.
package tts

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoVoiceSample is returned when synthesis is requested without any
	// reference sample to clone.
	ErrNoVoiceSample = errors.New("tts: no voice sample available")

	// ErrEmptyAudio is returned when the backend produced no waveform.
	ErrEmptyAudio = errors.New("tts: backend returned no audio")
)

// Request is one synthesis call.
type Request struct {
	Text          string
	ReferencePath string // reference clip of the voice to clone
	Language      string
}

// Backend is a voice-cloning engine. It is loaded once and reused.
type Backend interface {
	// Synthesize returns mono samples in [-1, 1] and their sample rate.
	Synthesize(ctx context.Context, req Request) ([]float32, int, error)
	Name() string
}

// SynthesisError wraps a backend failure.
type SynthesisError struct {
	Backend string
	Err     error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("tts: synthesis with %s failed: %v", e.Backend, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// PersistError reports that the waveform could not be written to Path.
// The in-memory result returned alongside it is still valid.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("tts: persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
