// Package stt turns audio into normalized transcripts through a swappable
// speech-to-text backend.
package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"virtual-secretary/internal/models"
)

// DefaultMinSilence is the voice-activity threshold: pauses shorter than
// this do not split speech into separate segments.
const DefaultMinSilence = 500 * time.Millisecond

var (
	// ErrBackendUnavailable is returned by backends that cannot reach their model.
	ErrBackendUnavailable = errors.New("stt: backend unavailable")

	// ErrUnsupportedAudio is returned by backends for files they cannot decode.
	ErrUnsupportedAudio = errors.New("stt: unsupported audio")
)

// Options are passed to the backend on every call.
type Options struct {
	Language   string // empty means auto-detect
	VADFilter  bool
	MinSilence time.Duration
}

// Backend is a speech-to-text engine that reads audio from a file path.
// Implementations are loaded once and reused for every call.
type Backend interface {
	// Transcribe returns the raw result for the audio file at path.
	// The returned segments may be unnormalized; the Client cleans them up.
	Transcribe(ctx context.Context, path string, opts Options) (*models.TranscriptionResult, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}

// TranscriptionError wraps a failure of the transcription stage.
type TranscriptionError struct {
	Backend string
	Source  string
	Err     error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("stt: transcription of %s with %s failed: %v", e.Source, e.Backend, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}
