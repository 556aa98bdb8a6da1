// Package mock provides a mock STT backend for running the pipeline without
// a speech model. It cycles through canned utterances and records every call.
package mock

import (
	"context"
	"os"
	"strings"
	"sync"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/service/stt"
)

// SimulatedUtterance is one canned transcription.
type SimulatedUtterance struct {
	Segments []models.TranscriptSegment
	Language string
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Segments: []models.TranscriptSegment{
			{Start: 0.0, End: 1.4, Text: "Hi Lidia,"},
			{Start: 2.0, End: 4.1, Text: "can you book a meeting with Marco tomorrow?"},
		},
		Language: "en",
	},
	{
		Segments: []models.TranscriptSegment{
			{Start: 0.0, End: 2.3, Text: "What do I have on my calendar this afternoon?"},
		},
		Language: "en",
	},
	{
		Segments: []models.TranscriptSegment{
			{Start: 0.0, End: 1.1, Text: "Please remind me"},
			{Start: 1.7, End: 3.0, Text: "to call the bank at five."},
		},
		Language: "en",
	},
}

// Call records one Transcribe invocation.
type Call struct {
	Path       string
	Options    stt.Options
	FileExists bool // whether Path existed when the backend was called
}

// Adapter implements stt.Backend with canned responses.
type Adapter struct {
	mu         sync.Mutex
	utterances []SimulatedUtterance
	next       int
	calls      []Call

	// Err, when set, is returned by every Transcribe call.
	Err error
}

// New creates a mock backend cycling through DefaultUtterances.
func New() *Adapter {
	return NewWithUtterances(DefaultUtterances)
}

// NewWithUtterances creates a mock backend cycling through utterances.
func NewWithUtterances(utterances []SimulatedUtterance) *Adapter {
	return &Adapter{utterances: utterances}
}

// NewFailing creates a mock backend whose every call fails with err.
func NewFailing(err error) *Adapter {
	return &Adapter{Err: err}
}

// Name returns the backend name.
func (a *Adapter) Name() string {
	return "mock"
}

// Transcribe returns the next canned utterance.
func (a *Adapter) Transcribe(ctx context.Context, path string, opts stt.Options) (*models.TranscriptionResult, error) {
	_, statErr := os.Stat(path)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, Call{Path: path, Options: opts, FileExists: statErr == nil})

	if a.Err != nil {
		return nil, a.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(a.utterances) == 0 {
		return &models.TranscriptionResult{Language: opts.Language}, nil
	}

	utt := a.utterances[a.next%len(a.utterances)]
	a.next++

	segments := append([]models.TranscriptSegment(nil), utt.Segments...)
	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		texts = append(texts, s.Text)
	}
	return &models.TranscriptionResult{
		Text:     strings.Join(texts, " "),
		Language: utt.Language,
		Segments: segments,
	}, nil
}

// Calls returns a copy of the recorded calls.
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}
