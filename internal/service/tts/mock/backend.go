// Package mock provides a TTS backend producing a test tone.
package mock

import (
	"context"
	"math"
	"sync"

	"virtual-secretary/internal/service/tts"
)

// DefaultSampleRate matches the XTTS v2 output rate.
const DefaultSampleRate = 24000

// Backend returns a short sine tone whose length follows the text length.
type Backend struct {
	mu       sync.Mutex
	requests []tts.Request

	SampleRate int
	// Err, when set, is returned by every Synthesize call.
	Err error
}

// New creates a mock backend at DefaultSampleRate.
func New() *Backend {
	return &Backend{SampleRate: DefaultSampleRate}
}

// NewFailing creates a backend whose every call fails with err.
func NewFailing(err error) *Backend {
	return &Backend{SampleRate: DefaultSampleRate, Err: err}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "mock"
}

// Synthesize returns 20ms of 440Hz tone per character of text.
func (b *Backend) Synthesize(ctx context.Context, req tts.Request) ([]float32, int, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	if b.Err != nil {
		return nil, 0, b.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	n := len([]rune(req.Text)) * b.SampleRate / 50
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/float64(b.SampleRate)))
	}
	return out, b.SampleRate, nil
}

// Requests returns a copy of the recorded requests.
func (b *Backend) Requests() []tts.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tts.Request(nil), b.requests...)
}
