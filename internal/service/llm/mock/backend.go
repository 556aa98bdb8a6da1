// Package mock provides a scripted LLM backend for tests and offline runs.
package mock

import (
	"context"
	"fmt"
	"sync"

	"virtual-secretary/internal/service/llm"
)

// Backend answers with scripted replies and records every request.
type Backend struct {
	mu       sync.Mutex
	replies  []string
	next     int
	requests []llm.Request

	// Err, when set, is returned by every Generate call.
	Err error
	// FailOn lists 0-based call indexes that fail with FailErr.
	FailOn  map[int]bool
	FailErr error
}

// New creates a backend cycling through replies. With no replies it echoes
// the message back.
func New(replies ...string) *Backend {
	return &Backend{replies: replies}
}

// NewFailing creates a backend whose every call fails with err.
func NewFailing(err error) *Backend {
	return &Backend{Err: err}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "mock"
}

// Generate returns the next scripted reply.
func (b *Backend) Generate(ctx context.Context, req llm.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	call := len(b.requests)
	req.History = append(req.History[:0:0], req.History...)
	b.requests = append(b.requests, req)

	if b.Err != nil {
		return "", b.Err
	}
	if b.FailOn[call] {
		return "", b.FailErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(b.replies) == 0 {
		return fmt.Sprintf("You said: %s", req.Message), nil
	}
	reply := b.replies[b.next%len(b.replies)]
	b.next++
	return reply, nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}

// Requests returns a copy of the recorded requests.
func (b *Backend) Requests() []llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.Request(nil), b.requests...)
}
