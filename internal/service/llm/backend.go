// Package llm generates the secretary's replies with a conversational
// language model and keeps the session history consistent with them.
package llm

import (
	"context"
	"errors"
	"fmt"

	"virtual-secretary/internal/models"
)

var (
	// ErrNoAPIKey is returned when a hosted backend is built without credentials.
	ErrNoAPIKey = errors.New("llm: api key is required")

	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Request is one generation call.
type Request struct {
	SystemPrompt string
	History      []models.Turn // prior turns, oldest first; empty for a stateless call
	Message      string
}

// Backend is a conversational model. Implementations hold a client created
// once and must be safe for concurrent use by several sessions.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
	Close() error
}

// GenerationError wraps a failed generation. The generator never returns
// it; it is carried in Reply.Err so callers can log it.
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("llm: generation with %s failed: %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
