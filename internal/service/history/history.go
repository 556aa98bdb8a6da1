// Package history keeps the ordered dialogue of one conversation session.
package history

import (
	"errors"
	"fmt"

	"virtual-secretary/internal/models"
)

// ErrInvalidRole is returned when appending a turn with an unknown role.
var ErrInvalidRole = errors.New("history: invalid role")

// History is an append-only log of turns, oldest first.
// It is owned by a single session and is not safe for concurrent use;
// the session serializes access.
type History struct {
	turns []models.Turn
}

// New returns an empty history.
func New() *History {
	return &History{}
}

// Append adds a turn at the end of the history.
func (h *History) Append(role models.Role, text string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	h.turns = append(h.turns, models.Turn{Role: role, Text: text})
	return nil
}

// Turns returns a copy of the history; changing it does not affect h.
func (h *History) Turns() []models.Turn {
	out := make([]models.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Last returns up to n most recent turns, or all turns when n <= 0.
func (h *History) Last(n int) []models.Turn {
	if n <= 0 || n >= len(h.turns) {
		return h.Turns()
	}
	out := make([]models.Turn, n)
	copy(out, h.turns[len(h.turns)-n:])
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Reset clears the history.
func (h *History) Reset() {
	h.turns = nil
}
