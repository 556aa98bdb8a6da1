// Package conversation runs voice turns through transcription, reply
// generation and speech synthesis, and keeps one history per session.
package conversation

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a turn.
type State int

const (
	// StateListening - Turn created, waiting for audio.
	StateListening State = iota
	// StateTranscribing - Audio handed to the transcription client.
	StateTranscribing
	// StateGenerating - Transcript handed to the reply generator.
	StateGenerating
	// StateSynthesizing - Reply handed to the speech synthesizer.
	StateSynthesizing
	// StateDone - Turn finished with a reply, with or without audio.
	StateDone
	// StateErrored - Turn abandoned without a reply. Terminal.
	StateErrored
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateTranscribing:
		return "TRANSCRIBING"
	case StateGenerating:
		return "GENERATING"
	case StateSynthesizing:
		return "SYNTHESIZING"
	case StateDone:
		return "DONE"
	case StateErrored:
		return "ERRORED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (DONE or ERRORED).
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateErrored
}

// MarshalText lets the state appear by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Errors for invalid state transitions.
var (
	ErrTurnFinished      = errors.New("conversation: turn already finished")
	ErrInvalidTransition = errors.New("conversation: invalid state transition")
)

// next lists the only forward transition allowed from each non-terminal state.
var next = map[State]State{
	StateListening:    StateTranscribing,
	StateTranscribing: StateGenerating,
	StateGenerating:   StateSynthesizing,
	StateSynthesizing: StateDone,
}

// TurnLifecycle manages the state machine for a single turn.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	LISTENING → TRANSCRIBING → GENERATING → SYNTHESIZING → DONE
//	    │             │             │              │
//	    └─────────────┴─────────────┴──────────────┴──→ ERRORED
type TurnLifecycle struct {
	mu     sync.RWMutex
	turnId string
	state  State
}

// NewTurnLifecycle creates a new turn lifecycle in LISTENING state.
func NewTurnLifecycle(turnId string) *TurnLifecycle {
	return &TurnLifecycle{
		turnId: turnId,
		state:  StateListening,
	}
}

// TurnId returns the turn ID.
func (l *TurnLifecycle) TurnId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.turnId
}

// State returns the current state.
func (l *TurnLifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Advance moves the turn to the given state. Only the single forward step
// from the current state is allowed.
func (l *TurnLifecycle) Advance(to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.IsTerminal() {
		return ErrTurnFinished
	}
	if next[l.state] != to {
		return fmt.Errorf("%w: %v → %v", ErrInvalidTransition, l.state, to)
	}
	l.state = to
	return nil
}

// Fail transitions the turn to ERRORED from any non-terminal state.
// Returns true if the turn was failed, false if already in a terminal state.
func (l *TurnLifecycle) Fail() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateErrored
	return true
}
