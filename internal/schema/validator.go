// Package schema checks turn events before they leave the service.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"virtual-secretary/internal/models"
)

// ErrInvalidEvent is wrapped by every validation failure.
var ErrInvalidEvent = errors.New("schema: invalid event")

// Validator validates turn events against their contract.
type Validator struct{}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

// Validate checks a models.TurnCompleted or models.TurnFailed (value or pointer).
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.TurnCompleted:
		return v.completed(&e)
	case *models.TurnCompleted:
		return v.completed(e)
	case models.TurnFailed:
		return v.failed(&e)
	case *models.TurnFailed:
		return v.failed(e)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidEvent, event)
	}
}

func (v *Validator) completed(e *models.TurnCompleted) error {
	var problems []string
	if e.EventType != models.EventTurnCompleted {
		problems = append(problems, fmt.Sprintf("eventType must be %q", models.EventTurnCompleted))
	}
	problems = append(problems, common(e.SessionID, e.TurnID, e.Timestamp, e.DurationMs)...)
	if strings.TrimSpace(e.UserText) == "" {
		problems = append(problems, "userText is required")
	}
	if strings.TrimSpace(e.AssistantText) == "" {
		problems = append(problems, "assistantText is required")
	}
	if e.Degraded && e.AudioSeconds != 0 {
		problems = append(problems, "degraded turn cannot carry audio")
	}
	if e.AudioSeconds < 0 || e.HistoryLength < 0 {
		problems = append(problems, "audioSeconds and historyLength must not be negative")
	}
	return join(problems)
}

func (v *Validator) failed(e *models.TurnFailed) error {
	var problems []string
	if e.EventType != models.EventTurnFailed {
		problems = append(problems, fmt.Sprintf("eventType must be %q", models.EventTurnFailed))
	}
	problems = append(problems, common(e.SessionID, e.TurnID, e.Timestamp, e.DurationMs)...)
	if e.FailedStage == "" {
		problems = append(problems, "failedStage is required")
	}
	if e.Error == "" {
		problems = append(problems, "error is required")
	}
	return join(problems)
}

func common(sessionId, turnId string, timestamp, durationMs int64) []string {
	var problems []string
	if sessionId == "" {
		problems = append(problems, "sessionId is required")
	}
	if turnId == "" {
		problems = append(problems, "turnId is required")
	} else if sessionId != "" && !strings.HasPrefix(turnId, sessionId+"-turn-") {
		problems = append(problems, "turnId must belong to sessionId")
	}
	if timestamp <= 0 {
		problems = append(problems, "timestamp must be positive")
	}
	if durationMs < 0 {
		problems = append(problems, "durationMs must not be negative")
	}
	return problems
}

func join(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(problems, "; "))
}
