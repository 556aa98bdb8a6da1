package models

// Event types published for every finished turn.
const (
	EventTurnCompleted = "conversation.turn.completed"
	EventTurnFailed    = "conversation.turn.failed"
)

// TurnCompleted is published when a turn reaches the Done state,
// including degraded (text-only) turns.
type TurnCompleted struct {
	EventType      string  `json:"eventType"`
	SessionID      string  `json:"sessionId"`
	TurnID         string  `json:"turnId"`
	Timestamp      int64   `json:"timestamp"`
	Language       string  `json:"language"`
	UserText       string  `json:"userText"`
	AssistantText  string  `json:"assistantText"`
	Fallback       bool    `json:"fallback"`
	Degraded       bool    `json:"degraded"`
	AudioSeconds   float64 `json:"audioSeconds"`
	SynthesisError string  `json:"synthesisError,omitempty"`
	HistoryLength  int     `json:"historyLength"`
	DurationMs     int64   `json:"durationMs"`
}

// TurnFailed is published when a turn ends in the Errored state.
type TurnFailed struct {
	EventType   string `json:"eventType"`
	SessionID   string `json:"sessionId"`
	TurnID      string `json:"turnId"`
	Timestamp   int64  `json:"timestamp"`
	FailedStage string `json:"failedStage"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"durationMs"`
}
