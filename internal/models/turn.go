package models

import "fmt"

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one role-tagged utterance. Turns are passed by value and never
// modified after they are appended to a history.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func (t Turn) String() string {
	return fmt.Sprintf("%s: %s", t.Role, t.Text)
}
