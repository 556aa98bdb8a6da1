package conversation

import (
	"fmt"
	"sync/atomic"
)

// TurnIDGenerator numbers turns within a session.
type TurnIDGenerator struct {
	counter uint64
}

// NewTurnIDGenerator returns a generator starting at 1.
func NewTurnIDGenerator() *TurnIDGenerator {
	return &TurnIDGenerator{}
}

// Next returns "<sessionId>-turn-<n>".
func (g *TurnIDGenerator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-turn-%d", sessionId, n)
}
