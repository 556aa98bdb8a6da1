package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/observability/metrics"
	"virtual-secretary/internal/service/history"
)

// Config holds generator settings. They are fixed for the generator's lifetime.
type Config struct {
	Persona       string // system instruction, DefaultPersona when empty
	ContextWindow int    // max prior turns sent to the model, 0 = all; trimmed to start on a user turn
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

// Reply is the outcome of one generation. Text is always usable.
type Reply struct {
	Text     string
	Fallback bool  // Text is FallbackReply because generation failed
	Err      error // *GenerationError when Fallback is set
}

// Generator produces replies for one session and records successful
// exchanges in the session history.
type Generator struct {
	backend Backend
	history *history.History
	persona string
	window  int
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewGenerator creates a generator bound to h. A nil h gets a fresh history.
func NewGenerator(backend Backend, h *history.History, cfg Config) *Generator {
	if h == nil {
		h = history.New()
	}
	persona := cfg.Persona
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	return &Generator{
		backend: backend,
		history: h,
		persona: persona,
		window:  cfg.ContextWindow,
		log:     cfg.Logger.With().Str("component", "llm").Str("backend", backend.Name()).Logger(),
		metrics: cfg.Metrics,
	}
}

// Persona returns the system instruction in use.
func (g *Generator) Persona() string {
	return g.persona
}

// History returns the history the generator appends to.
func (g *Generator) History() *history.History {
	return g.history
}

// Generate asks the model to answer message. With useHistory the prior turns
// are sent as context and, on success, the user message and the reply are
// appended in that order. Any failure yields FallbackReply and leaves the
// history untouched.
func (g *Generator) Generate(ctx context.Context, message string, useHistory bool) Reply {
	req := Request{SystemPrompt: g.persona, Message: message}
	if useHistory {
		req.History = g.history.Last(g.window)
		// An odd window can cut an exchange in half; context must open with the user.
		if len(req.History) > 0 && req.History[0].Role == models.RoleAssistant {
			req.History = req.History[1:]
		}
	}

	g.log.Info().
		Str("message", preview(message)).
		Int("contextTurns", len(req.History)).
		Msg("Generating reply")

	start := time.Now()
	text, err := g.backend.Generate(ctx, req)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = ErrEmptyResponse
	}
	if g.metrics != nil {
		g.metrics.RecordStage(metrics.StageGeneration, g.backend.Name(), err, time.Since(start).Seconds())
	}

	if err != nil {
		genErr := &GenerationError{Backend: g.backend.Name(), Err: err}
		g.log.Error().Err(genErr).Msg("Generation failed, returning fallback reply")
		if g.metrics != nil {
			g.metrics.RecordFallback()
		}
		return Reply{Text: FallbackReply, Fallback: true, Err: genErr}
	}

	if useHistory {
		// Both roles are valid constants so Append cannot fail here.
		_ = g.history.Append(models.RoleUser, message)
		_ = g.history.Append(models.RoleAssistant, text)
		if g.metrics != nil {
			g.metrics.RecordHistoryLength(g.history.Len())
		}
	}

	g.log.Info().Str("reply", preview(text)).Msg("Reply generated")
	return Reply{Text: text}
}

// HistoryLen returns the number of turns in the history.
func (g *Generator) HistoryLen() int {
	return g.history.Len()
}

// Reset clears the conversation history.
func (g *Generator) Reset() {
	g.history.Reset()
	g.log.Info().Msg("Conversation history reset")
}

func preview(s string) string {
	const max = 50
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
